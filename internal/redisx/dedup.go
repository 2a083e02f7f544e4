package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix отделяет ключи дедупликации от остальных данных в Redis.
const keyPrefix = "orderflow:ingested:"

// Dedup — кеш обработанных бизнес-ID заказов поверх Redis. Ключ ставится
// только после успешного приёма заказа: сбой обработки не оставляет следа,
// и retry той же доставки не будет ошибочно пропущен. Ключи живут
// ограниченное время, после истечения TTL повтор доедет до хранилища и будет
// погашен там.
type Dedup struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDedup создает кеш дедупликации с заданным временем жизни ключей.
func NewDedup(client *redis.Client, ttl time.Duration) *Dedup {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Dedup{client: client, ttl: ttl}
}

// Seen сообщает, был ли бизнес-ID уже успешно обработан.
func (d *Dedup) Seen(ctx context.Context, orderID string) (bool, error) {
	exists, err := d.client.Exists(ctx, keyPrefix+orderID).Result()
	if err != nil {
		return false, fmt.Errorf("dedup lookup for order %s: %w", orderID, err)
	}
	return exists > 0, nil
}

// MarkProcessed помечает бизнес-ID обработанным. Вызывается только после
// успешного приёма заказа.
func (d *Dedup) MarkProcessed(ctx context.Context, orderID string) error {
	if err := d.client.Set(ctx, keyPrefix+orderID, 1, d.ttl).Err(); err != nil {
		return fmt.Errorf("dedup mark for order %s: %w", orderID, err)
	}
	return nil
}
