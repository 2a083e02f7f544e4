package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// ProductCatalog — read-доступ к каталогу товаров в PostgreSQL.
type ProductCatalog struct {
	db *sql.DB
}

var _ domain.ProductCatalog = (*ProductCatalog)(nil)

// NewProductCatalog создает каталог товаров.
func NewProductCatalog(store *Store) *ProductCatalog {
	return &ProductCatalog{db: store.DB()}
}

// Get возвращает товар или ErrProductNotFound.
func (c *ProductCatalog) Get(ctx context.Context, productID int64) (domain.Product, error) {
	opCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		product domain.Product
		price   string
		status  string
	)
	err := c.db.QueryRowContext(opCtx, `
		SELECT id, name, price, stock, category, status
		FROM products
		WHERE id = $1
	`, productID).Scan(&product.ID, &product.Name, &price, &product.Stock, &product.Category, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %d: %w", productID, domain.ErrProductNotFound)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("query product %d: %w", productID, err)
	}

	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse price %q for product %d: %w", price, productID, err)
	}
	product.Price = parsed
	product.Status = domain.ProductStatus(status)
	return product, nil
}
