package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// productCatalogInMemory — in-memory каталог товаров.
type productCatalogInMemory struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
}

// NewProductCatalog возвращает in-memory каталог, заполненный переданными
// товарами.
func NewProductCatalog(products ...domain.Product) domain.ProductCatalog {
	catalog := &productCatalogInMemory{
		products: make(map[int64]domain.Product, len(products)),
	}
	for _, p := range products {
		catalog.products[p.ID] = p
	}
	return catalog
}

// Get возвращает товар или ErrProductNotFound.
func (c *productCatalogInMemory) Get(ctx context.Context, productID int64) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	product, ok := c.products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// stock возвращает текущий сток товара. Вызывается леджером под его мьютексом.
func (c *productCatalogInMemory) stock(productID int64) (int32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	product, ok := c.products[productID]
	if !ok {
		return 0, false
	}
	return product.Stock, true
}

// adjustStock меняет сток товара на delta. Вызывается леджером.
func (c *productCatalogInMemory) adjustStock(productID int64, delta int32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	product, ok := c.products[productID]
	if !ok {
		return
	}
	product.Stock += delta
	c.products[productID] = product
}

var _ domain.ProductCatalog = (*productCatalogInMemory)(nil)
