// Package catalog holds the read-only product list used to price orders.
package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/corray333/backend-labs/cafe/internal/dal/interfaces/iproductrepo"
	"github.com/corray333/backend-labs/cafe/internal/service/models/product"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Catalog is an immutable, id-indexed product list. It is safe for concurrent use.
type Catalog struct {
	byID     map[int64]product.Product
	products []product.Product
}

// New creates a catalog from products. Later duplicates of an id are ignored.
func New(products []product.Product) *Catalog {
	c := &Catalog{
		byID:     make(map[int64]product.Product, len(products)),
		products: make([]product.Product, 0, len(products)),
	}
	for _, p := range products {
		if _, ok := c.byID[p.ID]; ok {
			continue
		}
		c.byID[p.ID] = p
		c.products = append(c.products, p)
	}
	slices.SortFunc(c.products, func(a, b product.Product) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return c
}

// Product returns the product with the given id.
func (c *Catalog) Product(id int64) (product.Product, bool) {
	p, ok := c.byID[id]

	return p, ok
}

// Name returns the product name or an empty string for unknown ids.
func (c *Catalog) Name(id int64) string {
	return c.byID[id].Name
}

// List returns every product ordered by id.
func (c *Catalog) List() []product.Product {
	return slices.Clone(c.products)
}

// Load reads the catalog from the products table.
func Load(ctx context.Context, repo iproductrepo.IProductRepository) (*Catalog, error) {
	products, err := repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	return New(products), nil
}

type productConfig struct {
	ID        int64  `mapstructure:"id"`
	Name      string `mapstructure:"name"`
	Price     string `mapstructure:"price"`
	Available *bool  `mapstructure:"available"`
}

// FromConfig reads the catalog from the catalog.products key.
func FromConfig() (*Catalog, error) {
	var raw []productConfig
	if err := viper.UnmarshalKey("catalog.products", &raw); err != nil {
		return nil, fmt.Errorf("failed to decode catalog.products: %w", err)
	}

	products := make([]product.Product, 0, len(raw))
	for _, r := range raw {
		price, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price of product %d: %w", r.ID, err)
		}
		if r.ID <= 0 || r.Name == "" {
			return nil, fmt.Errorf("catalog product %d must have a positive id and a name", r.ID)
		}
		available := r.Available == nil || *r.Available
		products = append(products, product.Product{
			ID:        r.ID,
			Name:      r.Name,
			Price:     price,
			Available: available,
		})
	}

	return New(products), nil
}
