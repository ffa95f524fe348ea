package iproductrepo

import (
	"context"

	"github.com/corray333/backend-labs/cafe/internal/service/models/product"
)

// IProductRepository is an interface for the read-only product catalog table.
type IProductRepository interface {
	List(ctx context.Context) ([]product.Product, error)
}
