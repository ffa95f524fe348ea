package listproducts

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/cafe/internal/service/models/product"
	"github.com/corray333/backend-labs/cafe/internal/transport/http/httperr"
)

type service interface {
	ListProducts(ctx context.Context) []product.Product
}

func ListProducts(w http.ResponseWriter, r *http.Request, service service) {
	httperr.WriteJSON(w, r, http.StatusOK, service.ListProducts(r.Context()))
}
