package getorder

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/transport/http/httperr"
)

type service interface {
	GetOrder(ctx context.Context, id int64) (order.View, error)
}

func GetOrder(w http.ResponseWriter, r *http.Request, service service) {
	id, err := httperr.OrderID(r)
	if err != nil {
		httperr.Write(w, r, "Error parsing order id", err)

		return
	}

	view, err := service.GetOrder(r.Context(), id)
	if err != nil {
		httperr.Write(w, r, "Error getting order", err)

		return
	}

	httperr.WriteJSON(w, r, http.StatusOK, view)
}
