package orderhistory

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/cafe/internal/service/models/statuslog"
	"github.com/corray333/backend-labs/cafe/internal/transport/http/httperr"
)

type service interface {
	OrderHistory(ctx context.Context, id int64) ([]statuslog.Entry, error)
}

func OrderHistory(w http.ResponseWriter, r *http.Request, service service) {
	id, err := httperr.OrderID(r)
	if err != nil {
		httperr.Write(w, r, "Error parsing order id", err)

		return
	}

	entries, err := service.OrderHistory(r.Context(), id)
	if err != nil {
		httperr.Write(w, r, "Error getting order history", err)

		return
	}

	httperr.WriteJSON(w, r, http.StatusOK, entries)
}
