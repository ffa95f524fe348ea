package transitionorder

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/corray333/backend-labs/cafe/internal/transport/http/httperr"
	"github.com/go-playground/validator/v10"
)

type service interface {
	TransitionOrder(ctx context.Context, id int64, next status.Status) (order.View, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

// TransitionOrder handles PUT and PATCH on an order status.
func TransitionOrder(w http.ResponseWriter, r *http.Request, service service) {
	id, err := httperr.OrderID(r)
	if err != nil {
		httperr.Write(w, r, "Error parsing order id", err)

		return
	}

	req := transitionRequest{}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		httperr.BadRequest(w, r, "Error decoding request body for status change", err)

		return
	}
	if err := validate.Struct(&req); err != nil {
		httperr.BadRequest(w, r, "Error validating request body for status change", err)

		return
	}

	next, err := status.Parse(req.Status)
	if err != nil {
		httperr.Write(w, r, "Error parsing status", err)

		return
	}

	view, err := service.TransitionOrder(r.Context(), id, next)
	if err != nil {
		httperr.Write(w, r, "Error changing order status", err)

		return
	}

	httperr.WriteJSON(w, r, http.StatusOK, view)
}
