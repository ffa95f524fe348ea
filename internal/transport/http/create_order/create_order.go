package createorder

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/services/ordersvc"
	"github.com/corray333/backend-labs/cafe/internal/transport/http/httperr"
	"github.com/go-playground/validator/v10"
)

// service is an interface for the service layer.
type service interface {
	SubmitOrder(ctx context.Context, model ordersvc.SubmitOrderModel) (order.View, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// createOrderRequest represents a create order request.
type createOrderRequest struct {
	Items        []int64 `json:"items"        validate:"required,min=1,dive,gt=0"`
	Mode         string  `json:"mode"         validate:"required,oneof=dine-in takeout"`
	CustomerName string  `json:"customerName"`
	ClientToken  string  `json:"clientToken"  validate:"max=128"`
}

// Validate validates the create order request.
func (r *createOrderRequest) Validate() error {
	return validate.Struct(r)
}

func (r *createOrderRequest) toModel() ordersvc.SubmitOrderModel {
	return ordersvc.SubmitOrderModel{
		Items:        r.Items,
		Mode:         r.Mode,
		CustomerName: r.CustomerName,
		ClientToken:  r.ClientToken,
	}
}

// CreateOrder handles the order submission request.
func CreateOrder(w http.ResponseWriter, r *http.Request, service service) {
	req := createOrderRequest{}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		httperr.BadRequest(w, r, "Error decoding request body for create order", err)

		return
	}

	if err := req.Validate(); err != nil {
		httperr.BadRequest(w, r, "Error validating request body for create order", err)

		return
	}

	view, err := service.SubmitOrder(r.Context(), req.toModel())
	if err != nil {
		httperr.Write(w, r, "Error creating order", err)

		return
	}

	httperr.WriteJSON(w, r, http.StatusCreated, view)
}
