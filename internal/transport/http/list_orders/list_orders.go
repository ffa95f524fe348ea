package listorders

import (
	"context"
	"net/http"

	"github.com/corray333/backend-labs/cafe/internal/service/models/order"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/corray333/backend-labs/cafe/internal/transport/http/httperr"
	"github.com/gorilla/schema"
)

type service interface {
	ListOrders(ctx context.Context, filter order.QueryOrdersModel) ([]order.View, error)
}

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)

	return d
}()

// queryOrdersRequest is decoded from the query string, e.g. ?status=pending&status=preparing&limit=20.
type queryOrdersRequest struct {
	Ids      []int64  `schema:"ids,omitempty"`
	Statuses []string `schema:"status,omitempty"`
	Limit    int      `schema:"limit,omitempty"`
	Offset   int      `schema:"offset,omitempty"`
}

func (q *queryOrdersRequest) ToModel() (order.QueryOrdersModel, error) {
	statuses := make([]status.Status, 0, len(q.Statuses))
	for _, raw := range q.Statuses {
		st, err := status.Parse(raw)
		if err != nil {
			return order.QueryOrdersModel{}, err
		}
		statuses = append(statuses, st)
	}

	return order.QueryOrdersModel{
		Ids:      q.Ids,
		Statuses: statuses,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}, nil
}

func ListOrders(w http.ResponseWriter, r *http.Request, service service) {
	query := &queryOrdersRequest{}
	if err := decoder.Decode(query, r.URL.Query()); err != nil {
		httperr.BadRequest(w, r, "Error decoding request", err)

		return
	}

	filter, err := query.ToModel()
	if err != nil {
		httperr.Write(w, r, "Error decoding request", err)

		return
	}

	orders, err := service.ListOrders(r.Context(), filter)
	if err != nil {
		httperr.Write(w, r, "Error getting orders", err)

		return
	}

	httperr.WriteJSON(w, r, http.StatusOK, orders)
}
