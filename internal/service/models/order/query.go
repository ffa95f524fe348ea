package order

import "github.com/corray333/backend-labs/cafe/internal/service/models/status"

// QueryOrdersModel represents filter parameters for querying orders.
// Results are always sorted newest first.
type QueryOrdersModel struct {
	Ids      []int64         `json:"ids,omitempty"`
	Statuses []status.Status `json:"statuses,omitempty"`
	Limit    int             `json:"limit,omitempty"`
	Offset   int             `json:"offset,omitempty"`
}

// Matches reports whether o passes the id and status filters.
// Limit and offset are applied by the caller.
func (q *QueryOrdersModel) Matches(o *Order) bool {
	if len(q.Ids) > 0 && !containsID(q.Ids, o.ID) {
		return false
	}
	if len(q.Statuses) > 0 && !containsStatus(q.Statuses, o.Status) {
		return false
	}

	return true
}

// Page applies offset and limit to an already filtered and sorted slice.
func (q *QueryOrdersModel) Page(orders []Order) []Order {
	if q.Offset > 0 {
		if q.Offset >= len(orders) {
			return []Order{}
		}
		orders = orders[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(orders) {
		orders = orders[:q.Limit]
	}

	return orders
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}

	return false
}

func containsStatus(statuses []status.Status, st status.Status) bool {
	for _, v := range statuses {
		if v == st {
			return true
		}
	}

	return false
}
