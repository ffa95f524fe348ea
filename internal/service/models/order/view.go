package order

import (
	"time"

	"github.com/corray333/backend-labs/cafe/internal/service/models/mode"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/shopspring/decimal"
)

func init() {
	// Screens read totals as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// ItemView is an order item with its resolved display name.
type ItemView struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
}

// View is the projection of an order sent to clients and subscribers.
type View struct {
	ID           int64           `json:"id"`
	Items        []ItemView      `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Status       status.Status   `json:"status"`
	Mode         mode.Mode       `json:"mode"`
	CustomerName string          `json:"customerName"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	ClientToken  string          `json:"clientToken,omitempty"`
}

// NewView builds the client projection of o. name resolves a product id to its display name.
func NewView(o Order, name func(productID int64) string) View {
	items := make([]ItemView, len(o.Items))
	for i, item := range o.Items {
		items[i] = ItemView{
			ProductID: item.ProductID,
			Name:      name(item.ProductID),
			Price:     item.Price,
		}
	}

	return View{
		ID:           o.ID,
		Items:        items,
		Total:        o.Total,
		Status:       o.Status,
		Mode:         o.Mode,
		CustomerName: o.CustomerName,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}
