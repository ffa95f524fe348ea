package order

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/corray333/backend-labs/cafe/internal/service/apperr"
	"github.com/corray333/backend-labs/cafe/internal/service/models/mode"
	"github.com/corray333/backend-labs/cafe/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/cafe/internal/service/models/status"
	"github.com/shopspring/decimal"
)

func item(productID int64, price string) orderitem.OrderItem {
	return orderitem.OrderItem{ProductID: productID, Price: decimal.RequireFromString(price)}
}

func TestOrder_ValidateNew(t *testing.T) {
	items := []orderitem.OrderItem{item(1, "25"), item(2, "35")}

	tests := []struct {
		name    string
		order   Order
		wantErr bool
	}{
		{
			name:  "valid takeout order",
			order: Order{Items: items, Total: SumPrices(items), Mode: mode.Takeout, CustomerName: "Ana"},
		},
		{
			name:  "anonymous dine-in order",
			order: Order{Items: items, Total: SumPrices(items), Mode: mode.DineIn},
		},
		{
			name:    "no items",
			order:   Order{Items: nil, Total: decimal.Zero, Mode: mode.DineIn},
			wantErr: true,
		},
		{
			name:    "negative total",
			order:   Order{Items: items, Total: decimal.NewFromInt(-1), Mode: mode.DineIn},
			wantErr: true,
		},
		{
			name:    "unknown mode",
			order:   Order{Items: items, Total: SumPrices(items), Mode: mode.Mode("delivery")},
			wantErr: true,
		},
		{
			name:    "name too long",
			order:   Order{Items: items, Total: SumPrices(items), Mode: mode.DineIn, CustomerName: strings.Repeat("a", MaxCustomerNameLength+1)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.ValidateNew()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateNew() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("ValidateNew() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSumPrices(t *testing.T) {
	got := SumPrices([]orderitem.OrderItem{item(1, "25.0"), item(2, "35.0")})
	if !got.Equal(decimal.NewFromInt(60)) {
		t.Errorf("SumPrices() = %s, want 60", got)
	}
}

func TestQueryOrdersModel_Page(t *testing.T) {
	orders := []Order{{ID: 5}, {ID: 4}, {ID: 3}, {ID: 2}, {ID: 1}}

	tests := []struct {
		name  string
		query QueryOrdersModel
		want  []int64
	}{
		{name: "no paging", query: QueryOrdersModel{}, want: []int64{5, 4, 3, 2, 1}},
		{name: "limit", query: QueryOrdersModel{Limit: 2}, want: []int64{5, 4}},
		{name: "offset and limit", query: QueryOrdersModel{Offset: 1, Limit: 2}, want: []int64{4, 3}},
		{name: "offset past end", query: QueryOrdersModel{Offset: 9}, want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.query.Page(orders)
			if len(got) != len(tt.want) {
				t.Fatalf("Page() returned %d orders, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("Page()[%d].ID = %d, want %d", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestQueryOrdersModel_Matches(t *testing.T) {
	q := QueryOrdersModel{Statuses: []status.Status{status.Pending, status.Preparing}}

	if !q.Matches(&Order{ID: 1, Status: status.Pending}) {
		t.Error("Matches() = false for pending order, want true")
	}
	if q.Matches(&Order{ID: 2, Status: status.Ready}) {
		t.Error("Matches() = true for ready order, want false")
	}
}

func TestNewView_JSON(t *testing.T) {
	o := Order{
		ID:           7,
		Items:        []orderitem.OrderItem{item(1, "25"), item(2, "35")},
		Total:        decimal.NewFromInt(60),
		Status:       status.Pending,
		Mode:         mode.Takeout,
		CustomerName: "Ana",
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	names := map[int64]string{1: "Americano", 2: "Cappuccino"}

	view := NewView(o, func(id int64) string { return names[id] })
	if view.Items[1].Name != "Cappuccino" {
		t.Errorf("Items[1].Name = %q, want %q", view.Items[1].Name, "Cappuccino")
	}

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if total, ok := decoded["total"].(float64); !ok || total != 60 {
		t.Errorf("total = %v, want number 60", decoded["total"])
	}
	if _, ok := decoded["clientToken"]; ok {
		t.Error("clientToken must be omitted when empty")
	}
}
