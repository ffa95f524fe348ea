package product

import "github.com/shopspring/decimal"

// Product is a read-only catalog entry.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}
