package mode

import (
	"database/sql/driver"
	"fmt"

	"github.com/corray333/backend-labs/cafe/internal/service/apperr"
)

// Mode tells the kitchen how the order is served. It never changes after creation.
type Mode string

const (
	DineIn  Mode = "dine-in"
	Takeout Mode = "takeout"
)

func (m Mode) String() string {
	return string(m)
}

func (m Mode) Value() (driver.Value, error) {
	return m.String(), nil
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case DineIn.String():
		return DineIn, nil
	case Takeout.String():
		return Takeout, nil
	default:
		return "", apperr.Validation("mode", fmt.Sprintf("unknown value %q", s))
	}
}
