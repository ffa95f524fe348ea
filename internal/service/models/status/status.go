// Package status is the order state machine.
//
// The states form a fixed sequence: pending, preparing, ready, confirmed.
// A transition is legal only when the requested state is at or after the
// current one. Requesting the current state is an idempotent no-op.
package status

import (
	"database/sql/driver"
	"fmt"

	"github.com/corray333/backend-labs/cafe/internal/service/apperr"
)

// Status is the lifecycle state of an order.
type Status string

const (
	Pending   Status = "pending"
	Preparing Status = "preparing"
	Ready     Status = "ready"
	Confirmed Status = "confirmed"
)

// Initial is the status of every new order.
const Initial = Pending

var ordering = []Status{Pending, Preparing, Ready, Confirmed}

// All returns the states in lifecycle order.
func All() []Status {
	out := make([]Status, len(ordering))
	copy(out, ordering)

	return out
}

func (s Status) String() string {
	return string(s)
}

// Value implements driver.Valuer.
func (s Status) Value() (driver.Value, error) {
	return s.String(), nil
}

// Rank returns the position of s in the lifecycle, or -1 for an unknown status.
func (s Status) Rank() int {
	for i, st := range ordering {
		if st == s {
			return i
		}
	}

	return -1
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// IsTerminal reports whether no further transition can change s.
func (s Status) IsTerminal() bool {
	return s == Confirmed
}

// IsActive reports whether the order still needs barista work.
func (s Status) IsActive() bool {
	return s == Pending || s == Preparing
}

// IsReady reports whether the order can be picked up.
// Confirmed orders are shown as ready on public screens.
func (s Status) IsReady() bool {
	return s == Ready || s == Confirmed
}

// Parse converts a raw string to a Status.
func Parse(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", apperr.Validation("status", fmt.Sprintf("unknown value %q", s))
	}

	return st, nil
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	return from.Valid() && to.Valid() && to.Rank() >= from.Rank()
}

// Transition applies the lifecycle rule.
// It returns the resulting status and whether it differs from the current one.
func Transition(from, to Status) (Status, bool, error) {
	if !to.Valid() {
		return from, false, apperr.Validation("status", fmt.Sprintf("unknown value %q", to))
	}
	if !CanTransition(from, to) {
		return from, false, fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, from, to)
	}

	return to, from != to, nil
}
