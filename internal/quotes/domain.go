package quotes

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// Status is a quote lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING_VALIDATION"
	StatusValidated Status = "VALIDATED"
	StatusFulfilled Status = "FULFILLED"
	StatusRejected  Status = "REJECTED"
	StatusExpired   Status = "EXPIRED"
)

// transitions is the explicit adjacency table of allowed status edges.
// Every (from, to) pair not listed here is rejected; there is no generic
// status write.
var transitions = map[Status][]Status{
	StatusPending:   {StatusValidated, StatusRejected, StatusExpired},
	StatusValidated: {StatusFulfilled, StatusRejected, StatusExpired},
	StatusFulfilled: nil,
	StatusRejected:  nil,
	StatusExpired:   nil,
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transitions leave s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether the edge from -> to is in the table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// counted reports whether a quote in this status contributes to the owning
// project's progress. Progress is defined over validated and fulfilled
// quotes, so any edge touching either status requires a rollup.
func (s Status) counted() bool {
	return s == StatusValidated || s == StatusFulfilled
}

func rollupNeeded(from, to Status) bool {
	return from.counted() || to.counted()
}

// Quote is a priced proposal (devis) for a project.
type Quote struct {
	ID         int64
	Number     string
	ProjectID  int64
	AmountHT   decimal.Decimal
	ValidUntil time.Time
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var (
	// ErrNotFound indicates the quote does not exist.
	ErrNotFound = fmt.Errorf("quotes: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("quotes: invalid input: %w", shared.ErrBadRequest)
)

// InvalidTransitionError reports a rejected status edge.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("quotes: transition %s -> %s not permitted", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return shared.ErrInvalidTransition
}
