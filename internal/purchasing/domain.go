package purchasing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// Direction distinguishes outgoing orders (to suppliers) from incoming ones.
type Direction string

const (
	DirectionOutgoing Direction = "OUTGOING"
	DirectionIncoming Direction = "INCOMING"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionOutgoing || d == DirectionIncoming
}

// Status is a purchase order lifecycle state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusReceived  Status = "RECEIVED"
	StatusValidated Status = "VALIDATED"
	StatusCancelled Status = "CANCELLED"
)

// transitions is the explicit adjacency table of allowed status edges.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusReceived, StatusValidated, StatusCancelled},
	StatusReceived:  {StatusValidated, StatusCancelled},
	StatusValidated: nil,
	StatusCancelled: nil,
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

// DeliveryMode selects the destination block on the printed order.
type DeliveryMode string

const (
	DeliveryNone     DeliveryMode = "NONE"
	DeliveryWorkshop DeliveryMode = "WORKSHOP"
	DeliverySite     DeliveryMode = "SITE"
)

// PurchaseOrder is a bon de commande.
type PurchaseOrder struct {
	ID             int64
	Number         string
	ProjectID      int64
	SupplierID     int64
	CategoryID     int64
	Direction      Direction
	Status         Status
	AmountHT       decimal.Decimal
	OverheadAmount decimal.Decimal
	ReceivedAt     *time.Time
	DeliveryMode   DeliveryMode
	SiteAddress    string
	Comment        string
	Lines          []Line
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Line is a purchase order line item. LineAmount is always
// quantity * unit price, recomputed on every write.
type Line struct {
	ID           int64
	OrderID      int64
	Designation  string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	LineAmount   decimal.Decimal
	DisplayOrder int
}

// Category carries the overhead percentage applied to order amounts.
// Read-only from this module's perspective.
type Category struct {
	ID              int64
	Code            string
	Label           string
	OverheadPercent decimal.Decimal
}

// Supplier is reference data joined into printed orders.
type Supplier struct {
	ID            int64
	Name          string
	Address       string
	Phone         string
	Email         string
	TaxID         string
	AccountHolder bool
}

// ComputeOverhead derives the overhead amount from a tax-exclusive amount
// and a category percentage. Never hand-edited: every amount or category
// change goes back through here.
func ComputeOverhead(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
}

// LineTotal derives a line amount from quantity and unit price.
func LineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(2)
}

var (
	// ErrNotFound indicates the order, category or supplier does not exist.
	ErrNotFound = fmt.Errorf("purchasing: %w", shared.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("purchasing: invalid input: %w", shared.ErrBadRequest)
	// ErrImmutable rejects edits to orders in a terminal status.
	ErrImmutable = fmt.Errorf("purchasing: order is no longer editable: %w", shared.ErrBadRequest)
	// ErrCredentialRequired rejects guarded deletion without a supervisor code.
	ErrCredentialRequired = fmt.Errorf("purchasing: supervisor code required: %w", shared.ErrBadRequest)
	// ErrCredentialMismatch rejects guarded deletion with a wrong supervisor code.
	ErrCredentialMismatch = fmt.Errorf("purchasing: supervisor code mismatch: %w", shared.ErrUnauthorized)
)

// InvalidTransitionError reports a rejected status edge.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("purchasing: transition %s -> %s not permitted", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return shared.ErrInvalidTransition
}
