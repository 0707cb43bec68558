package projects

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// Project is a client engagement (affaire). It owns quotes and purchase
// orders and exposes an aggregate progress percentage derived from its
// quotes. ProgressPercent is owned by the rollup; it is never edited
// directly.
type Project struct {
	ID              int64
	Code            string
	ClientRef       string
	PurchaseBudget  decimal.Decimal
	ProgressPercent int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var (
	// ErrNotFound indicates the project does not exist.
	ErrNotFound = fmt.Errorf("projects: %w", shared.ErrNotFound)
	// ErrHasDocuments rejects deletion of a project that still owns quotes or orders.
	ErrHasDocuments = fmt.Errorf("projects: owns documents: %w", shared.ErrBadRequest)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("projects: invalid input: %w", shared.ErrBadRequest)
)
