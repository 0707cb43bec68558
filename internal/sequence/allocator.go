// Package sequence allocates human-legible sequential document numbers.
//
// Numbers are unique per family across all time and strictly increasing per
// calendar-year bucket. The counter lives in the document_sequences table and
// is advanced with an atomic upsert, so allocation must run inside the same
// transaction that inserts the document row.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Family identifies a document numbering namespace.
type Family string

const (
	// FamilyQuote numbers quotes (devis), e.g. DEV-2025-004.
	FamilyQuote Family = "DEV"
	// FamilyPurchaseOrder numbers purchase orders (bons de commande), e.g. BDC-2025-004.
	FamilyPurchaseOrder Family = "BDC"
)

// Querier is the subset of pgx.Tx the allocator needs. Passing the caller's
// transaction keeps the counter advance and the document insert atomic.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Allocator produces the next document number for a family and year bucket.
type Allocator struct{}

// Next advances the (family, year) counter and returns the formatted number.
// Only the year of date matters; formatting is locale independent.
func (Allocator) Next(ctx context.Context, q Querier, family Family, date time.Time) (string, error) {
	year := date.Year()
	var seq int64
	err := q.QueryRow(ctx, `
		INSERT INTO document_sequences (family, year, seq)
		VALUES ($1, $2, 1)
		ON CONFLICT (family, year)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, string(family), year).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("sequence: next %s-%d: %w", family, year, err)
	}
	return Format(family, year, seq), nil
}

// Format renders a document number: {FAMILY}-{YYYY}-{SEQ} zero-padded to three
// digits. Sequences past 999 widen naturally and keep sorting by prefix.
func Format(family Family, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%03d", family, year, seq)
}

// Prefix returns the shared prefix of all numbers in a family-year bucket.
func Prefix(family Family, year int) string {
	return fmt.Sprintf("%s-%d-", family, year)
}
