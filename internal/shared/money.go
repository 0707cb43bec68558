package shared

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount parses a tax-exclusive amount from its wire representation.
// Amounts travel as strings to avoid float drift in JSON payloads.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("malformed amount %q: %w", raw, ErrBadRequest)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("negative amount %q: %w", raw, ErrBadRequest)
	}
	return d, nil
}
