package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a monetary amount in French convention with a euro
// sign, e.g. "1 234,56 €". Formatting works on the decimal's text form so
// large amounts keep their exact digits.
func FormatAmount(d decimal.Decimal) string {
	return frenchNumber(d.StringFixed(2)) + " €"
}

// FormatQuantity renders a quantity without trailing zeros, with a French
// decimal comma, e.g. "3" or "2,5".
func FormatQuantity(d decimal.Decimal) string {
	s := d.Round(3).String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
	}
	return frenchNumber(s)
}

// FormatDate renders a date in French day/month/year order.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%02d/%02d/%04d", t.Day(), int(t.Month()), t.Year())
}

// frenchNumber groups integer digits with no-break spaces and swaps the
// decimal point for a comma. The no-break space survives the cp1252
// translation used by the PDF layer.
func frenchNumber(s string) string {
	var b strings.Builder
	if strings.HasPrefix(s, "-") {
		b.WriteByte('-')
		s = s[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteRune(' ')
		}
		b.WriteByte(intPart[i])
	}
	if hasFrac {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	return b.String()
}
