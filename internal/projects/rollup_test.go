package projects

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func amt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestComputeProgress(t *testing.T) {
	quotes := []RollupQuote{
		{Status: "VALIDATED", AmountHT: amt(1000)},
		{Status: "FULFILLED", AmountHT: amt(4000)},
	}
	// counted=5000, delivered=4000 -> 80%
	require.Equal(t, 80, ComputeProgress(quotes))
}

func TestComputeProgressNoCountedQuotes(t *testing.T) {
	require.Equal(t, 0, ComputeProgress(nil))
	require.Equal(t, 0, ComputeProgress([]RollupQuote{
		{Status: "PENDING_VALIDATION", AmountHT: amt(900)},
		{Status: "REJECTED", AmountHT: amt(100)},
		{Status: "EXPIRED", AmountHT: amt(250)},
	}))
}

func TestComputeProgressIgnoresNonCountedStatuses(t *testing.T) {
	quotes := []RollupQuote{
		{Status: "VALIDATED", AmountHT: amt(500)},
		{Status: "FULFILLED", AmountHT: amt(500)},
		{Status: "PENDING_VALIDATION", AmountHT: amt(9999)},
		{Status: "REJECTED", AmountHT: amt(9999)},
	}
	require.Equal(t, 50, ComputeProgress(quotes))
}

func TestComputeProgressRounds(t *testing.T) {
	quotes := []RollupQuote{
		{Status: "VALIDATED", AmountHT: amt(2000)},
		{Status: "FULFILLED", AmountHT: amt(1000)},
	}
	// 1000/3000 = 33.33...% -> 33
	require.Equal(t, 33, ComputeProgress(quotes))

	quotes = []RollupQuote{
		{Status: "VALIDATED", AmountHT: amt(1000)},
		{Status: "FULFILLED", AmountHT: amt(2000)},
	}
	// 2000/3000 = 66.66...% -> 67
	require.Equal(t, 67, ComputeProgress(quotes))
}

func TestComputeProgressPureAndIdempotent(t *testing.T) {
	quotes := []RollupQuote{
		{Status: "FULFILLED", AmountHT: decimal.RequireFromString("1234.56")},
		{Status: "VALIDATED", AmountHT: decimal.RequireFromString("765.44")},
	}
	first := ComputeProgress(quotes)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, ComputeProgress(quotes))
	}
}

func TestComputeProgressFullyDelivered(t *testing.T) {
	quotes := []RollupQuote{
		{Status: "FULFILLED", AmountHT: amt(100)},
		{Status: "FULFILLED", AmountHT: amt(900)},
	}
	require.Equal(t, 100, ComputeProgress(quotes))
}
