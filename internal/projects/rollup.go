package projects

import "github.com/shopspring/decimal"

// Quote statuses the rollup recognises. Declared here rather than imported
// from the quotes package so that quotes can embed the rollup in its own
// transactions without an import cycle.
const (
	rollupStatusValidated = "VALIDATED"
	rollupStatusFulfilled = "FULFILLED"
)

// RollupQuote is the slice of quote state the rollup reads.
type RollupQuote struct {
	Status   string
	AmountHT decimal.Decimal
}

// ComputeProgress derives a project's progress percentage from the current
// state of its quotes. Counted work is the amount of validated and fulfilled
// quotes; delivered work is the fulfilled subset. The result is a pure
// function of the input: recomputing from canonical state any number of
// times yields the same value, which is what keeps concurrent and repeated
// rollups convergent. There is deliberately no incremental variant.
func ComputeProgress(quotes []RollupQuote) int {
	counted := decimal.Zero
	delivered := decimal.Zero
	for _, q := range quotes {
		switch q.Status {
		case rollupStatusValidated:
			counted = counted.Add(q.AmountHT)
		case rollupStatusFulfilled:
			counted = counted.Add(q.AmountHT)
			delivered = delivered.Add(q.AmountHT)
		}
	}
	if !counted.IsPositive() {
		return 0
	}
	pct := delivered.Mul(decimal.NewFromInt(100)).Div(counted).Round(0)
	return int(pct.IntPart())
}
