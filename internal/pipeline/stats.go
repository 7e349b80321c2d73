package pipeline

import (
	"github.com/shopspring/decimal"

	"consignrecon/internal"
)

// Aggregate reduces a record set to summary counts and totals. Split rows
// contribute their proportional value so a split settlement is counted once.
func Aggregate(records []internal.MatchedRecord) internal.Statistics {
	stats := internal.Statistics{TotalValue: decimal.Zero, AverageValue: decimal.Zero}
	for _, r := range records {
		stats.TotalRecords++
		switch r.Status {
		case internal.StatusMatched:
			stats.MatchedCount++
		case internal.StatusSplit:
			stats.SplitCount++
		default:
			stats.UnmatchedCount++
		}
		if r.Reconciled {
			stats.ReconciledCount++
		}
		stats.TotalValue = stats.TotalValue.Add(r.EffectiveValue())
	}
	if stats.TotalRecords == 0 {
		return stats
	}
	n := decimal.NewFromInt(int64(stats.TotalRecords))
	stats.AverageValue = stats.TotalValue.Div(n).Round(2)
	stats.MatchRate = float64(stats.MatchedCount+stats.SplitCount) * 100 / float64(stats.TotalRecords)
	return stats
}
