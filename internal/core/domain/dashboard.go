package domain

import "github.com/rl1809/inventory-tracker/internal/core/shelflife"

// StockTotals are the aggregates computed by the store.
type StockTotals struct {
	TotalStock    int64
	TotalItems    int
	AverageAgeing float64
}

// LotAgeing is the stored projection of one lot, used for bucketing.
type LotAgeing struct {
	AgeingDays   int
	DaysToExpiry int
}

type KPIs struct {
	TotalStock        int64
	TotalItems        int
	PercentNearExpiry float64
	AverageAgeing     float64
	AgeingBuckets     map[shelflife.AgeingBucket]int
	ExpiryRisk        map[shelflife.ExpiryRisk]int
}
