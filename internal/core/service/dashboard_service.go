package service

import (
	"context"
	"fmt"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/core/shelflife"
	"github.com/rl1809/inventory-tracker/internal/port"
)

type DashboardService struct {
	lots port.LotRepository
}

func NewDashboardService(lots port.LotRepository) *DashboardService {
	return &DashboardService{lots: lots}
}

func (s *DashboardService) KPIs(ctx context.Context) (domain.KPIs, error) {
	totals, err := s.lots.Totals(ctx)
	if err != nil {
		return domain.KPIs{}, fmt.Errorf("stock totals: %w", err)
	}

	profile, err := s.lots.AgeingProfile(ctx)
	if err != nil {
		return domain.KPIs{}, fmt.Errorf("ageing profile: %w", err)
	}

	return Aggregate(totals, profile), nil
}

// Aggregate classifies every lot with the shelflife thresholds. Near-expiry is
// the high risk class, so the percentage and the risk counts cannot disagree.
func Aggregate(totals domain.StockTotals, profile []domain.LotAgeing) domain.KPIs {
	kpis := domain.KPIs{
		TotalStock:    totals.TotalStock,
		TotalItems:    totals.TotalItems,
		AverageAgeing: totals.AverageAgeing,
		AgeingBuckets: make(map[shelflife.AgeingBucket]int, len(shelflife.AgeingBuckets)),
		ExpiryRisk:    make(map[shelflife.ExpiryRisk]int, len(shelflife.ExpiryRisks)),
	}
	for _, b := range shelflife.AgeingBuckets {
		kpis.AgeingBuckets[b] = 0
	}
	for _, r := range shelflife.ExpiryRisks {
		kpis.ExpiryRisk[r] = 0
	}

	near := 0
	for _, p := range profile {
		kpis.AgeingBuckets[shelflife.BucketFor(p.AgeingDays)]++
		kpis.ExpiryRisk[shelflife.RiskFor(p.DaysToExpiry)]++
		if shelflife.IsNearExpiry(p.DaysToExpiry) {
			near++
		}
	}

	if totals.TotalItems > 0 {
		kpis.PercentNearExpiry = float64(near) / float64(totals.TotalItems) * 100
	}

	return kpis
}
