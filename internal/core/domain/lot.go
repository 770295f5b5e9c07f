package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory-tracker/internal/core/shelflife"
)

// Lot is a single batch of one part with its own dates and quantity.
// AgeingDays and DaysToExpiry are projections taken at the last Refresh and
// drift as days pass.
type Lot struct {
	ID           int64
	Part         string
	CustomerPart string
	Description  string
	UOM          string
	Batch        string
	MfgDate      time.Time
	ExpDate      time.Time
	Quantity     int
	Weight       decimal.Decimal
	AgeingDays   int
	DaysToExpiry int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Refresh recomputes the derived day counts as of asOf.
func (l *Lot) Refresh(asOf time.Time) {
	m := shelflife.Compute(l.MfgDate, l.ExpDate, asOf)
	l.AgeingDays = m.AgeingDays
	l.DaysToExpiry = m.DaysToExpiry
}

// Metrics classifies the stored projection.
func (l Lot) Metrics() shelflife.Metrics {
	return shelflife.Metrics{
		AgeingDays:   l.AgeingDays,
		DaysToExpiry: l.DaysToExpiry,
		AgeingBucket: shelflife.BucketFor(l.AgeingDays),
		ExpiryRisk:   shelflife.RiskFor(l.DaysToExpiry),
	}
}

func (l Lot) Validate() error {
	v := ValidationErrors{}
	if strings.TrimSpace(l.Part) == "" {
		v.Add("jwl_part", "JWL part is required")
	}
	if strings.TrimSpace(l.CustomerPart) == "" {
		v.Add("customer_part", "customer part is required")
	}
	if strings.TrimSpace(l.Description) == "" {
		v.Add("description", "description is required")
	}
	if strings.TrimSpace(l.UOM) == "" {
		v.Add("uom", "UOM is required")
	}
	if strings.TrimSpace(l.Batch) == "" {
		v.Add("batch", "batch is required")
	}
	if l.MfgDate.IsZero() {
		v.Add("mfg_date", "manufacturing date is required")
	}
	if l.ExpDate.IsZero() {
		v.Add("exp_date", "expiry date is required")
	}
	if l.Quantity < 0 {
		v.Add("qty", "quantity must be a non-negative integer")
	}
	if l.Weight.IsNegative() {
		v.Add("weight", "weight must be non-negative")
	}
	return v.Err()
}

// LotPatch carries the fields of a partial update; nil fields are left as is.
type LotPatch struct {
	Part         *string
	CustomerPart *string
	Description  *string
	UOM          *string
	Batch        *string
	MfgDate      *time.Time
	ExpDate      *time.Time
	Quantity     *int
	Weight       *decimal.Decimal
}

// Apply copies the set fields onto l and reports whether a date changed.
func (p LotPatch) Apply(l *Lot) (datesChanged bool) {
	if p.Part != nil {
		l.Part = *p.Part
	}
	if p.CustomerPart != nil {
		l.CustomerPart = *p.CustomerPart
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.UOM != nil {
		l.UOM = *p.UOM
	}
	if p.Batch != nil {
		l.Batch = *p.Batch
	}
	if p.MfgDate != nil {
		datesChanged = datesChanged || !p.MfgDate.Equal(l.MfgDate)
		l.MfgDate = *p.MfgDate
	}
	if p.ExpDate != nil {
		datesChanged = datesChanged || !p.ExpDate.Equal(l.ExpDate)
		l.ExpDate = *p.ExpDate
	}
	if p.Quantity != nil {
		l.Quantity = *p.Quantity
	}
	if p.Weight != nil {
		l.Weight = *p.Weight
	}
	return datesChanged
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// LotFilter selects lots for listing. Text fields match case-insensitive
// substrings; Search matches any of description, batch, part or customer part.
type LotFilter struct {
	Part         string
	CustomerPart string
	Batch        string
	Search       string
	Mfg          *shelflife.Range
	Exp          *shelflife.Range
	Page         int
	Limit        int
}

// Normalize clamps paging to sane values.
func (f *LotFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
}

func (f LotFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type LotPage struct {
	Lots  []Lot
	Total int
	Page  int
	Limit int
}

func (p LotPage) TotalPages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}

// PartSummary is the stock available for one part/description pair.
type PartSummary struct {
	Part        string
	Description string
	Available   int
}

type UniqueParts struct {
	Parts         []string
	CustomerParts []string
}
