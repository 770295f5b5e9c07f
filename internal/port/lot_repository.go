package port

import (
	"context"
	"time"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
)

type LotRepository interface {
	// Create inserts a lot; a duplicate (batch, part) pair is ErrConflict
	Create(ctx context.Context, lot domain.Lot) (domain.Lot, error)

	// Upsert inserts or overwrites the lot sharing its (batch, part) key
	Upsert(ctx context.Context, lot domain.Lot) error

	Get(ctx context.Context, id int64) (domain.Lot, error)

	// Update overwrites every mutable column of an existing lot
	Update(ctx context.Context, lot domain.Lot) error

	Delete(ctx context.Context, id int64) error

	// List applies the filter and returns one page, newest first
	List(ctx context.Context, filter domain.LotFilter) (domain.LotPage, error)

	UniqueParts(ctx context.Context) (domain.UniqueParts, error)

	// Summary returns available quantity per part/description with stock > 0
	Summary(ctx context.Context) ([]domain.PartSummary, error)

	// Totals returns sum of quantity, lot count and mean stored ageing
	Totals(ctx context.Context) (domain.StockTotals, error)

	// AgeingProfile returns the stored day counts of every lot
	AgeingProfile(ctx context.Context) ([]domain.LotAgeing, error)

	// RefreshMetrics recomputes stored day counts as of asOf
	RefreshMetrics(ctx context.Context, asOf time.Time) (int, error)

	// WithTx runs fn in one transaction, committing only when fn returns nil
	WithTx(ctx context.Context, fn func(tx LotTx) error) error
}

// LotTx is the view of the store available inside a fulfillment transaction.
type LotTx interface {
	// LockByPart returns every lot of part, oldest manufacture first, locked
	// against concurrent deduction until the transaction ends
	LockByPart(ctx context.Context, part string) ([]domain.Lot, error)

	// Deduct lowers a lot's quantity, failing rather than going below zero
	Deduct(ctx context.Context, lotID int64, quantity int) error
}
