package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/core/shelflife"
	"github.com/rl1809/inventory-tracker/internal/logger"
	"github.com/rl1809/inventory-tracker/internal/port"
)

type InventoryService struct {
	lots port.LotRepository
	now  func() time.Time
	log  zerolog.Logger
}

func NewInventoryService(lots port.LotRepository) *InventoryService {
	return &InventoryService{
		lots: lots,
		now:  time.Now,
		log:  logger.WithComponent("inventory"),
	}
}

func (s *InventoryService) today() time.Time {
	return shelflife.Date(s.now())
}

func (s *InventoryService) Create(ctx context.Context, lot domain.Lot) (domain.Lot, error) {
	if err := lot.Validate(); err != nil {
		return domain.Lot{}, err
	}
	lot.Refresh(s.today())

	created, err := s.lots.Create(ctx, lot)
	if err != nil {
		return domain.Lot{}, err
	}

	s.log.Info().Int64("id", created.ID).Str("part", created.Part).Str("batch", created.Batch).Msg("lot created")
	return created, nil
}

// Get returns the lot with its day counts projected to today.
func (s *InventoryService) Get(ctx context.Context, id int64) (domain.Lot, error) {
	lot, err := s.lots.Get(ctx, id)
	if err != nil {
		return domain.Lot{}, err
	}
	lot.Refresh(s.today())
	return lot, nil
}

// Update persists recomputed day counts only when a date changed, but the
// returned lot is always projected to today.
func (s *InventoryService) Update(ctx context.Context, id int64, patch domain.LotPatch) (domain.Lot, error) {
	lot, err := s.lots.Get(ctx, id)
	if err != nil {
		return domain.Lot{}, err
	}

	if patch.Apply(&lot) {
		lot.Refresh(s.today())
	}
	if err := lot.Validate(); err != nil {
		return domain.Lot{}, err
	}

	if err := s.lots.Update(ctx, lot); err != nil {
		return domain.Lot{}, err
	}

	s.log.Info().Int64("id", id).Msg("lot updated")

	updated, err := s.lots.Get(ctx, id)
	if err != nil {
		return domain.Lot{}, err
	}
	updated.Refresh(s.today())
	return updated, nil
}

func (s *InventoryService) Delete(ctx context.Context, id int64) error {
	if err := s.lots.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("id", id).Msg("lot deleted")
	return nil
}

func (s *InventoryService) List(ctx context.Context, filter domain.LotFilter) (domain.LotPage, error) {
	filter.Normalize()

	page, err := s.lots.List(ctx, filter)
	if err != nil {
		return domain.LotPage{}, err
	}

	today := s.today()
	for i := range page.Lots {
		page.Lots[i].Refresh(today)
	}
	return page, nil
}

func (s *InventoryService) UniqueParts(ctx context.Context) (domain.UniqueParts, error) {
	return s.lots.UniqueParts(ctx)
}

func (s *InventoryService) Summary(ctx context.Context) ([]domain.PartSummary, error) {
	return s.lots.Summary(ctx)
}

// RefreshMetrics rewrites the stored day counts of every lot as of today.
func (s *InventoryService) RefreshMetrics(ctx context.Context) (int, error) {
	n, err := s.lots.RefreshMetrics(ctx, s.today())
	if err != nil {
		return 0, fmt.Errorf("refresh metrics: %w", err)
	}
	s.log.Info().Int("lots", n).Msg("lot metrics refreshed")
	return n, nil
}

// ImportRecord is one parsed import row with its source line.
type ImportRecord struct {
	Line int
	Lot  domain.Lot
}

type RowError struct {
	Line  int
	Error string
}

type ImportResult struct {
	Inserted  int
	TotalRows int
	Skipped   []RowError
}

// Import upserts records by (batch, part). Invalid records and per-row store
// failures are reported and skipped; the rest of the file still imports.
func (s *InventoryService) Import(ctx context.Context, records []ImportRecord) ImportResult {
	result := ImportResult{TotalRows: len(records)}
	today := s.today()

	for _, rec := range records {
		lot := rec.Lot
		if err := lot.Validate(); err != nil {
			result.Skipped = append(result.Skipped, RowError{Line: rec.Line, Error: err.Error()})
			continue
		}
		lot.Refresh(today)

		if err := s.lots.Upsert(ctx, lot); err != nil {
			s.log.Error().Err(err).Int("line", rec.Line).Msg("failed to upsert lot")
			result.Skipped = append(result.Skipped, RowError{Line: rec.Line, Error: "could not be saved"})
			continue
		}
		result.Inserted++
	}

	s.log.Info().Int("inserted", result.Inserted).Int("rows", result.TotalRows).Msg("import completed")
	return result
}
