package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/logger"
	"github.com/rl1809/inventory-tracker/internal/port"
)

const idempotencyKeyPrefix = "receipt:"

type ReceiptService struct {
	lots     port.LotRepository
	cache    port.CacheRepository
	renderer port.DocumentRenderer
	now      func() time.Time
	log      zerolog.Logger
}

// NewReceiptService wires the fulfillment engine. cache may be nil, in which
// case idempotency keys are ignored.
func NewReceiptService(lots port.LotRepository, cache port.CacheRepository, renderer port.DocumentRenderer) *ReceiptService {
	return &ReceiptService{
		lots:     lots,
		cache:    cache,
		renderer: renderer,
		now:      time.Now,
		log:      logger.WithComponent("receipts"),
	}
}

// Generate validates the request, deducts stock for every line, prices the
// lines and renders the document. Stock changes, numbering and rendering all
// happen inside one transaction: if any line is short or the document cannot
// be produced, no lot is changed.
func (s *ReceiptService) Generate(ctx context.Context, idempotencyKey string, req domain.ReceiptRequest) (domain.Receipt, []byte, error) {
	if err := req.Validate(); err != nil {
		return domain.Receipt{}, nil, err
	}

	key := strings.TrimSpace(idempotencyKey)
	if key != "" && s.cache != nil {
		ok, err := s.cache.SetIdempotency(ctx, idempotencyKeyPrefix+key)
		if err != nil {
			return domain.Receipt{}, nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return domain.Receipt{}, nil, domain.ErrDuplicateRequest
		}
	}

	var (
		receipt  domain.Receipt
		document []byte
	)
	err := s.lots.WithTx(ctx, func(tx port.LotTx) error {
		lines, err := fulfill(ctx, tx, req.Lines)
		if err != nil {
			return err
		}

		createdAt := s.now()
		receipt = domain.Receipt{
			Number:    NewReceiptNumber(createdAt),
			CreatedAt: createdAt,
			Customer:  req.Customer,
			Lines:     lines,
			TaxRate:   req.TaxRate,
			Totals:    CalculateTotals(lines, req.TaxRate),
		}

		document, err = s.renderer.Render(receipt)
		if err != nil {
			return fmt.Errorf("render receipt %s: %w", receipt.Number, err)
		}
		return nil
	})
	if err != nil {
		if key != "" && s.cache != nil {
			if releaseErr := s.cache.ReleaseIdempotency(ctx, idempotencyKeyPrefix+key); releaseErr != nil {
				s.log.Warn().Err(releaseErr).Str("key", key).Msg("failed to release idempotency key")
			}
		}
		return domain.Receipt{}, nil, err
	}

	s.log.Info().
		Str("receipt", receipt.Number).
		Int("lines", len(receipt.Lines)).
		Str("grand_total", receipt.GrandTotal.StringFixed(2)).
		Msg("receipt generated")

	return receipt, document, nil
}

// fulfill locks every requested part in sorted order before planning, so two
// transactions touching the same parts always wait on each other in the same
// order. Quantities deducted by an earlier line are visible to later lines for
// the same part.
func fulfill(ctx context.Context, tx port.LotTx, requests []domain.LineRequest) ([]domain.ReceiptLine, error) {
	parts := make([]string, 0, len(requests))
	locked := make(map[string][]domain.Lot, len(requests))
	for _, req := range requests {
		if _, ok := locked[req.Part]; ok {
			continue
		}
		locked[req.Part] = nil
		parts = append(parts, req.Part)
	}
	sort.Strings(parts)

	for _, part := range parts {
		lots, err := tx.LockByPart(ctx, part)
		if err != nil {
			return nil, fmt.Errorf("lock lots for part %s: %w", part, err)
		}
		SortFIFO(lots)
		locked[part] = lots
	}

	lines := make([]domain.ReceiptLine, 0, len(requests))
	for _, req := range requests {
		lots := locked[req.Part]

		allocations, err := PlanDeduction(req.Part, lots, req.Quantity)
		if err != nil {
			return nil, err
		}

		for _, a := range allocations {
			if err := tx.Deduct(ctx, a.LotID, a.Quantity); err != nil {
				return nil, fmt.Errorf("deduct %d from lot %d: %w", a.Quantity, a.LotID, err)
			}
			for i := range lots {
				if lots[i].ID == a.LotID {
					lots[i].Quantity -= a.Quantity
					break
				}
			}
		}

		var description string
		if len(lots) > 0 {
			description = lots[0].Description
		}

		lines = append(lines, domain.ReceiptLine{
			Part:        req.Part,
			Description: description,
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice,
			LineTotal:   LineTotal(req.Quantity, req.UnitPrice),
			Allocations: allocations,
		})
	}

	return lines, nil
}

// SortFIFO orders lots oldest manufacture first, ties by id.
func SortFIFO(lots []domain.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if !lots[i].MfgDate.Equal(lots[j].MfgDate) {
			return lots[i].MfgDate.Before(lots[j].MfgDate)
		}
		return lots[i].ID < lots[j].ID
	})
}

// PlanDeduction walks lots in the given order and takes from each until
// quantity is covered. lots are not modified.
func PlanDeduction(part string, lots []domain.Lot, quantity int) ([]domain.Allocation, error) {
	available := 0
	for _, lot := range lots {
		available += lot.Quantity
	}
	if available < quantity {
		return nil, &domain.InsufficientStockError{Part: part, Available: available, Requested: quantity}
	}

	var allocations []domain.Allocation
	remaining := quantity
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		if lot.Quantity <= 0 {
			continue
		}
		take := min(remaining, lot.Quantity)
		allocations = append(allocations, domain.Allocation{LotID: lot.ID, Batch: lot.Batch, Quantity: take})
		remaining -= take
	}

	return allocations, nil
}

// NewReceiptNumber returns RCP-<unix millis>-<8 hex chars>.
func NewReceiptNumber(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("RCP-%d-%s", now.UnixMilli(), id[:8])
}
