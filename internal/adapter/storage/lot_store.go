package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/core/shelflife"
	"github.com/rl1809/inventory-tracker/internal/port"
)

// ErrOptimisticLock is returned when a guarded deduction finds less stock
// than the transaction planned with.
var ErrOptimisticLock = fmt.Errorf("%w: optimistic lock conflict", domain.ErrConflict)

const maxTxAttempts = 3

const lotColumns = `id, jwl_part, customer_part, description, uom, batch, mfg_date, exp_date,
	qty, weight, ageing_days, days_to_expiry, created_at, updated_at`

type lotRow struct {
	ID           int64           `db:"id"`
	Part         string          `db:"jwl_part"`
	CustomerPart string          `db:"customer_part"`
	Description  string          `db:"description"`
	UOM          string          `db:"uom"`
	Batch        string          `db:"batch"`
	MfgDate      time.Time       `db:"mfg_date"`
	ExpDate      time.Time       `db:"exp_date"`
	Qty          int             `db:"qty"`
	Weight       decimal.Decimal `db:"weight"`
	AgeingDays   int             `db:"ageing_days"`
	DaysToExpiry int             `db:"days_to_expiry"`
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r lotRow) toDomain() domain.Lot {
	return domain.Lot{
		ID:           r.ID,
		Part:         r.Part,
		CustomerPart: r.CustomerPart,
		Description:  r.Description,
		UOM:          r.UOM,
		Batch:        r.Batch,
		MfgDate:      shelflife.Date(r.MfgDate),
		ExpDate:      shelflife.Date(r.ExpDate),
		Quantity:     r.Qty,
		Weight:       r.Weight,
		AgeingDays:   r.AgeingDays,
		DaysToExpiry: r.DaysToExpiry,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toLots(rows []lotRow) []domain.Lot {
	lots := make([]domain.Lot, 0, len(rows))
	for _, r := range rows {
		lots = append(lots, r.toDomain())
	}
	return lots
}

type LotStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewLotStore(db *sqlx.DB) *LotStore {
	return &LotStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var _ port.LotRepository = (*LotStore)(nil)

func (s *LotStore) isMySQL() bool {
	return s.db.DriverName() == DriverMySQL
}

func (s *LotStore) Create(ctx context.Context, lot domain.Lot) (domain.Lot, error) {
	now := s.now()
	lot.CreatedAt, lot.UpdatedAt = now, now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO inventories (jwl_part, customer_part, description, uom, batch, mfg_date, exp_date,
			qty, weight, ageing_days, days_to_expiry, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lot.Part, lot.CustomerPart, lot.Description, lot.UOM, lot.Batch,
		shelflife.Date(lot.MfgDate), shelflife.Date(lot.ExpDate),
		lot.Quantity, lot.Weight, lot.AgeingDays, lot.DaysToExpiry, now, now,
	)
	if err != nil {
		return domain.Lot{}, fmt.Errorf("insert lot: %w", mapError(err, "lot", lot.Batch))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Lot{}, fmt.Errorf("insert lot id: %w", err)
	}
	lot.ID = id
	return lot, nil
}

func (s *LotStore) Upsert(ctx context.Context, lot domain.Lot) error {
	now := s.now()

	query := `
		INSERT INTO inventories (jwl_part, customer_part, description, uom, batch, mfg_date, exp_date,
			qty, weight, ageing_days, days_to_expiry, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if s.isMySQL() {
		query += `
		ON DUPLICATE KEY UPDATE
			customer_part = VALUES(customer_part), description = VALUES(description), uom = VALUES(uom),
			mfg_date = VALUES(mfg_date), exp_date = VALUES(exp_date), qty = VALUES(qty),
			weight = VALUES(weight), ageing_days = VALUES(ageing_days),
			days_to_expiry = VALUES(days_to_expiry), updated_at = VALUES(updated_at)`
	} else {
		query += `
		ON CONFLICT(batch, jwl_part) DO UPDATE SET
			customer_part = excluded.customer_part, description = excluded.description, uom = excluded.uom,
			mfg_date = excluded.mfg_date, exp_date = excluded.exp_date, qty = excluded.qty,
			weight = excluded.weight, ageing_days = excluded.ageing_days,
			days_to_expiry = excluded.days_to_expiry, updated_at = excluded.updated_at`
	}

	_, err := s.db.ExecContext(ctx, query,
		lot.Part, lot.CustomerPart, lot.Description, lot.UOM, lot.Batch,
		shelflife.Date(lot.MfgDate), shelflife.Date(lot.ExpDate),
		lot.Quantity, lot.Weight, lot.AgeingDays, lot.DaysToExpiry, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert lot %s/%s: %w", lot.Part, lot.Batch, err)
	}
	return nil
}

func (s *LotStore) Get(ctx context.Context, id int64) (domain.Lot, error) {
	var row lotRow
	err := s.db.GetContext(ctx, &row, `SELECT `+lotColumns+` FROM inventories WHERE id = ?`, id)
	if err != nil {
		return domain.Lot{}, mapError(err, "lot", id)
	}
	return row.toDomain(), nil
}

func (s *LotStore) Update(ctx context.Context, lot domain.Lot) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE inventories
		SET jwl_part = ?, customer_part = ?, description = ?, uom = ?, batch = ?,
			mfg_date = ?, exp_date = ?, qty = ?, weight = ?,
			ageing_days = ?, days_to_expiry = ?, updated_at = ?
		WHERE id = ?`,
		lot.Part, lot.CustomerPart, lot.Description, lot.UOM, lot.Batch,
		shelflife.Date(lot.MfgDate), shelflife.Date(lot.ExpDate), lot.Quantity, lot.Weight,
		lot.AgeingDays, lot.DaysToExpiry, s.now(), lot.ID,
	)
	if err != nil {
		return fmt.Errorf("update lot %d: %w", lot.ID, mapError(err, "lot", lot.ID))
	}
	return checkAffected(res, "lot", lot.ID)
}

func (s *LotStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inventories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete lot %d: %w", id, err)
	}
	return checkAffected(res, "lot", id)
}

func likeArg(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

func lotWhere(f domain.LotFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Part != "" {
		conds = append(conds, "LOWER(jwl_part) LIKE ?")
		args = append(args, likeArg(f.Part))
	}
	if f.CustomerPart != "" {
		conds = append(conds, "LOWER(customer_part) LIKE ?")
		args = append(args, likeArg(f.CustomerPart))
	}
	if f.Batch != "" {
		conds = append(conds, "LOWER(batch) LIKE ?")
		args = append(args, likeArg(f.Batch))
	}
	if f.Search != "" {
		conds = append(conds, `(LOWER(description) LIKE ? OR LOWER(batch) LIKE ?
			OR LOWER(jwl_part) LIKE ? OR LOWER(customer_part) LIKE ?)`)
		term := likeArg(f.Search)
		args = append(args, term, term, term, term)
	}
	if f.Mfg != nil {
		conds = append(conds, "mfg_date BETWEEN ? AND ?")
		args = append(args, shelflife.Date(f.Mfg.Start), shelflife.Date(f.Mfg.End))
	}
	if f.Exp != nil {
		conds = append(conds, "exp_date BETWEEN ? AND ?")
		args = append(args, shelflife.Date(f.Exp.Start), shelflife.Date(f.Exp.End))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *LotStore) List(ctx context.Context, filter domain.LotFilter) (domain.LotPage, error) {
	filter.Normalize()
	where, args := lotWhere(filter)

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM inventories`+where, args...); err != nil {
		return domain.LotPage{}, fmt.Errorf("count lots: %w", err)
	}

	var rows []lotRow
	query := `SELECT ` + lotColumns + ` FROM inventories` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	if err := s.db.SelectContext(ctx, &rows, query, append(args, filter.Limit, filter.Offset())...); err != nil {
		return domain.LotPage{}, fmt.Errorf("list lots: %w", err)
	}

	return domain.LotPage{
		Lots:  toLots(rows),
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

func (s *LotStore) UniqueParts(ctx context.Context) (domain.UniqueParts, error) {
	var out domain.UniqueParts
	if err := s.db.SelectContext(ctx, &out.Parts,
		`SELECT DISTINCT jwl_part FROM inventories ORDER BY jwl_part`); err != nil {
		return domain.UniqueParts{}, fmt.Errorf("distinct parts: %w", err)
	}
	if err := s.db.SelectContext(ctx, &out.CustomerParts,
		`SELECT DISTINCT customer_part FROM inventories ORDER BY customer_part`); err != nil {
		return domain.UniqueParts{}, fmt.Errorf("distinct customer parts: %w", err)
	}
	return out, nil
}

func (s *LotStore) Summary(ctx context.Context) ([]domain.PartSummary, error) {
	var rows []struct {
		Part        string `db:"jwl_part"`
		Description string `db:"description"`
		Available   int    `db:"available"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT jwl_part, description, SUM(qty) AS available
		FROM inventories
		GROUP BY jwl_part, description
		HAVING SUM(qty) > 0
		ORDER BY jwl_part, description`)
	if err != nil {
		return nil, fmt.Errorf("inventory summary: %w", err)
	}

	out := make([]domain.PartSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.PartSummary{Part: r.Part, Description: r.Description, Available: r.Available})
	}
	return out, nil
}

func (s *LotStore) Totals(ctx context.Context) (domain.StockTotals, error) {
	var row struct {
		TotalStock    int64   `db:"total_stock"`
		TotalItems    int     `db:"total_items"`
		AverageAgeing float64 `db:"average_ageing"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT COALESCE(SUM(qty), 0) AS total_stock,
			COUNT(*) AS total_items,
			COALESCE(AVG(ageing_days), 0) AS average_ageing
		FROM inventories`)
	if err != nil {
		return domain.StockTotals{}, fmt.Errorf("stock totals: %w", err)
	}
	return domain.StockTotals{
		TotalStock:    row.TotalStock,
		TotalItems:    row.TotalItems,
		AverageAgeing: row.AverageAgeing,
	}, nil
}

func (s *LotStore) AgeingProfile(ctx context.Context) ([]domain.LotAgeing, error) {
	var rows []struct {
		AgeingDays   int `db:"ageing_days"`
		DaysToExpiry int `db:"days_to_expiry"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT ageing_days, days_to_expiry FROM inventories`); err != nil {
		return nil, fmt.Errorf("ageing profile: %w", err)
	}

	out := make([]domain.LotAgeing, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.LotAgeing{AgeingDays: r.AgeingDays, DaysToExpiry: r.DaysToExpiry})
	}
	return out, nil
}

// RefreshMetrics recomputes the stored day counts in Go so both dialects
// share the shelflife definitions.
func (s *LotStore) RefreshMetrics(ctx context.Context, asOf time.Time) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var rows []struct {
		ID      int64     `db:"id"`
		MfgDate time.Time `db:"mfg_date"`
		ExpDate time.Time `db:"exp_date"`
	}
	if err := tx.SelectContext(ctx, &rows, `SELECT id, mfg_date, exp_date FROM inventories`); err != nil {
		return 0, fmt.Errorf("select lot dates: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `UPDATE inventories SET ageing_days = ?, days_to_expiry = ? WHERE id = ?`)
	if err != nil {
		return 0, fmt.Errorf("prepare refresh: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		m := shelflife.Compute(r.MfgDate, r.ExpDate, asOf)
		if _, err := stmt.ExecContext(ctx, m.AgeingDays, m.DaysToExpiry, r.ID); err != nil {
			return 0, fmt.Errorf("refresh lot %d: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit refresh: %w", err)
	}
	return len(rows), nil
}

// WithTx runs fn in a transaction and commits when it returns nil. A MySQL
// deadlock rolls back the whole attempt, so fn is run again up to
// maxTxAttempts times.
func (s *LotStore) WithTx(ctx context.Context, fn func(tx port.LotTx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if !isDeadlock(err) {
			return err
		}
	}
	return fmt.Errorf("%w: transaction deadlocked %d times: %v", domain.ErrConflict, maxTxAttempts, err)
}

func (s *LotStore) runTx(ctx context.Context, fn func(tx port.LotTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&lotTx{tx: tx, forUpdate: s.isMySQL(), now: s.now}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type lotTx struct {
	tx        *sqlx.Tx
	forUpdate bool
	now       func() time.Time
}

// LockByPart reads with FOR UPDATE on MySQL. SQLite transactions are opened
// with BEGIN IMMEDIATE, which already holds the database write lock.
func (t *lotTx) LockByPart(ctx context.Context, part string) ([]domain.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM inventories WHERE jwl_part = ? ORDER BY mfg_date ASC, id ASC`
	if t.forUpdate {
		query += ` FOR UPDATE`
	}

	var rows []lotRow
	if err := t.tx.SelectContext(ctx, &rows, query, part); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("select lots: %w", err)
	}
	return toLots(rows), nil
}

func (t *lotTx) Deduct(ctx context.Context, lotID int64, quantity int) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE inventories
		SET qty = qty - ?, updated_at = ?
		WHERE id = ? AND qty >= ?`,
		quantity, t.now(), lotID, quantity,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}
	return nil
}
