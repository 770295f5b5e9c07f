package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/port"
)

// Mock LotRepository. WithTx holds the lock for the whole callback and
// restores the snapshot when the callback fails.
type mockLotRepo struct {
	mu     sync.Mutex
	lots   map[int64]domain.Lot
	nextID int64

	upsertErr error
	txCount   int
	lockOrder []string
}

func newMockLotRepo(lots ...domain.Lot) *mockLotRepo {
	m := &mockLotRepo{lots: make(map[int64]domain.Lot)}
	for _, l := range lots {
		if l.ID == 0 {
			m.nextID++
			l.ID = m.nextID
		} else if l.ID > m.nextID {
			m.nextID = l.ID
		}
		m.lots[l.ID] = l
	}
	return m
}

func (m *mockLotRepo) quantity(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lots[id].Quantity
}

func (m *mockLotRepo) findKey(batch, part string) (int64, bool) {
	for id, l := range m.lots {
		if l.Batch == batch && l.Part == part {
			return id, true
		}
	}
	return 0, false
}

func (m *mockLotRepo) Create(ctx context.Context, lot domain.Lot) (domain.Lot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.findKey(lot.Batch, lot.Part); ok {
		return domain.Lot{}, &domain.ConflictError{Message: "lot already exists"}
	}
	m.nextID++
	lot.ID = m.nextID
	m.lots[lot.ID] = lot
	return lot, nil
}

func (m *mockLotRepo) Upsert(ctx context.Context, lot domain.Lot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if id, ok := m.findKey(lot.Batch, lot.Part); ok {
		lot.ID = id
		m.lots[id] = lot
		return nil
	}
	m.nextID++
	lot.ID = m.nextID
	m.lots[lot.ID] = lot
	return nil
}

func (m *mockLotRepo) Get(ctx context.Context, id int64) (domain.Lot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lots[id]
	if !ok {
		return domain.Lot{}, &domain.NotFoundError{Entity: "lot", ID: id}
	}
	return l, nil
}

func (m *mockLotRepo) Update(ctx context.Context, lot domain.Lot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lots[lot.ID]; !ok {
		return &domain.NotFoundError{Entity: "lot", ID: lot.ID}
	}
	m.lots[lot.ID] = lot
	return nil
}

func (m *mockLotRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lots[id]; !ok {
		return &domain.NotFoundError{Entity: "lot", ID: id}
	}
	delete(m.lots, id)
	return nil
}

func (m *mockLotRepo) List(ctx context.Context, filter domain.LotFilter) (domain.LotPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lot
	for _, l := range m.lots {
		if filter.Part != "" && !strings.Contains(strings.ToLower(l.Part), strings.ToLower(filter.Part)) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	start := min(filter.Offset(), total)
	end := min(start+filter.Limit, total)
	return domain.LotPage{Lots: out[start:end], Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (m *mockLotRepo) UniqueParts(ctx context.Context) (domain.UniqueParts, error) {
	return domain.UniqueParts{}, nil
}

func (m *mockLotRepo) Summary(ctx context.Context) ([]domain.PartSummary, error) {
	return nil, nil
}

func (m *mockLotRepo) Totals(ctx context.Context) (domain.StockTotals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t domain.StockTotals
	sum := 0
	for _, l := range m.lots {
		t.TotalStock += int64(l.Quantity)
		t.TotalItems++
		sum += l.AgeingDays
	}
	if t.TotalItems > 0 {
		t.AverageAgeing = float64(sum) / float64(t.TotalItems)
	}
	return t, nil
}

func (m *mockLotRepo) AgeingProfile(ctx context.Context) ([]domain.LotAgeing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.LotAgeing
	for _, l := range m.lots {
		out = append(out, domain.LotAgeing{AgeingDays: l.AgeingDays, DaysToExpiry: l.DaysToExpiry})
	}
	return out, nil
}

func (m *mockLotRepo) RefreshMetrics(ctx context.Context, asOf time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, l := range m.lots {
		l.Refresh(asOf)
		m.lots[id] = l
	}
	return len(m.lots), nil
}

func (m *mockLotRepo) WithTx(ctx context.Context, fn func(tx port.LotTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	snapshot := make(map[int64]domain.Lot, len(m.lots))
	for id, l := range m.lots {
		snapshot[id] = l
	}

	if err := fn(&mockLotTx{repo: m}); err != nil {
		m.lots = snapshot
		return err
	}
	return nil
}

// mockLotTx runs with the repo lock already held.
type mockLotTx struct {
	repo *mockLotRepo
}

func (tx *mockLotTx) LockByPart(ctx context.Context, part string) ([]domain.Lot, error) {
	tx.repo.lockOrder = append(tx.repo.lockOrder, part)
	var out []domain.Lot
	for _, l := range tx.repo.lots {
		if l.Part == part {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (tx *mockLotTx) Deduct(ctx context.Context, lotID int64, quantity int) error {
	l, ok := tx.repo.lots[lotID]
	if !ok {
		return &domain.NotFoundError{Entity: "lot", ID: lotID}
	}
	if l.Quantity < quantity {
		return fmt.Errorf("lot %d changed concurrently", lotID)
	}
	l.Quantity -= quantity
	tx.repo.lots[lotID] = l
	return nil
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	idempotencySet map[string]bool
	hits           map[string]int
	err            error
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		idempotencySet: make(map[string]bool),
		hits:           make(map[string]int),
	}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

func (m *mockCacheRepo) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[key]++
	return m.hits[key] <= limit, nil
}

// Mock DocumentRenderer
type mockRenderer struct {
	err      error
	rendered int
}

func (r *mockRenderer) Render(receipt domain.Receipt) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.rendered++
	return []byte("%PDF-" + receipt.Number), nil
}

func (r *mockRenderer) ContentType() string {
	return "application/pdf"
}

// Mock UserRepository
type mockUserRepo struct {
	mu     sync.Mutex
	users  map[int64]domain.User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]domain.User)}
}

func (m *mockUserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || (u.Email != "" && existing.Email == u.Email) {
			return domain.User{}, &domain.ConflictError{Message: "user already exists"}
		}
	}
	m.nextID++
	u.ID = m.nextID
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, &domain.NotFoundError{Entity: "user", ID: id}
	}
	return u, nil
}

func (m *mockUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Username == username })
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *mockUserRepo) Update(ctx context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return &domain.NotFoundError{Entity: "user", ID: u.ID}
	}
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// plainHasher prefixes passwords so tests can read them back.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

type stubTokens struct{}

func (stubTokens) Issue(p domain.Principal) (string, time.Time, error) {
	return fmt.Sprintf("token-%d-%s", p.UserID, p.Role), time.Now().Add(time.Hour), nil
}

func (stubTokens) Verify(token string) (domain.Principal, error) {
	return domain.Principal{}, domain.ErrUnauthorized
}
