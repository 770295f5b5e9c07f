package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
	"github.com/rl1809/inventory-tracker/internal/port"
)

const userColumns = `id, username, password_hash, email, role, created_at, updated_at`

type userRow struct {
	ID           int64          `db:"id"`
	Username     string         `db:"username"`
	PasswordHash string         `db:"password_hash"`
	Email        sql.NullString `db:"email"`
	Role         string         `db:"role"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		Email:        r.Email.String,
		Role:         domain.Role(r.Role),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// nullable stores an empty email as NULL so the unique index ignores it.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type UserStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var _ port.UserRepository = (*UserStore)(nil)

func (s *UserStore) Create(ctx context.Context, user domain.User) (domain.User, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, email, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username, user.PasswordHash, nullable(user.Email), string(user.Role), now, now,
	)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", mapError(err, "user", user.Username))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user id: %w", err)
	}
	user.ID = id
	user.CreatedAt, user.UpdatedAt = now, now
	return user, nil
}

func (s *UserStore) getBy(ctx context.Context, column string, value any) (domain.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	if err != nil {
		return domain.User{}, mapError(err, "user", value)
	}
	return row.toDomain(), nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (domain.User, error) {
	return s.getBy(ctx, "id", id)
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return s.getBy(ctx, "username", username)
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.getBy(ctx, "email", email)
}

func (s *UserStore) Update(ctx context.Context, user domain.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET username = ?, password_hash = ?, email = ?, role = ?, updated_at = ?
		WHERE id = ?`,
		user.Username, user.PasswordHash, nullable(user.Email), string(user.Role), s.now(), user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user %d: %w", user.ID, mapError(err, "user", user.ID))
	}
	return checkAffected(res, "user", user.ID)
}

func (s *UserStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return checkAffected(res, "user", id)
}

func (s *UserStore) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY created_at DESC, id DESC`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toDomain())
	}
	return users, nil
}
