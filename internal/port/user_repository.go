package port

import (
	"context"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
)

type UserRepository interface {
	// Create inserts a user; duplicate username or email is ErrConflict
	Create(ctx context.Context, user domain.User) (domain.User, error)

	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)

	Update(ctx context.Context, user domain.User) error
	Delete(ctx context.Context, id int64) error

	// ListByRole returns users of one role, newest first
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
}
