package port

import (
	"time"

	"github.com/rl1809/inventory-tracker/internal/core/domain"
)

type PasswordHasher interface {
	Hash(password string) (string, error)

	// Compare returns nil only when password matches hash
	Compare(hash, password string) error
}

type TokenIssuer interface {
	Issue(principal domain.Principal) (token string, expiresAt time.Time, err error)

	// Verify returns the principal of a valid, unexpired token
	Verify(token string) (domain.Principal, error)
}
