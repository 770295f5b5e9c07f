package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency removes a key so a failed request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error

	// Allow counts a hit in the current window, returns false once limit is exceeded
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
