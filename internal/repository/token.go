package repository

import (
	"context"
	"time"

	"phantom-auth/internal/domain"
)

// TokenRepository defines persistence operations for AccessToken entities.
// Rows are never deleted here; revocation flips a flag and expired rows are
// retained for audit.
type TokenRepository interface {
	Init(ctx context.Context) error

	// InsertWithCap atomically inserts the token and, in the same
	// transaction, revokes the owner's oldest-by-expiry active tokens so
	// that at most maxActive tokens (the new one included) remain active
	// as of now. Returns the ids of the tokens it revoked.
	InsertWithCap(ctx context.Context, token *domain.AccessToken, maxActive int, now time.Time) ([]string, error)

	// GetByHash returns the token with the given digest, or nil when no
	// such row exists.
	GetByHash(ctx context.Context, tokenHash string) (*domain.AccessToken, error)

	// RevokeByHash marks the matching token revoked. Unknown digests and
	// already-revoked rows are silent no-ops.
	RevokeByHash(ctx context.Context, tokenHash string) error

	// ListActiveByUser returns the user's active tokens ordered by
	// ascending expiry.
	ListActiveByUser(ctx context.Context, userID int64, now time.Time) ([]domain.AccessToken, error)
}
