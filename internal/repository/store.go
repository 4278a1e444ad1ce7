package repository

import (
	"context"
	"time"

	"github.com/txxdx/devcamper-api/internal/model"
)

// UserStore is the persistence contract of the auth subsystem.  Every write
// is visible to subsequent reads from any request; implementations must not
// cache user records between calls.
type UserStore interface {
	// Create inserts u and returns it with ID and timestamps set.
	Create(ctx context.Context, u model.User) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	// GetByEmail matches the lower-cased, trimmed email.
	GetByEmail(ctx context.Context, email string) (model.User, error)
	// UpdateDetails overwrites name and email.
	UpdateDetails(ctx context.Context, id, name, email string) (model.User, error)
	// UpdatePassword replaces the hash and drops any pending reset token.
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	// ConsumeResetToken atomically swaps the password of the user holding
	// tokenHash with an expiry after now and clears the reset fields.  It
	// returns ErrNotFound when no such user exists, so a token can be
	// consumed at most once.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (model.User, error)
}
