package service

import (
	"context"
	"time"
)

// PasswordReset is what the out-of-band channel needs to deliver a reset link.
type PasswordReset struct {
	UserID    string
	Name      string
	Email     string
	ResetURL  string
	ExpiresAt time.Time
}

// ResetNotifier dispatches reset links.  Implementations must honour ctx
// and return an error rather than block past its deadline.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, r PasswordReset) error
}
