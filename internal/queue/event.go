// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "time"

    "github.com/txxdx/devcamper-api/internal/service"
)

// PasswordResetRequestedEvent is published when a user asks for a reset
// link.  The reset URL carries the raw token, so the queue must be treated
// as being as sensitive as the mailbox it feeds.
type PasswordResetRequestedEvent struct {
    UserID      string    `json:"user_id"`
    Name        string    `json:"name"`
    Email       string    `json:"email"`
    ResetURL    string    `json:"reset_url"`
    ExpiresAt   time.Time `json:"expires_at"`
    RequestedAt time.Time `json:"requested_at"`
}

func eventFrom(r service.PasswordReset, now time.Time) PasswordResetRequestedEvent {
    return PasswordResetRequestedEvent{
        UserID:      r.UserID,
        Name:        r.Name,
        Email:       r.Email,
        ResetURL:    r.ResetURL,
        ExpiresAt:   r.ExpiresAt.UTC(),
        RequestedAt: now.UTC(),
    }
}

func (e PasswordResetRequestedEvent) reset() service.PasswordReset {
    return service.PasswordReset{
        UserID:    e.UserID,
        Name:      e.Name,
        Email:     e.Email,
        ResetURL:  e.ResetURL,
        ExpiresAt: e.ExpiresAt,
    }
}
