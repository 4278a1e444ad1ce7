package mail

import (
	"context"
	"fmt"

	"github.com/txxdx/devcamper-api/internal/service"
)

const resetSubject = "Password reset token"

// ResetNotifier sends reset links synchronously through a Mailer.
type ResetNotifier struct {
	Mailer Mailer
}

var _ service.ResetNotifier = ResetNotifier{}

func (n ResetNotifier) SendPasswordReset(ctx context.Context, r service.PasswordReset) error {
	return n.Mailer.Send(ctx, ResetMessage(r))
}

// ResetMessage renders the email for r.
func ResetMessage(r service.PasswordReset) Message {
	body := fmt.Sprintf("Hi %s,\n\nYou are receiving this email because you (or someone else) has requested the reset of a password. "+
		"Please make a PUT request to:\n\n%s\n\nThe link expires at %s UTC. If you did not request a reset you can ignore this email.\n",
		r.Name, r.ResetURL, r.ExpiresAt.UTC().Format("2006-01-02 15:04"))
	return Message{To: r.Email, Subject: resetSubject, Body: body}
}
