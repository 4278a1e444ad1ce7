package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/txxdx/devcamper-api/internal/logging"
	"github.com/txxdx/devcamper-api/internal/service"
)

// Consumer drains the reset queue and hands every event to a notifier,
// normally mail.ResetNotifier.
type Consumer struct {
	URL      string
	Queue    string
	Notifier service.ResetNotifier
	Log      logging.Logger
	// SendTimeout bounds a single delivery attempt.
	SendTimeout time.Duration
}

// Run connects to the broker and consumes until ctx is cancelled.  Broken
// connections are re-dialed with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn(ctx, "reset-consumer: dial failed", "err", err, "retry_in", backoff.String())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn(ctx, "reset-consumer: consume loop ended; reconnecting", "err", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		c.Log.Warn(ctx, "reset-consumer: set QoS failed", "err", err)
	}
	if err := declareQueue(ch, c.Queue); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	c.Log.Info(ctx, "reset-consumer: consuming", "queue", c.Queue)
	for d := range msgs {
		if err := c.handle(ctx, d.Body); err != nil {
			c.Log.Error(ctx, "reset-consumer: handle message failed", "err", err)
			// reject without requeue to avoid tight loops; reset links are short-lived anyway
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var ev PasswordResetRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Email == "" || ev.ResetURL == "" {
		return errors.New("event missing email or reset url")
	}
	if !ev.ExpiresAt.IsZero() && time.Now().After(ev.ExpiresAt) {
		c.Log.Info(ctx, "reset-consumer: dropping expired reset", "user_id", ev.UserID)
		return nil
	}
	timeout := c.SendTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.Notifier.SendPasswordReset(sendCtx, ev.reset()); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	c.Log.Info(ctx, "reset-consumer: reset email sent", "user_id", ev.UserID)
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
