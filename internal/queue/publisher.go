package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/txxdx/devcamper-api/internal/service"
)

// Publisher publishes reset events to a durable RabbitMQ queue.  It keeps
// one connection and channel and re-dials lazily after the broker drops
// them.  Publishing is serialised by sem, which callers acquire under their
// context so a stuck dial cannot queue requests forever.
type Publisher struct {
	url   string
	queue string

	sem  chan struct{}
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ service.ResetNotifier = (*Publisher)(nil)

// dialTimeout bounds connection setup when the caller's context has no deadline.
const dialTimeout = 5 * time.Second

func NewPublisher(url, queue string) *Publisher {
	return &Publisher{url: url, queue: queue, sem: make(chan struct{}, 1)}
}

func (p *Publisher) acquire(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("rabbitmq publisher busy: %w", ctx.Err())
	}
}

func (p *Publisher) release() { <-p.sem }

// SendPasswordReset publishes the event as a persistent JSON message.
func (p *Publisher) SendPasswordReset(ctx context.Context, r service.PasswordReset) error {
	body, err := json.Marshal(eventFrom(r, time.Now()))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.sem <- struct{}{}
	defer p.release()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

// channel returns an open channel, dialing when needed.  Callers hold sem.
// The dial is bounded by ctx's deadline, or dialTimeout without one.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	timeout := dialTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := declareQueue(ch, p.queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// declareQueue makes sure the durable queue exists (idempotent).
func declareQueue(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}
