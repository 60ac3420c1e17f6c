package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, msg []byte) error
	Close() error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	opts = append([]nats.Option{
		nats.Name("foodorder-be"),
		nats.Timeout(5 * time.Second),
	}, opts...)

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.conn.Publish(subject, msg)
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

// NoopPublisher drops every message. Used when no NATS url is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NoopPublisher) Close() error                                  { return nil }

// NewPublisher connects to NATS, or returns a NoopPublisher for an empty url.
func NewPublisher(url string) (Publisher, error) {
	if url == "" {
		return NoopPublisher{}, nil
	}
	return NewNATSPublisher(url)
}

// Emitter encodes order events onto a single subject.
type Emitter struct {
	pub     Publisher
	subject string
}

func NewEmitter(pub Publisher, subject string) *Emitter {
	if subject == "" {
		subject = DefaultOrderSubject
	}
	return &Emitter{pub: pub, subject: subject}
}

func (e *Emitter) Emit(ctx context.Context, ev OrderEvent) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	msg, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.EventType, err)
	}
	if err := e.pub.Publish(ctx, e.subject, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.EventType, err)
	}
	return nil
}
