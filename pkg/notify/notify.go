package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// SubjectDispatch carries dispatch requests from the coordinator to the
	// notifier worker.
	SubjectDispatch = "eventbook.notifications.dispatch"

	// StreamName is the JetStream stream backing the dispatch subject.
	StreamName = "EVENTBOOK_NOTIFICATIONS"

	defaultMaxAttempts = 3
	defaultBackoff     = 100 * time.Millisecond
)

// Notification type identifiers. The template catalog keys off these.
const (
	TypeRequestReceived    = "request_received"
	TypeRequestApproved    = "request_approved"
	TypeRequestRejected    = "request_rejected"
	TypeInvitationReceived = "invitation_received"
	TypeInvitationAccepted = "invitation_accepted"
	TypeInvitationDeclined = "invitation_declined"
	TypeMemberJoined       = "member_joined"
	TypeMemberLeft         = "member_left"
	TypeMemberRemoved      = "member_removed"
	TypeSystem             = "system"
)

// ErrDispatchFailed marks a notification dropped after retry exhaustion.
// Membership transitions must never fail because of it.
var ErrDispatchFailed = errors.New("notification dispatch failed")

// Message is a single notification addressed to one user's mailbox.
type Message struct {
	RecipientID uuid.UUID  `json:"recipient_id"`
	Type        string     `json:"type"`
	Content     string     `json:"content"`
	EventID     *uuid.UUID `json:"event_id,omitempty"`
}

// Payload is the wire form of a dispatch request. The id is assigned by the
// dispatcher before the first attempt so redeliveries stay idempotent.
type Payload struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Message
}

// Publisher is the bus-side dispatch channel. *bus.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// Sink writes a notification into the recipient's mailbox. The store-side
// implementation must be idempotent on the payload id.
type Sink interface {
	Deliver(ctx context.Context, p Payload) error
}

// Options configures a Dispatcher.
type Options struct {
	Publisher   Publisher // optional: nil means deliver straight to the sink
	Sink        Sink      // optional fallback when the publisher is absent or exhausted
	Subject     string
	MaxAttempts int
	Backoff     time.Duration
	Logger      zerolog.Logger
}

// Dispatcher delivers notifications at-least-once with bounded retries.
// It is a separate failure domain from the membership transitions that
// trigger it: Notify never blocks a transition and its errors are advisory.
type Dispatcher struct {
	pub         Publisher
	sink        Sink
	subject     string
	maxAttempts int
	backoff     time.Duration
	logger      zerolog.Logger
	clock       func() time.Time
	newID       func() uuid.UUID
}

// NewDispatcher creates a Dispatcher with defaults applied.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.Publisher == nil && opts.Sink == nil {
		return nil, errors.New("notify: a publisher or a sink is required")
	}
	if opts.Subject == "" {
		opts.Subject = SubjectDispatch
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}

	return &Dispatcher{
		pub:         opts.Publisher,
		sink:        opts.Sink,
		subject:     opts.Subject,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		logger:      opts.Logger,
		clock:       time.Now,
		newID:       uuid.New,
	}, nil
}

// Notify queues m for delivery and returns the notification id. The id is
// valid even when delivery ultimately fails; in that case the returned error
// wraps ErrDispatchFailed and the message has been dropped with a log entry.
func (d *Dispatcher) Notify(ctx context.Context, m Message) (uuid.UUID, error) {
	if m.RecipientID == uuid.Nil {
		return uuid.Nil, errors.New("notify: recipient is required")
	}
	if m.Type == "" {
		m.Type = TypeSystem
	}

	p := Payload{
		ID:        d.newID(),
		CreatedAt: d.clock().UTC(),
		Message:   m,
	}

	var err error
	if d.pub != nil {
		if err = d.attempt(ctx, func(ctx context.Context) error {
			return d.pub.Publish(ctx, d.subject, p)
		}); err == nil {
			dispatchAttempts.WithLabelValues(outcomeOK).Inc()
			return p.ID, nil
		}
	}

	// Publisher absent or exhausted: deliver straight to the mailbox.
	if d.sink != nil {
		if err = d.attempt(ctx, func(ctx context.Context) error {
			return d.sink.Deliver(ctx, p)
		}); err == nil {
			dispatchAttempts.WithLabelValues(outcomeOK).Inc()
			return p.ID, nil
		}
	}

	dispatchAttempts.WithLabelValues(outcomeError).Inc()
	dispatchDropped.Inc()
	d.logger.Error().
		Err(err).
		Str("notification_id", p.ID.String()).
		Str("recipient_id", m.RecipientID.String()).
		Str("type", m.Type).
		Msg("notification dropped after retry exhaustion")

	return p.ID, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
}

// attempt runs fn up to maxAttempts times with exponential backoff.
func (d *Dispatcher) attempt(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	delay := d.backoff

	for i := 0; i < d.maxAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
	}

	return lastErr
}
