package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eventbook/pkg/bus"
	"eventbook/pkg/notify"
	"eventbook/services/coordinator"
)

const durableName = "notifier-dispatch"

// Worker drains the notification dispatch stream into recipient mailboxes.
// Delivery is at least once: the broker redelivers un-acked messages, and
// the mailbox insert is idempotent on the notification id, so a redelivered
// payload lands exactly one row.
type Worker struct {
	store  coordinator.Store
	bus    *bus.Bus
	logger zerolog.Logger

	subsMu sync.Mutex
	subs   []io.Closer
}

// NewWorker creates a worker bound to the provided dependencies.
func NewWorker(store coordinator.Store, bus *bus.Bus, logger zerolog.Logger) (*Worker, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if bus == nil {
		return nil, errors.New("bus is required")
	}

	return &Worker{store: store, bus: bus, logger: logger}, nil
}

// Start registers the dispatch subscription and begins processing.
func (w *Worker) Start(ctx context.Context) error {
	if w == nil {
		return errors.New("nil worker")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	closer, err := w.bus.Subscribe(ctx, notify.SubjectDispatch, durableName, w.handleDispatch)
	if err != nil {
		return err
	}

	w.subsMu.Lock()
	w.subs = append(w.subs, closer)
	w.subsMu.Unlock()
	return nil
}

// Close tears down active subscriptions.
func (w *Worker) Close() error {
	if w == nil {
		return nil
	}

	w.subsMu.Lock()
	defer w.subsMu.Unlock()

	var firstErr error
	for _, sub := range w.subs {
		if sub == nil {
			continue
		}
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.subs = nil
	return firstErr
}

// handleDispatch persists one dispatch payload. A returned error naks the
// message so the broker redelivers it.
func (w *Worker) handleDispatch(ctx context.Context, data []byte) error {
	var p notify.Payload
	if err := json.Unmarshal(data, &p); err != nil {
		// Malformed payloads never become valid; ack and drop.
		w.logger.Error().Err(err).Msg("dropping malformed dispatch payload")
		return nil
	}
	if p.ID == uuid.Nil || p.RecipientID == uuid.Nil {
		w.logger.Error().Str("payload", string(data)).Msg("dropping dispatch payload without ids")
		return nil
	}

	if err := w.store.AddNotification(ctx, coordinator.Notification{
		ID:          p.ID,
		RecipientID: p.RecipientID,
		Type:        p.Type,
		Content:     p.Content,
		EventID:     p.EventID,
		CreatedAt:   p.CreatedAt,
	}); err != nil {
		w.logger.Warn().Err(err).Str("notification_id", p.ID.String()).Msg("mailbox insert failed, will retry")
		return err
	}

	w.logger.Debug().
		Str("notification_id", p.ID.String()).
		Str("recipient_id", p.RecipientID.String()).
		Str("type", p.Type).
		Msg("notification delivered")
	return nil
}
