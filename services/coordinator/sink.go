package coordinator

import (
	"context"

	"eventbook/pkg/notify"
)

type mailboxSink struct {
	store Store
}

// MailboxSink adapts a Store into a notify.Sink, writing dispatch payloads
// straight into recipient mailboxes. It backs deployments without a broker
// and serves as the fallback channel when publishing fails.
func MailboxSink(store Store) notify.Sink {
	return &mailboxSink{store: store}
}

func (s *mailboxSink) Deliver(ctx context.Context, p notify.Payload) error {
	return s.store.AddNotification(ctx, Notification{
		ID:          p.ID,
		RecipientID: p.RecipientID,
		Type:        p.Type,
		Content:     p.Content,
		EventID:     p.EventID,
		CreatedAt:   p.CreatedAt,
	})
}
