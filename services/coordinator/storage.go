package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the authoritative record of events, memberships, join requests,
// invitations, and notification mailboxes. Postgres backs it in production;
// tests use the in-memory implementation.
//
// SetMembershipState is the concurrency backbone: a compare-and-swap that
// fails with ErrStaleState unless the stored state equals the expectation.
// All other membership writes go through it.
type Store interface {
	// Events.
	CreateEvent(ctx context.Context, ev Event) error
	Event(ctx context.Context, id uuid.UUID) (Event, error)
	Participants(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)

	// Membership relation. StateNone is row absence; SetMembershipState
	// with expected StateNone inserts, with next StateNone deletes.
	MembershipState(ctx context.Context, eventID, userID uuid.UUID) (MembershipState, error)
	SetMembershipState(ctx context.Context, eventID, userID uuid.UUID, next, expected MembershipState) error

	// Join requests. ConsumeJoinRequest deletes and returns the row; a
	// concurrent consumer losing the race observes ErrNotFound, which is
	// the linearization point for duplicate approvals.
	CreateJoinRequest(ctx context.Context, req JoinRequest) error
	JoinRequestByID(ctx context.Context, id uuid.UUID) (JoinRequest, error)
	ConsumeJoinRequest(ctx context.Context, id uuid.UUID) (JoinRequest, error)
	JoinRequestsForEvent(ctx context.Context, eventID uuid.UUID) ([]JoinRequest, error)

	// Invitations. ResolveInvitation is a conditional update from pending
	// to a terminal status; zero rows affected means ErrConflict.
	CreateInvitation(ctx context.Context, inv Invitation) error
	InvitationByID(ctx context.Context, id uuid.UUID) (Invitation, error)
	ResolveInvitation(ctx context.Context, id uuid.UUID, status InvitationStatus, resolvedAt time.Time) error
	InvitationsForUser(ctx context.Context, inviteeID uuid.UUID) ([]Invitation, error)

	// Notification mailboxes. AddNotification is idempotent on the id so
	// at-least-once redelivery never produces duplicate rows.
	AddNotification(ctx context.Context, n Notification) error
	Notifications(ctx context.Context, recipientID uuid.UUID) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, recipientID, id uuid.UUID) error
	DeleteNotification(ctx context.Context, recipientID, id uuid.UUID) error
}
