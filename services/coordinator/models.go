package coordinator

import (
	"time"

	"github.com/google/uuid"
)

// Event is the slice of event metadata the coordinator reads. Content
// editing (title, description, schedule) belongs to another service; the
// coordinator only needs ownership and visibility to authorize transitions.
type Event struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Public      bool      `json:"public" db:"is_public"`
	OrganizerID uuid.UUID `json:"organizer_id" db:"organizer_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Membership is one (event, user) relation. At most one row exists per pair.
type Membership struct {
	EventID   uuid.UUID       `json:"event_id" db:"event_id"`
	UserID    uuid.UUID       `json:"user_id" db:"user_id"`
	State     MembershipState `json:"state" db:"state"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// JoinRequest exists only while the requester's membership state is
// pending_request; approval or rejection consumes it.
type JoinRequest struct {
	ID          uuid.UUID `json:"id" db:"id"`
	EventID     uuid.UUID `json:"event_id" db:"event_id"`
	RequesterID uuid.UUID `json:"requester_id" db:"requester_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// InvitationStatus values are terminal once accepted or declined.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// Invitation is an offer from an organizer or member to a non-member.
type Invitation struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	EventID    uuid.UUID        `json:"event_id" db:"event_id"`
	InviterID  uuid.UUID        `json:"inviter_id" db:"inviter_id"`
	InviteeID  uuid.UUID        `json:"invitee_id" db:"invitee_id"`
	Status     InvitationStatus `json:"status" db:"status"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Notification is one mailbox entry. Immutable after creation except for
// the read flag; deletable only by its recipient.
type Notification struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	RecipientID uuid.UUID  `json:"recipient_id" db:"recipient_id"`
	Type        string     `json:"type" db:"type"`
	Content     string     `json:"content" db:"content"`
	EventID     *uuid.UUID `json:"event_id,omitempty" db:"event_id"`
	Read        bool       `json:"read" db:"read"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
