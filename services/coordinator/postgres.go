package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventbook/pkg/db"
)

// PGStore is the Postgres-backed Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an open connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var _ Store = (*PGStore)(nil)

func (s *PGStore) CreateEvent(ctx context.Context, ev Event) error {
	// The organizer membership row is born with the event; a partially
	// created event must never exist without its organizer entry.
	ctx, cancel := context.WithTimeout(ctx, db.DefaultTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
        INSERT INTO events (id, title, is_public, organizer_id, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, ev.ID, ev.Title, ev.Public, ev.OrganizerID, ev.CreatedAt); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO memberships (event_id, user_id, state, updated_at)
        VALUES ($1, $2, $3, $4)
    `, ev.ID, ev.OrganizerID, StateOrganizer, ev.CreatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PGStore) Event(ctx context.Context, id uuid.UUID) (Event, error) {
	var ev Event
	err := db.Get(ctx, s.pool, &ev, `
        SELECT id, title, is_public, organizer_id, created_at
        FROM events
        WHERE id = $1
    `, id)
	if err != nil {
		if db.NotFound(err) {
			return Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		return Event{}, err
	}
	return ev, nil
}

func (s *PGStore) Participants(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := db.Select(ctx, s.pool, &ids, `
        SELECT user_id
        FROM memberships
        WHERE event_id = $1 AND state IN ($2, $3)
        ORDER BY updated_at
    `, eventID, StateOrganizer, StateMember)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *PGStore) MembershipState(ctx context.Context, eventID, userID uuid.UUID) (MembershipState, error) {
	var raw string
	err := db.Get(ctx, s.pool, &raw, `
        SELECT state
        FROM memberships
        WHERE event_id = $1 AND user_id = $2
    `, eventID, userID)
	if err != nil {
		if db.NotFound(err) {
			return StateNone, nil
		}
		return StateNone, err
	}
	return ParseMembershipState(raw)
}

// SetMembershipState performs a compare-and-swap on the (event, user) pair.
// Row absence encodes StateNone, so the expectation picks the statement:
// conditional INSERT from none, conditional DELETE to none, conditional
// UPDATE otherwise. Zero rows affected means the stored state diverged.
func (s *PGStore) SetMembershipState(ctx context.Context, eventID, userID uuid.UUID, next, expected MembershipState) error {
	if !next.Valid() || !expected.Valid() {
		return fmt.Errorf("invalid membership state transition %q -> %q", expected, next)
	}
	if next == expected {
		return nil
	}

	now := time.Now().UTC()

	switch {
	case expected == StateNone:
		tag, err := db.Exec(ctx, s.pool, `
            INSERT INTO memberships (event_id, user_id, state, updated_at)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (event_id, user_id) DO NOTHING
        `, eventID, userID, next, now)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStaleState
		}
	case next == StateNone:
		tag, err := db.Exec(ctx, s.pool, `
            DELETE FROM memberships
            WHERE event_id = $1 AND user_id = $2 AND state = $3
        `, eventID, userID, expected)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStaleState
		}
	default:
		tag, err := db.Exec(ctx, s.pool, `
            UPDATE memberships
            SET state = $3, updated_at = $4
            WHERE event_id = $1 AND user_id = $2 AND state = $5
        `, eventID, userID, next, now, expected)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrStaleState
		}
	}

	return nil
}

func (s *PGStore) CreateJoinRequest(ctx context.Context, req JoinRequest) error {
	_, err := db.Exec(ctx, s.pool, `
        INSERT INTO join_requests (id, event_id, requester_id, created_at)
        VALUES ($1, $2, $3, $4)
    `, req.ID, req.EventID, req.RequesterID, req.CreatedAt)
	return err
}

func (s *PGStore) JoinRequestByID(ctx context.Context, id uuid.UUID) (JoinRequest, error) {
	var req JoinRequest
	err := db.Get(ctx, s.pool, &req, `
        SELECT id, event_id, requester_id, created_at
        FROM join_requests
        WHERE id = $1
    `, id)
	if err != nil {
		if db.NotFound(err) {
			return JoinRequest{}, fmt.Errorf("join request %s: %w", id, ErrNotFound)
		}
		return JoinRequest{}, err
	}
	return req, nil
}

// ConsumeJoinRequest deletes the request and returns it. Exactly one of any
// number of concurrent consumers gets the row; the rest observe ErrNotFound.
func (s *PGStore) ConsumeJoinRequest(ctx context.Context, id uuid.UUID) (JoinRequest, error) {
	var req JoinRequest
	err := db.Get(ctx, s.pool, &req, `
        DELETE FROM join_requests
        WHERE id = $1
        RETURNING id, event_id, requester_id, created_at
    `, id)
	if err != nil {
		if db.NotFound(err) {
			return JoinRequest{}, fmt.Errorf("join request %s: %w", id, ErrNotFound)
		}
		return JoinRequest{}, err
	}
	return req, nil
}

func (s *PGStore) JoinRequestsForEvent(ctx context.Context, eventID uuid.UUID) ([]JoinRequest, error) {
	var reqs []JoinRequest
	err := db.Select(ctx, s.pool, &reqs, `
        SELECT id, event_id, requester_id, created_at
        FROM join_requests
        WHERE event_id = $1
        ORDER BY created_at
    `, eventID)
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (s *PGStore) CreateInvitation(ctx context.Context, inv Invitation) error {
	_, err := db.Exec(ctx, s.pool, `
        INSERT INTO invitations (id, event_id, inviter_id, invitee_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, inv.ID, inv.EventID, inv.InviterID, inv.InviteeID, inv.Status, inv.CreatedAt)
	return err
}

func (s *PGStore) InvitationByID(ctx context.Context, id uuid.UUID) (Invitation, error) {
	var inv Invitation
	err := db.Get(ctx, s.pool, &inv, `
        SELECT id, event_id, inviter_id, invitee_id, status, created_at, resolved_at
        FROM invitations
        WHERE id = $1
    `, id)
	if err != nil {
		if db.NotFound(err) {
			return Invitation{}, fmt.Errorf("invitation %s: %w", id, ErrNotFound)
		}
		return Invitation{}, err
	}
	return inv, nil
}

// ResolveInvitation moves a pending invitation to a terminal status. A
// concurrent resolution wins the conditional update and the loser sees
// ErrConflict.
func (s *PGStore) ResolveInvitation(ctx context.Context, id uuid.UUID, status InvitationStatus, resolvedAt time.Time) error {
	tag, err := db.Exec(ctx, s.pool, `
        UPDATE invitations
        SET status = $2, resolved_at = $3
        WHERE id = $1 AND status = $4
    `, id, status, resolvedAt, InvitationPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing invitation from an already-resolved one.
		if _, err := s.InvitationByID(ctx, id); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (s *PGStore) InvitationsForUser(ctx context.Context, inviteeID uuid.UUID) ([]Invitation, error) {
	var invs []Invitation
	err := db.Select(ctx, s.pool, &invs, `
        SELECT id, event_id, inviter_id, invitee_id, status, created_at, resolved_at
        FROM invitations
        WHERE invitee_id = $1 AND status = $2
        ORDER BY created_at DESC
    `, inviteeID, InvitationPending)
	if err != nil {
		return nil, err
	}
	return invs, nil
}

// AddNotification inserts a mailbox row. ON CONFLICT DO NOTHING keeps the
// insert idempotent under at-least-once redelivery.
func (s *PGStore) AddNotification(ctx context.Context, n Notification) error {
	_, err := db.Exec(ctx, s.pool, `
        INSERT INTO notifications (id, recipient_id, type, content, event_id, read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO NOTHING
    `, n.ID, n.RecipientID, n.Type, n.Content, n.EventID, n.Read, n.CreatedAt)
	return err
}

func (s *PGStore) Notifications(ctx context.Context, recipientID uuid.UUID) ([]Notification, error) {
	var ns []Notification
	err := db.Select(ctx, s.pool, &ns, `
        SELECT id, recipient_id, type, content, event_id, read, created_at
        FROM notifications
        WHERE recipient_id = $1
        ORDER BY created_at DESC
    `, recipientID)
	if err != nil {
		return nil, err
	}
	return ns, nil
}

func (s *PGStore) MarkNotificationRead(ctx context.Context, recipientID, id uuid.UUID) error {
	tag, err := db.Exec(ctx, s.pool, `
        UPDATE notifications
        SET read = TRUE
        WHERE id = $1 AND recipient_id = $2
    `, id, recipientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PGStore) DeleteNotification(ctx context.Context, recipientID, id uuid.UUID) error {
	tag, err := db.Exec(ctx, s.pool, `
        DELETE FROM notifications
        WHERE id = $1 AND recipient_id = $2
    `, id, recipientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	return nil
}
