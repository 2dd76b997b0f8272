package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type membershipKey struct {
	eventID uuid.UUID
	userID  uuid.UUID
}

// MemStore is an in-memory Store with the same compare-and-swap semantics
// as the Postgres implementation. It backs tests and local development.
type MemStore struct {
	mu            sync.Mutex
	events        map[uuid.UUID]Event
	memberships   map[membershipKey]Membership
	joinRequests  map[uuid.UUID]JoinRequest
	invitations   map[uuid.UUID]Invitation
	notifications map[uuid.UUID]Notification
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		events:        make(map[uuid.UUID]Event),
		memberships:   make(map[membershipKey]Membership),
		joinRequests:  make(map[uuid.UUID]JoinRequest),
		invitations:   make(map[uuid.UUID]Invitation),
		notifications: make(map[uuid.UUID]Notification),
	}
}

var _ Store = (*MemStore)(nil)

func (s *MemStore) CreateEvent(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[ev.ID]; ok {
		return fmt.Errorf("event %s already exists: %w", ev.ID, ErrConflict)
	}
	s.events[ev.ID] = ev
	s.memberships[membershipKey{ev.ID, ev.OrganizerID}] = Membership{
		EventID:   ev.ID,
		UserID:    ev.OrganizerID,
		State:     StateOrganizer,
		UpdatedAt: ev.CreatedAt,
	}
	return nil
}

func (s *MemStore) Event(_ context.Context, id uuid.UUID) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.events[id]
	if !ok {
		return Event{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return ev, nil
}

func (s *MemStore) Participants(_ context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []Membership
	for key, m := range s.memberships {
		if key.eventID != eventID {
			continue
		}
		if m.State == StateOrganizer || m.State == StateMember {
			members = append(members, m)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].UpdatedAt.Before(members[j].UpdatedAt)
	})

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids, nil
}

func (s *MemStore) MembershipState(_ context.Context, eventID, userID uuid.UUID) (MembershipState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.memberships[membershipKey{eventID, userID}]; ok {
		return m.State, nil
	}
	return StateNone, nil
}

func (s *MemStore) SetMembershipState(_ context.Context, eventID, userID uuid.UUID, next, expected MembershipState) error {
	if !next.Valid() || !expected.Valid() {
		return fmt.Errorf("invalid membership state transition %q -> %q", expected, next)
	}
	if next == expected {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey{eventID, userID}
	current := StateNone
	if m, ok := s.memberships[key]; ok {
		current = m.State
	}
	if current != expected {
		return ErrStaleState
	}

	if next == StateNone {
		delete(s.memberships, key)
		return nil
	}
	s.memberships[key] = Membership{
		EventID:   eventID,
		UserID:    userID,
		State:     next,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *MemStore) CreateJoinRequest(_ context.Context, req JoinRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.joinRequests {
		if existing.EventID == req.EventID && existing.RequesterID == req.RequesterID {
			return fmt.Errorf("duplicate join request: %w", ErrConflict)
		}
	}
	s.joinRequests[req.ID] = req
	return nil
}

func (s *MemStore) JoinRequestByID(_ context.Context, id uuid.UUID) (JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.joinRequests[id]
	if !ok {
		return JoinRequest{}, fmt.Errorf("join request %s: %w", id, ErrNotFound)
	}
	return req, nil
}

func (s *MemStore) ConsumeJoinRequest(_ context.Context, id uuid.UUID) (JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.joinRequests[id]
	if !ok {
		return JoinRequest{}, fmt.Errorf("join request %s: %w", id, ErrNotFound)
	}
	delete(s.joinRequests, id)
	return req, nil
}

func (s *MemStore) JoinRequestsForEvent(_ context.Context, eventID uuid.UUID) ([]JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reqs []JoinRequest
	for _, req := range s.joinRequests {
		if req.EventID == eventID {
			reqs = append(reqs, req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
	return reqs, nil
}

func (s *MemStore) CreateInvitation(_ context.Context, inv Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.invitations[inv.ID] = inv
	return nil
}

func (s *MemStore) InvitationByID(_ context.Context, id uuid.UUID) (Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok {
		return Invitation{}, fmt.Errorf("invitation %s: %w", id, ErrNotFound)
	}
	return inv, nil
}

func (s *MemStore) ResolveInvitation(_ context.Context, id uuid.UUID, status InvitationStatus, resolvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[id]
	if !ok {
		return fmt.Errorf("invitation %s: %w", id, ErrNotFound)
	}
	if inv.Status != InvitationPending {
		return ErrConflict
	}
	inv.Status = status
	inv.ResolvedAt = &resolvedAt
	s.invitations[id] = inv
	return nil
}

func (s *MemStore) InvitationsForUser(_ context.Context, inviteeID uuid.UUID) ([]Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var invs []Invitation
	for _, inv := range s.invitations {
		if inv.InviteeID == inviteeID && inv.Status == InvitationPending {
			invs = append(invs, inv)
		}
	}
	sort.Slice(invs, func(i, j int) bool {
		return invs[i].CreatedAt.After(invs[j].CreatedAt)
	})
	return invs, nil
}

func (s *MemStore) AddNotification(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[n.ID]; ok {
		return nil
	}
	s.notifications[n.ID] = n
	return nil
}

func (s *MemStore) Notifications(_ context.Context, recipientID uuid.UUID) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ns []Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			ns = append(ns, n)
		}
	}
	sort.Slice(ns, func(i, j int) bool {
		return ns[i].CreatedAt.After(ns[j].CreatedAt)
	})
	return ns, nil
}

func (s *MemStore) MarkNotificationRead(_ context.Context, recipientID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}

func (s *MemStore) DeleteNotification(_ context.Context, recipientID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	delete(s.notifications, id)
	return nil
}
