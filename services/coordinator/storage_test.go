package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func seedEvent(t *testing.T, store Store, public bool) Event {
	t.Helper()

	ev := Event{
		ID:          uuid.New(),
		Title:       "team offsite",
		Public:      public,
		OrganizerID: uuid.New(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.CreateEvent(context.Background(), ev); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	return ev
}

func TestMemStoreCreateEventSeedsOrganizer(t *testing.T) {
	store := NewMemStore()
	ev := seedEvent(t, store, true)

	state, err := store.MembershipState(context.Background(), ev.ID, ev.OrganizerID)
	if err != nil {
		t.Fatalf("MembershipState() error = %v", err)
	}
	if state != StateOrganizer {
		t.Fatalf("organizer state = %v, want %v", state, StateOrganizer)
	}

	if err := store.CreateEvent(context.Background(), ev); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate CreateEvent() error = %v, want ErrConflict", err)
	}
}

func TestMemStoreSetMembershipStateCAS(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	ev := seedEvent(t, store, true)
	user := uuid.New()

	if err := store.SetMembershipState(ctx, ev.ID, user, StateMember, StateNone); err != nil {
		t.Fatalf("insert swap error = %v", err)
	}

	// A second claim of the same key must observe the stale expectation.
	err := store.SetMembershipState(ctx, ev.ID, user, StatePendingInvitation, StateNone)
	if !errors.Is(err, ErrStaleState) {
		t.Fatalf("conflicting swap error = %v, want ErrStaleState", err)
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("ErrStaleState does not wrap ErrConflict: %v", err)
	}

	if err := store.SetMembershipState(ctx, ev.ID, user, StateNone, StateMember); err != nil {
		t.Fatalf("delete swap error = %v", err)
	}

	state, err := store.MembershipState(ctx, ev.ID, user)
	if err != nil {
		t.Fatalf("MembershipState() error = %v", err)
	}
	if state != StateNone {
		t.Fatalf("state after delete = %v, want %v", state, StateNone)
	}
}

func TestMemStoreSetMembershipStateNoOp(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	ev := seedEvent(t, store, true)
	user := uuid.New()

	// next == expected is an idempotent no-op even when no row exists.
	if err := store.SetMembershipState(ctx, ev.ID, user, StateNone, StateNone); err != nil {
		t.Fatalf("no-op swap error = %v", err)
	}
}

func TestMemStoreConsumeJoinRequestOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	ev := seedEvent(t, store, false)

	req := JoinRequest{
		ID:          uuid.New(),
		EventID:     ev.ID,
		RequesterID: uuid.New(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.CreateJoinRequest(ctx, req); err != nil {
		t.Fatalf("CreateJoinRequest() error = %v", err)
	}

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		consumed int
		notFound int
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.ConsumeJoinRequest(ctx, req.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				consumed++
			case errors.Is(err, ErrNotFound):
				notFound++
			default:
				t.Errorf("ConsumeJoinRequest() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if consumed != 1 {
		t.Fatalf("consumed = %d, want exactly 1", consumed)
	}
	if notFound != workers-1 {
		t.Fatalf("notFound = %d, want %d", notFound, workers-1)
	}
}

func TestMemStoreDuplicateJoinRequest(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	ev := seedEvent(t, store, false)
	requester := uuid.New()

	first := JoinRequest{ID: uuid.New(), EventID: ev.ID, RequesterID: requester, CreatedAt: time.Now().UTC()}
	if err := store.CreateJoinRequest(ctx, first); err != nil {
		t.Fatalf("first CreateJoinRequest() error = %v", err)
	}

	second := JoinRequest{ID: uuid.New(), EventID: ev.ID, RequesterID: requester, CreatedAt: time.Now().UTC()}
	if err := store.CreateJoinRequest(ctx, second); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate CreateJoinRequest() error = %v, want ErrConflict", err)
	}
}

func TestMemStoreResolveInvitationTerminal(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	ev := seedEvent(t, store, false)

	inv := Invitation{
		ID:        uuid.New(),
		EventID:   ev.ID,
		InviterID: ev.OrganizerID,
		InviteeID: uuid.New(),
		Status:    InvitationPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateInvitation(ctx, inv); err != nil {
		t.Fatalf("CreateInvitation() error = %v", err)
	}

	now := time.Now().UTC()
	if err := store.ResolveInvitation(ctx, inv.ID, InvitationAccepted, now); err != nil {
		t.Fatalf("first ResolveInvitation() error = %v", err)
	}
	if err := store.ResolveInvitation(ctx, inv.ID, InvitationDeclined, now); !errors.Is(err, ErrConflict) {
		t.Fatalf("second ResolveInvitation() error = %v, want ErrConflict", err)
	}

	got, err := store.InvitationByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("InvitationByID() error = %v", err)
	}
	if got.Status != InvitationAccepted {
		t.Fatalf("status = %v, want %v", got.Status, InvitationAccepted)
	}
	if got.ResolvedAt == nil {
		t.Fatal("ResolvedAt not set")
	}
}

func TestMemStoreNotificationsMailbox(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	recipient := uuid.New()
	other := uuid.New()

	base := time.Now().UTC()
	first := Notification{ID: uuid.New(), RecipientID: recipient, Type: "system", Content: "first", CreatedAt: base}
	second := Notification{ID: uuid.New(), RecipientID: recipient, Type: "system", Content: "second", CreatedAt: base.Add(time.Second)}

	for _, n := range []Notification{first, second} {
		if err := store.AddNotification(ctx, n); err != nil {
			t.Fatalf("AddNotification() error = %v", err)
		}
	}
	// Redelivery of an already stored notification is a silent no-op.
	if err := store.AddNotification(ctx, first); err != nil {
		t.Fatalf("duplicate AddNotification() error = %v", err)
	}

	ns, err := store.Notifications(ctx, recipient)
	if err != nil {
		t.Fatalf("Notifications() error = %v", err)
	}
	if len(ns) != 2 {
		t.Fatalf("len(notifications) = %d, want 2", len(ns))
	}
	if ns[0].Content != "second" {
		t.Fatalf("newest first: got %q", ns[0].Content)
	}

	if err := store.MarkNotificationRead(ctx, other, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign MarkNotificationRead() error = %v, want ErrNotFound", err)
	}
	if err := store.MarkNotificationRead(ctx, recipient, first.ID); err != nil {
		t.Fatalf("MarkNotificationRead() error = %v", err)
	}

	if err := store.DeleteNotification(ctx, other, second.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign DeleteNotification() error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteNotification(ctx, recipient, second.ID); err != nil {
		t.Fatalf("DeleteNotification() error = %v", err)
	}

	ns, err = store.Notifications(ctx, recipient)
	if err != nil {
		t.Fatalf("Notifications() error = %v", err)
	}
	if len(ns) != 1 || !ns[0].Read {
		t.Fatalf("mailbox after delete = %+v, want single read notification", ns)
	}
}
