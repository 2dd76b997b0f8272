package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eventbook/pkg/notify"
)

// Dispatcher is the notification side-channel consumed by the engine.
// *notify.Dispatcher satisfies it; tests substitute fakes.
type Dispatcher interface {
	Notify(ctx context.Context, m notify.Message) (uuid.UUID, error)
}

// Engine validates and executes membership state transitions. Every write
// goes through the store's compare-and-swap, so concurrent callers contend
// on the (event, user) key instead of on a lock. A successful transition
// triggers exactly one notification-dispatch attempt after the mutation has
// committed; dispatch failure never rolls back or blocks the transition.
type Engine struct {
	store      Store
	dispatcher Dispatcher
	templates  *notify.Catalog
	logger     zerolog.Logger
	clock      func() time.Time
	newID      func() uuid.UUID
}

// NewEngine creates an Engine with default clock and id generation.
// The dispatcher may be nil, in which case transitions are silent.
func NewEngine(store Store, dispatcher Dispatcher, templates *notify.Catalog, logger zerolog.Logger) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if templates == nil {
		var err error
		if templates, err = notify.DefaultCatalog(); err != nil {
			return nil, err
		}
	}

	return &Engine{
		store:      store,
		dispatcher: dispatcher,
		templates:  templates,
		logger:     logger,
		clock:      time.Now,
		newID:      uuid.New,
	}, nil
}

// CreateEvent registers minimal event metadata and the organizer membership
// row that is born with it.
func (e *Engine) CreateEvent(ctx context.Context, organizerID uuid.UUID, title string, public bool) (Event, error) {
	if title == "" {
		return Event{}, errors.New("title is required")
	}

	ev := Event{
		ID:          e.newID(),
		Title:       title,
		Public:      public,
		OrganizerID: organizerID,
		CreatedAt:   e.clock().UTC(),
	}
	if err := e.store.CreateEvent(ctx, ev); err != nil {
		return Event{}, e.finish(ctx, "create_event", err)
	}
	return ev, e.finish(ctx, "create_event", nil)
}

// Join adds the caller to a public event. Idempotent: joining while already
// a participant is a no-op success, mirroring a user re-clicking "Join".
// Non-public events reject it; they go through RequestToJoin.
func (e *Engine) Join(ctx context.Context, eventID, userID uuid.UUID) (MembershipState, error) {
	ev, err := e.store.Event(ctx, eventID)
	if err != nil {
		return StateNone, e.finish(ctx, "join", err)
	}
	if !ev.Public {
		return StateNone, e.finish(ctx, "join", fmt.Errorf("event is not public: %w", ErrForbidden))
	}

	state, err := e.store.MembershipState(ctx, eventID, userID)
	if err != nil {
		return StateNone, e.finish(ctx, "join", err)
	}
	switch state {
	case StateMember, StateOrganizer:
		return state, e.finish(ctx, "join", nil)
	case StatePendingRequest, StatePendingInvitation:
		return state, e.finish(ctx, "join", fmt.Errorf("pending %s exists: %w", state, ErrConflict))
	}

	if err := e.store.SetMembershipState(ctx, eventID, userID, StateMember, StateNone); err != nil {
		return StateNone, e.finish(ctx, "join", err)
	}

	e.dispatch(ctx, notify.TypeMemberJoined, ev.OrganizerID, ev, userID)
	return StateMember, e.finish(ctx, "join", nil)
}

// RequestToJoin creates a pending join request on a non-public event.
func (e *Engine) RequestToJoin(ctx context.Context, eventID, userID uuid.UUID) (JoinRequest, error) {
	ev, err := e.store.Event(ctx, eventID)
	if err != nil {
		return JoinRequest{}, e.finish(ctx, "request_to_join", err)
	}
	if ev.Public {
		return JoinRequest{}, e.finish(ctx, "request_to_join", fmt.Errorf("public events are joined directly: %w", ErrForbidden))
	}

	// The CAS claims the (event, user) key; it is what makes a concurrent
	// invitation and join request mutually exclusive.
	if err := e.store.SetMembershipState(ctx, eventID, userID, StatePendingRequest, StateNone); err != nil {
		return JoinRequest{}, e.finish(ctx, "request_to_join", err)
	}

	req := JoinRequest{
		ID:          e.newID(),
		EventID:     eventID,
		RequesterID: userID,
		CreatedAt:   e.clock().UTC(),
	}
	if err := e.store.CreateJoinRequest(ctx, req); err != nil {
		if rbErr := e.store.SetMembershipState(ctx, eventID, userID, StateNone, StatePendingRequest); rbErr != nil {
			e.logger.Error().Err(rbErr).
				Str("event_id", eventID.String()).
				Str("user_id", userID.String()).
				Msg("failed to roll back pending request state")
		}
		return JoinRequest{}, e.finish(ctx, "request_to_join", err)
	}

	e.dispatch(ctx, notify.TypeRequestReceived, ev.OrganizerID, ev, userID)
	return req, e.finish(ctx, "request_to_join", nil)
}

// Leave removes the caller's membership. Idempotent when already absent;
// the organizer cannot leave their own event through this path.
func (e *Engine) Leave(ctx context.Context, eventID, userID uuid.UUID) error {
	ev, err := e.store.Event(ctx, eventID)
	if err != nil {
		return e.finish(ctx, "leave", err)
	}

	state, err := e.store.MembershipState(ctx, eventID, userID)
	if err != nil {
		return e.finish(ctx, "leave", err)
	}
	switch state {
	case StateNone:
		return e.finish(ctx, "leave", nil)
	case StateOrganizer:
		return e.finish(ctx, "leave", fmt.Errorf("organizer cannot leave their own event: %w", ErrForbidden))
	case StatePendingRequest, StatePendingInvitation:
		return e.finish(ctx, "leave", fmt.Errorf("pending %s exists: %w", state, ErrConflict))
	}

	if err := e.store.SetMembershipState(ctx, eventID, userID, StateNone, StateMember); err != nil {
		return e.finish(ctx, "leave", err)
	}

	e.dispatch(ctx, notify.TypeMemberLeft, ev.OrganizerID, ev, userID)
	return e.finish(ctx, "leave", nil)
}

// Remove lets the organizer take a member out of the event.
func (e *Engine) Remove(ctx context.Context, eventID, organizerID, targetID uuid.UUID) error {
	ev, err := e.store.Event(ctx, eventID)
	if err != nil {
		return e.finish(ctx, "remove", err)
	}
	if ev.OrganizerID != organizerID {
		return e.finish(ctx, "remove", fmt.Errorf("only the organizer may remove members: %w", ErrForbidden))
	}
	if targetID == organizerID {
		return e.finish(ctx, "remove", fmt.Errorf("organizer cannot remove themselves: %w", ErrForbidden))
	}

	state, err := e.store.MembershipState(ctx, eventID, targetID)
	if err != nil {
		return e.finish(ctx, "remove", err)
	}
	switch state {
	case StateNone:
		return e.finish(ctx, "remove", fmt.Errorf("user %s is not a member: %w", targetID, ErrNotFound))
	case StatePendingRequest, StatePendingInvitation:
		return e.finish(ctx, "remove", fmt.Errorf("pending %s exists: %w", state, ErrConflict))
	}

	if err := e.store.SetMembershipState(ctx, eventID, targetID, StateNone, StateMember); err != nil {
		return e.finish(ctx, "remove", err)
	}

	e.dispatch(ctx, notify.TypeMemberRemoved, targetID, ev, organizerID)
	return e.finish(ctx, "remove", nil)
}

// Invite creates a pending invitation from an organizer or member to a
// user with no current relation to the event.
func (e *Engine) Invite(ctx context.Context, eventID, inviterID, inviteeID uuid.UUID) (Invitation, error) {
	ev, err := e.store.Event(ctx, eventID)
	if err != nil {
		return Invitation{}, e.finish(ctx, "invite", err)
	}

	inviterState, err := e.store.MembershipState(ctx, eventID, inviterID)
	if err != nil {
		return Invitation{}, e.finish(ctx, "invite", err)
	}
	if inviterState != StateOrganizer && inviterState != StateMember {
		return Invitation{}, e.finish(ctx, "invite", fmt.Errorf("only organizers and members may invite: %w", ErrForbidden))
	}

	// Claims the invitee's key: fails with a conflict when the invitee
	// already has any relation, including a pending join request.
	if err := e.store.SetMembershipState(ctx, eventID, inviteeID, StatePendingInvitation, StateNone); err != nil {
		return Invitation{}, e.finish(ctx, "invite", err)
	}

	inv := Invitation{
		ID:        e.newID(),
		EventID:   eventID,
		InviterID: inviterID,
		InviteeID: inviteeID,
		Status:    InvitationPending,
		CreatedAt: e.clock().UTC(),
	}
	if err := e.store.CreateInvitation(ctx, inv); err != nil {
		if rbErr := e.store.SetMembershipState(ctx, eventID, inviteeID, StateNone, StatePendingInvitation); rbErr != nil {
			e.logger.Error().Err(rbErr).
				Str("event_id", eventID.String()).
				Str("invitee_id", inviteeID.String()).
				Msg("failed to roll back pending invitation state")
		}
		return Invitation{}, e.finish(ctx, "invite", err)
	}

	e.dispatch(ctx, notify.TypeInvitationReceived, inviteeID, ev, inviterID)
	return inv, e.finish(ctx, "invite", nil)
}

// ApproveRequest consumes a join request and promotes the requester to
// member. Consuming the request row is the linearization point: of two
// concurrent approvals exactly one obtains the row, the other observes
// ErrNotFound.
func (e *Engine) ApproveRequest(ctx context.Context, eventID, requestID, approverID uuid.UUID) error {
	ev, err := e.store.Event(ctx, eventID)
	if err != nil {
		return e.finish(ctx, "approve_request", err)
	}
	if ev.OrganizerID != approverID {
		return e.finish(ctx, "approve_request", fmt.Errorf("only the organizer may approve requests: %w", ErrForbidden))
	}

	req, err := e.store.ConsumeJoinRequest(ctx, requestID)
	if err != nil {
		return e.finish(ctx, "approve_request", err)
	}
	if req.EventID != eventID {
		return e.finish(ctx, "approve_request", fmt.Errorf("request %s does not belong to event %s: %w", requestID, eventID, ErrNotFound))
	}

	if err := e.store.SetMembershipState(ctx, eventID, req.RequesterID, StateMember, StatePendingRequest); err != nil {
		// The requester's state diverged between consumption and the
		// swap (e.g. a concurrent withdrawal); the request row is gone
		// either way, so surface the conflict.
		return e.finish(ctx, "approve_request", err)
	}

	e.dispatch(ctx, notify.TypeRequestApproved, req.RequesterID, ev, approverID)
	return e.finish(ctx, "approve_request", nil)
}

// RejectRequest consumes a join request and returns the requester to None.
func (e *Engine) RejectRequest(ctx context.Context, eventID, requestID, approverID uuid.UUID) error {
	ev, err := e.store.Event(ctx, eventID)
	if err != nil {
		return e.finish(ctx, "reject_request", err)
	}
	if ev.OrganizerID != approverID {
		return e.finish(ctx, "reject_request", fmt.Errorf("only the organizer may reject requests: %w", ErrForbidden))
	}

	req, err := e.store.ConsumeJoinRequest(ctx, requestID)
	if err != nil {
		return e.finish(ctx, "reject_request", err)
	}
	if req.EventID != eventID {
		return e.finish(ctx, "reject_request", fmt.Errorf("request %s does not belong to event %s: %w", requestID, eventID, ErrNotFound))
	}

	if err := e.store.SetMembershipState(ctx, eventID, req.RequesterID, StateNone, StatePendingRequest); err != nil {
		return e.finish(ctx, "reject_request", err)
	}

	e.dispatch(ctx, notify.TypeRequestRejected, req.RequesterID, ev, approverID)
	return e.finish(ctx, "reject_request", nil)
}

// WithdrawRequest lets a requester retract their own pending request.
// The withdrawn party initiated the change, so nobody is notified.
func (e *Engine) WithdrawRequest(ctx context.Context, eventID, requestID, callerID uuid.UUID) error {
	req, err := e.store.JoinRequestByID(ctx, requestID)
	if err != nil {
		return e.finish(ctx, "withdraw_request", err)
	}
	if req.EventID != eventID {
		return e.finish(ctx, "withdraw_request", fmt.Errorf("request %s does not belong to event %s: %w", requestID, eventID, ErrNotFound))
	}
	if req.RequesterID != callerID {
		return e.finish(ctx, "withdraw_request", fmt.Errorf("only the requester may withdraw: %w", ErrForbidden))
	}

	if _, err := e.store.ConsumeJoinRequest(ctx, requestID); err != nil {
		return e.finish(ctx, "withdraw_request", err)
	}
	if err := e.store.SetMembershipState(ctx, eventID, callerID, StateNone, StatePendingRequest); err != nil {
		return e.finish(ctx, "withdraw_request", err)
	}

	return e.finish(ctx, "withdraw_request", nil)
}

// AcceptInvitation promotes the invitee to member. Only the invitee may
// act, and the invitation must still be pending.
func (e *Engine) AcceptInvitation(ctx context.Context, invitationID, callerID uuid.UUID) error {
	inv, err := e.store.InvitationByID(ctx, invitationID)
	if err != nil {
		return e.finish(ctx, "accept_invitation", err)
	}
	if inv.InviteeID != callerID {
		return e.finish(ctx, "accept_invitation", fmt.Errorf("only the invitee may accept: %w", ErrForbidden))
	}

	if err := e.store.ResolveInvitation(ctx, invitationID, InvitationAccepted, e.clock().UTC()); err != nil {
		return e.finish(ctx, "accept_invitation", err)
	}
	if err := e.store.SetMembershipState(ctx, inv.EventID, callerID, StateMember, StatePendingInvitation); err != nil {
		return e.finish(ctx, "accept_invitation", err)
	}

	ev, err := e.store.Event(ctx, inv.EventID)
	if err != nil {
		e.logger.Warn().Err(err).Str("event_id", inv.EventID.String()).Msg("accepted invitation for unreadable event")
		ev = Event{ID: inv.EventID}
	}
	e.dispatch(ctx, notify.TypeInvitationAccepted, inv.InviterID, ev, callerID)
	return e.finish(ctx, "accept_invitation", nil)
}

// DeclineInvitation returns the invitee to None and resolves the
// invitation terminally.
func (e *Engine) DeclineInvitation(ctx context.Context, invitationID, callerID uuid.UUID) error {
	inv, err := e.store.InvitationByID(ctx, invitationID)
	if err != nil {
		return e.finish(ctx, "decline_invitation", err)
	}
	if inv.InviteeID != callerID {
		return e.finish(ctx, "decline_invitation", fmt.Errorf("only the invitee may decline: %w", ErrForbidden))
	}

	if err := e.store.ResolveInvitation(ctx, invitationID, InvitationDeclined, e.clock().UTC()); err != nil {
		return e.finish(ctx, "decline_invitation", err)
	}
	if err := e.store.SetMembershipState(ctx, inv.EventID, callerID, StateNone, StatePendingInvitation); err != nil {
		return e.finish(ctx, "decline_invitation", err)
	}

	ev, err := e.store.Event(ctx, inv.EventID)
	if err != nil {
		e.logger.Warn().Err(err).Str("event_id", inv.EventID.String()).Msg("declined invitation for unreadable event")
		ev = Event{ID: inv.EventID}
	}
	e.dispatch(ctx, notify.TypeInvitationDeclined, inv.InviterID, ev, callerID)
	return e.finish(ctx, "decline_invitation", nil)
}

// Notify pushes a caller-supplied notification through the dispatch
// pipeline, bypassing the transition machinery.
func (e *Engine) Notify(ctx context.Context, m notify.Message) (uuid.UUID, error) {
	if e.dispatcher == nil {
		return uuid.Nil, errors.New("no dispatcher configured")
	}
	return e.dispatcher.Notify(ctx, m)
}

// dispatch performs the single post-commit notification attempt for a
// transition. Failures are logged and dropped; the transition already
// committed and must not be disturbed.
func (e *Engine) dispatch(ctx context.Context, typ string, recipientID uuid.UUID, ev Event, actorID uuid.UUID) {
	if e.dispatcher == nil || recipientID == uuid.Nil || recipientID == actorID {
		return
	}

	content, err := e.templates.Render(typ, notify.TemplateData{Event: ev.Title, Actor: actorID.String()})
	if err != nil {
		e.logger.Warn().Err(err).Str("type", typ).Msg("notification template render failed")
		content = typ
	}

	eventID := ev.ID
	if _, err := e.dispatcher.Notify(ctx, notify.Message{
		RecipientID: recipientID,
		Type:        typ,
		Content:     content,
		EventID:     &eventID,
	}); err != nil {
		e.logger.Warn().Err(err).
			Str("type", typ).
			Str("recipient_id", recipientID.String()).
			Msg("notification dispatch failed")
	}
}

// finish records the transition outcome metric and passes err through.
func (e *Engine) finish(_ context.Context, op string, err error) error {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	transitionsTotal.WithLabelValues(op, outcome).Inc()
	return err
}
