package coordinator

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

func (a *API) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}

	var req struct {
		EventID   uuid.UUID `json:"event_id"`
		InviteeID uuid.UUID `json:"invitee_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	inv, err := a.engine.Invite(ctx, req.EventID, caller, req.InviteeID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"invitation": inv})
}

func (a *API) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	invitations, err := a.store.InvitationsForUser(ctx, caller)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"invitations": invitations})
}

func (a *API) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	a.resolveInvitation(w, r, a.engine.AcceptInvitation)
}

func (a *API) handleDeclineInvitation(w http.ResponseWriter, r *http.Request) {
	a.resolveInvitation(w, r, a.engine.DeclineInvitation)
}

func (a *API) resolveInvitation(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, invitationID, callerID uuid.UUID) error) {
	caller, ok := callerID(r.Context())
	if !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}
	invitationID, err := pathUUID(r, "invitationID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := op(ctx, invitationID, caller); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"invitation_id": invitationID})
}
