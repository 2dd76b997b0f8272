package coordinator

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

func (a *API) handleGetMembership(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}
	eventID, err := pathUUID(r, "eventID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if _, err := a.store.Event(ctx, eventID); err != nil {
		respondDomainError(w, err)
		return
	}

	state, err := a.store.MembershipState(ctx, eventID, caller)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"event_id": eventID, "state": state})
}

func (a *API) handleJoin(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}
	eventID, err := pathUUID(r, "eventID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	state, err := a.engine.Join(ctx, eventID, caller)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"event_id": eventID, "state": state})
}

func (a *API) handleLeave(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}
	eventID, err := pathUUID(r, "eventID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.engine.Leave(ctx, eventID, caller); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"event_id": eventID, "state": StateNone})
}

func (a *API) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}
	eventID, err := pathUUID(r, "eventID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	req, err := a.engine.RequestToJoin(ctx, eventID, caller)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"request": req})
}

func (a *API) handleListRequests(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}
	eventID, err := pathUUID(r, "eventID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	ev, err := a.store.Event(ctx, eventID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if ev.OrganizerID != caller {
		respondDomainError(w, ErrForbidden)
		return
	}

	requests, err := a.store.JoinRequestsForEvent(ctx, eventID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (a *API) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	a.resolveRequest(w, r, a.engine.ApproveRequest)
}

func (a *API) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	a.resolveRequest(w, r, a.engine.RejectRequest)
}

func (a *API) handleWithdrawRequest(w http.ResponseWriter, r *http.Request) {
	a.resolveRequest(w, r, a.engine.WithdrawRequest)
}

func (a *API) resolveRequest(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, eventID, requestID, callerID uuid.UUID) error) {
	caller, ok := callerID(r.Context())
	if !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}
	eventID, err := pathUUID(r, "eventID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	requestID, err := pathUUID(r, "requestID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := op(ctx, eventID, requestID, caller); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"request_id": requestID})
}
