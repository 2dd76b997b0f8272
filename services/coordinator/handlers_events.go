package coordinator

import (
	"errors"
	"net/http"
	"strings"
)

func (a *API) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}

	var req struct {
		Title  string `json:"title"`
		Public bool   `json:"public"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		respondError(w, http.StatusBadRequest, errors.New("title is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	ev, err := a.engine.CreateEvent(ctx, caller, req.Title, req.Public)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"event": ev})
}

func (a *API) handleGetEvent(w http.ResponseWriter, r *http.Request) {
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
	respondJSON(w, http.StatusOK, map[string]any{"event": ev})
}

func (a *API) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathUUID(r, "eventID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	participants, err := a.store.Participants(ctx, eventID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"participants": participants})
}

func (a *API) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
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
	userID, err := pathUUID(r, "userID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.engine.Remove(ctx, eventID, caller, userID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"removed": userID})
}
