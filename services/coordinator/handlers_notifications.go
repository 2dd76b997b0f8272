package coordinator

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"eventbook/pkg/notify"
)

func (a *API) handleNotify(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(r.Context()); !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}

	var req struct {
		RecipientID uuid.UUID  `json:"recipient_id"`
		Type        string     `json:"type"`
		Content     string     `json:"content"`
		EventID     *uuid.UUID `json:"event_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.RecipientID == uuid.Nil {
		respondError(w, http.StatusBadRequest, errors.New("recipient_id is required"))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, errors.New("content is required"))
		return
	}
	if req.Type == "" {
		req.Type = notify.TypeSystem
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	id, err := a.engine.Notify(ctx, notify.Message{
		RecipientID: req.RecipientID,
		Type:        req.Type,
		Content:     req.Content,
		EventID:     req.EventID,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"notification_id": id})
}

func (a *API) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	notifications, err := a.store.Notifications(ctx, caller)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (a *API) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}
	notificationID, err := pathUUID(r, "notificationID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.store.MarkNotificationRead(ctx, caller, notificationID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"notification_id": notificationID, "read": true})
}

func (a *API) handleDeleteNotification(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(r.Context())
	if !ok {
		respondDomainError(w, ErrNoCredential)
		return
	}
	notificationID, err := pathUUID(r, "notificationID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.store.DeleteNotification(ctx, caller, notificationID); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"notification_id": notificationID, "deleted": true})
}
