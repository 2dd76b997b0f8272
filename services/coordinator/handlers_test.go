package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"eventbook/pkg/notify"
)

type testServer struct {
	*httptest.Server
	store    *MemStore
	resolver *Resolver
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := NewMemStore()
	dispatcher, err := notify.NewDispatcher(notify.Options{
		Sink:   MailboxSink(store),
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}

	engine, err := NewEngine(store, dispatcher, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	resolver := NewResolver([]byte("handler-test-key"))
	api, err := New(engine, store, resolver, zerolog.Nop(), time.Hour)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	router, err := api.Routes(RouterOptions{})
	if err != nil {
		t.Fatalf("Routes() error = %v", err)
	}

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store, resolver: resolver}
}

func (ts *testServer) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()

	token, err := ts.resolver.Issue(userID, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]json.RawMessage) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	payload := map[string]json.RawMessage{}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp.StatusCode, payload
}

func (ts *testServer) createEvent(t *testing.T, token string, public bool) Event {
	t.Helper()

	status, payload := ts.do(t, http.MethodPost, "/v1/events", token, map[string]any{
		"title":  "release dinner",
		"public": public,
	})
	if status != http.StatusCreated {
		t.Fatalf("create event status = %d, want %d", status, http.StatusCreated)
	}

	var ev Event
	if err := json.Unmarshal(payload["event"], &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func TestHandlersRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "bad token", header: "Bearer nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/notifications", nil)
			if err != nil {
				t.Fatalf("new request: %v", err)
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := ts.Client().Do(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
			}
		})
	}
}

func TestHandlersHealthProbes(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := ts.Client().Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
	}
}

func TestHandlersJoinLifecycle(t *testing.T) {
	ts := newTestServer(t)
	organizer := uuid.New()
	user := uuid.New()
	orgToken := ts.token(t, organizer)
	userToken := ts.token(t, user)

	ev := ts.createEvent(t, orgToken, true)
	eventPath := "/v1/events/" + ev.ID.String()

	status, payload := ts.do(t, http.MethodGet, eventPath+"/membership", userToken, nil)
	if status != http.StatusOK {
		t.Fatalf("membership status = %d", status)
	}
	var state MembershipState
	if err := json.Unmarshal(payload["state"], &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state != StateNone {
		t.Fatalf("initial state = %v, want %v", state, StateNone)
	}

	if status, _ := ts.do(t, http.MethodPost, eventPath+"/join", userToken, nil); status != http.StatusOK {
		t.Fatalf("join status = %d", status)
	}

	status, payload = ts.do(t, http.MethodGet, eventPath+"/membership", userToken, nil)
	if status != http.StatusOK {
		t.Fatalf("membership status = %d", status)
	}
	if err := json.Unmarshal(payload["state"], &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state != StateMember {
		t.Fatalf("state after join = %v, want %v", state, StateMember)
	}

	status, payload = ts.do(t, http.MethodGet, eventPath+"/participants", userToken, nil)
	if status != http.StatusOK {
		t.Fatalf("participants status = %d", status)
	}
	var participants []uuid.UUID
	if err := json.Unmarshal(payload["participants"], &participants); err != nil {
		t.Fatalf("decode participants: %v", err)
	}
	if len(participants) != 2 {
		t.Fatalf("participants = %v, want organizer and member", participants)
	}

	// The join notified the organizer's mailbox through the dispatcher.
	status, payload = ts.do(t, http.MethodGet, "/v1/notifications", orgToken, nil)
	if status != http.StatusOK {
		t.Fatalf("notifications status = %d", status)
	}
	var notifications []Notification
	if err := json.Unmarshal(payload["notifications"], &notifications); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(notifications) != 1 || notifications[0].Type != notify.TypeMemberJoined {
		t.Fatalf("organizer mailbox = %+v, want one member_joined", notifications)
	}

	if status, _ := ts.do(t, http.MethodPost, eventPath+"/leave", userToken, nil); status != http.StatusOK {
		t.Fatalf("leave status = %d", status)
	}
}

func TestHandlersRequestApproval(t *testing.T) {
	ts := newTestServer(t)
	organizer := uuid.New()
	requester := uuid.New()
	orgToken := ts.token(t, organizer)
	reqToken := ts.token(t, requester)

	ev := ts.createEvent(t, orgToken, false)
	eventPath := "/v1/events/" + ev.ID.String()

	// Direct join on a non-public event is refused.
	if status, _ := ts.do(t, http.MethodPost, eventPath+"/join", reqToken, nil); status != http.StatusForbidden {
		t.Fatalf("join private status = %d, want %d", status, http.StatusForbidden)
	}

	status, payload := ts.do(t, http.MethodPost, eventPath+"/requests", reqToken, nil)
	if status != http.StatusCreated {
		t.Fatalf("request status = %d, want %d", status, http.StatusCreated)
	}
	var req JoinRequest
	if err := json.Unmarshal(payload["request"], &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}

	// Duplicate request conflicts.
	if status, _ := ts.do(t, http.MethodPost, eventPath+"/requests", reqToken, nil); status != http.StatusConflict {
		t.Fatalf("duplicate request status = %d, want %d", status, http.StatusConflict)
	}

	// Request listing is organizer-only.
	if status, _ := ts.do(t, http.MethodGet, eventPath+"/requests", reqToken, nil); status != http.StatusForbidden {
		t.Fatalf("foreign list status = %d, want %d", status, http.StatusForbidden)
	}
	status, payload = ts.do(t, http.MethodGet, eventPath+"/requests", orgToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	var requests []JoinRequest
	if err := json.Unmarshal(payload["requests"], &requests); err != nil {
		t.Fatalf("decode requests: %v", err)
	}
	if len(requests) != 1 || requests[0].ID != req.ID {
		t.Fatalf("requests = %+v, want the created request", requests)
	}

	approvePath := eventPath + "/requests/" + req.ID.String() + "/approve"
	if status, _ := ts.do(t, http.MethodPost, approvePath, reqToken, nil); status != http.StatusForbidden {
		t.Fatalf("foreign approve status = %d, want %d", status, http.StatusForbidden)
	}
	if status, _ := ts.do(t, http.MethodPost, approvePath, orgToken, nil); status != http.StatusOK {
		t.Fatalf("approve status = %d", status)
	}

	// The request is consumed; approving again is a 404.
	if status, _ := ts.do(t, http.MethodPost, approvePath, orgToken, nil); status != http.StatusNotFound {
		t.Fatalf("re-approve status = %d, want %d", status, http.StatusNotFound)
	}

	state, err := ts.store.MembershipState(context.Background(), ev.ID, requester)
	if err != nil {
		t.Fatalf("MembershipState() error = %v", err)
	}
	if state != StateMember {
		t.Fatalf("state after approval = %v, want %v", state, StateMember)
	}
}

func TestHandlersInvitationLifecycle(t *testing.T) {
	ts := newTestServer(t)
	organizer := uuid.New()
	invitee := uuid.New()
	orgToken := ts.token(t, organizer)
	invToken := ts.token(t, invitee)

	ev := ts.createEvent(t, orgToken, false)

	status, payload := ts.do(t, http.MethodPost, "/v1/invitations", orgToken, map[string]any{
		"event_id":   ev.ID,
		"invitee_id": invitee,
	})
	if status != http.StatusCreated {
		t.Fatalf("create invitation status = %d, want %d", status, http.StatusCreated)
	}
	var inv Invitation
	if err := json.Unmarshal(payload["invitation"], &inv); err != nil {
		t.Fatalf("decode invitation: %v", err)
	}

	status, payload = ts.do(t, http.MethodGet, "/v1/invitations", invToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list invitations status = %d", status)
	}
	var invitations []Invitation
	if err := json.Unmarshal(payload["invitations"], &invitations); err != nil {
		t.Fatalf("decode invitations: %v", err)
	}
	if len(invitations) != 1 || invitations[0].ID != inv.ID {
		t.Fatalf("invitations = %+v, want the created invitation", invitations)
	}

	acceptPath := "/v1/invitations/" + inv.ID.String() + "/accept"
	if status, _ := ts.do(t, http.MethodPost, acceptPath, orgToken, nil); status != http.StatusForbidden {
		t.Fatalf("foreign accept status = %d, want %d", status, http.StatusForbidden)
	}
	if status, _ := ts.do(t, http.MethodPost, acceptPath, invToken, nil); status != http.StatusOK {
		t.Fatalf("accept status = %d", status)
	}

	// Acceptance is terminal; declining now conflicts.
	declinePath := "/v1/invitations/" + inv.ID.String() + "/decline"
	if status, _ := ts.do(t, http.MethodPost, declinePath, invToken, nil); status != http.StatusConflict {
		t.Fatalf("decline after accept status = %d, want %d", status, http.StatusConflict)
	}

	state, err := ts.store.MembershipState(context.Background(), ev.ID, invitee)
	if err != nil {
		t.Fatalf("MembershipState() error = %v", err)
	}
	if state != StateMember {
		t.Fatalf("state after accept = %v, want %v", state, StateMember)
	}
}

func TestHandlersNotificationMailbox(t *testing.T) {
	ts := newTestServer(t)
	sender := uuid.New()
	recipient := uuid.New()
	senderToken := ts.token(t, sender)
	recipientToken := ts.token(t, recipient)

	status, payload := ts.do(t, http.MethodPost, "/v1/notifications", senderToken, map[string]any{
		"recipient_id": recipient,
		"content":      "venue changed to the rooftop",
	})
	if status != http.StatusAccepted {
		t.Fatalf("notify status = %d, want %d", status, http.StatusAccepted)
	}
	var notificationID uuid.UUID
	if err := json.Unmarshal(payload["notification_id"], &notificationID); err != nil {
		t.Fatalf("decode notification id: %v", err)
	}

	status, payload = ts.do(t, http.MethodGet, "/v1/notifications", recipientToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	var notifications []Notification
	if err := json.Unmarshal(payload["notifications"], &notifications); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(notifications) != 1 || notifications[0].ID != notificationID || notifications[0].Read {
		t.Fatalf("mailbox = %+v, want one unread notification", notifications)
	}

	readPath := "/v1/notifications/" + notificationID.String() + "/read"
	// Only the recipient can touch their mailbox.
	if status, _ := ts.do(t, http.MethodPatch, readPath, senderToken, nil); status != http.StatusNotFound {
		t.Fatalf("foreign read status = %d, want %d", status, http.StatusNotFound)
	}
	if status, _ := ts.do(t, http.MethodPatch, readPath, recipientToken, nil); status != http.StatusOK {
		t.Fatalf("read status = %d", status)
	}

	deletePath := "/v1/notifications/" + notificationID.String()
	if status, _ := ts.do(t, http.MethodDelete, deletePath, recipientToken, nil); status != http.StatusOK {
		t.Fatalf("delete status = %d", status)
	}

	status, payload = ts.do(t, http.MethodGet, "/v1/notifications", recipientToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if err := json.Unmarshal(payload["notifications"], &notifications); err != nil {
		t.Fatalf("decode notifications: %v", err)
	}
	if len(notifications) != 0 {
		t.Fatalf("mailbox after delete = %+v, want empty", notifications)
	}
}

func TestHandlersUnknownEvent(t *testing.T) {
	ts := newTestServer(t)
	token := ts.token(t, uuid.New())

	status, _ := ts.do(t, http.MethodGet, "/v1/events/"+uuid.NewString(), token, nil)
	if status != http.StatusNotFound {
		t.Fatalf("unknown event status = %d, want %d", status, http.StatusNotFound)
	}

	status, _ = ts.do(t, http.MethodGet, "/v1/events/not-a-uuid", token, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("malformed id status = %d, want %d", status, http.StatusBadRequest)
	}
}
