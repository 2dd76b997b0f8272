// Package client is the coordinator API client used by event-planner
// frontends. It keeps an optimistic membership cache per event so the UI
// can flip immediately on user actions, then reconciles each cached entry
// against the server's authoritative read. The server value always wins.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventbook/services/coordinator"
)

const (
	defaultTimeout       = 15 * time.Second
	defaultRetryAttempts = 3
	defaultRetryBackoff  = 100 * time.Millisecond
)

// ErrRemote wraps non-2xx responses from the coordinator.
var ErrRemote = errors.New("coordinator request failed")

type cacheEntry struct {
	state coordinator.MembershipState
	stale bool
}

// Client talks to the coordinator HTTP API on behalf of one user.
type Client struct {
	base   string
	token  string
	client *http.Client

	mu    sync.Mutex
	cache map[uuid.UUID]cacheEntry

	retryAttempts int
	retryBackoff  time.Duration
}

// Option adjusts client construction.
type Option func(*Client)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithRetry overrides the reconcile retry policy.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.retryAttempts = attempts
		}
		if backoff > 0 {
			c.retryBackoff = backoff
		}
	}
}

// New creates a client for the coordinator at base, authenticating with
// the given bearer token.
func New(base, token string, opts ...Option) (*Client, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil, errors.New("base url is required")
	}
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("token is required")
	}

	c := &Client{
		base:          base,
		token:         token,
		client:        &http.Client{Timeout: defaultTimeout},
		cache:         make(map[uuid.UUID]cacheEntry),
		retryAttempts: defaultRetryAttempts,
		retryBackoff:  defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the last reconciled membership state for the event.
// Unknown events report StateNone.
func (c *Client) State(eventID uuid.UUID) coordinator.MembershipState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.cache[eventID]; ok {
		return entry.state
	}
	return coordinator.StateNone
}

// Stale reports whether the last reconcile overturned an optimistic value.
func (c *Client) Stale(eventID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache[eventID].stale
}

// CanJoin reports whether a join or join request makes sense given the
// reconciled state.
func (c *Client) CanJoin(eventID uuid.UUID) bool {
	return c.State(eventID) == coordinator.StateNone
}

// CanLeave reports whether leaving makes sense given the reconciled state.
func (c *Client) CanLeave(eventID uuid.UUID) bool {
	return c.State(eventID) == coordinator.StateMember
}

// Join joins a public event. The cache flips to member optimistically and
// is reconciled afterwards regardless of the call's outcome.
func (c *Client) Join(ctx context.Context, eventID uuid.UUID) error {
	c.setOptimistic(eventID, coordinator.StateMember)
	err := c.post(ctx, fmt.Sprintf("/v1/events/%s/join", eventID), nil, nil)
	return c.afterAction(ctx, eventID, err)
}

// RequestToJoin files a join request on a non-public event.
func (c *Client) RequestToJoin(ctx context.Context, eventID uuid.UUID) (uuid.UUID, error) {
	c.setOptimistic(eventID, coordinator.StatePendingRequest)

	var resp struct {
		Request coordinator.JoinRequest `json:"request"`
	}
	err := c.post(ctx, fmt.Sprintf("/v1/events/%s/requests", eventID), nil, &resp)
	return resp.Request.ID, c.afterAction(ctx, eventID, err)
}

// Leave leaves an event. Optimistically clears the cached state.
func (c *Client) Leave(ctx context.Context, eventID uuid.UUID) error {
	c.setOptimistic(eventID, coordinator.StateNone)
	err := c.post(ctx, fmt.Sprintf("/v1/events/%s/leave", eventID), nil, nil)
	return c.afterAction(ctx, eventID, err)
}

// WithdrawRequest retracts the caller's pending join request.
func (c *Client) WithdrawRequest(ctx context.Context, eventID, requestID uuid.UUID) error {
	c.setOptimistic(eventID, coordinator.StateNone)
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/v1/events/%s/requests/%s", eventID, requestID), nil, nil)
	return c.afterAction(ctx, eventID, err)
}

// AcceptInvitation accepts a pending invitation for the given event.
func (c *Client) AcceptInvitation(ctx context.Context, eventID, invitationID uuid.UUID) error {
	c.setOptimistic(eventID, coordinator.StateMember)
	err := c.post(ctx, fmt.Sprintf("/v1/invitations/%s/accept", invitationID), nil, nil)
	return c.afterAction(ctx, eventID, err)
}

// DeclineInvitation declines a pending invitation for the given event.
func (c *Client) DeclineInvitation(ctx context.Context, eventID, invitationID uuid.UUID) error {
	c.setOptimistic(eventID, coordinator.StateNone)
	err := c.post(ctx, fmt.Sprintf("/v1/invitations/%s/decline", invitationID), nil, nil)
	return c.afterAction(ctx, eventID, err)
}

// Invitations lists the caller's pending invitations.
func (c *Client) Invitations(ctx context.Context) ([]coordinator.Invitation, error) {
	var resp struct {
		Invitations []coordinator.Invitation `json:"invitations"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/invitations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Invitations, nil
}

// Notifications lists the caller's mailbox, newest first.
func (c *Client) Notifications(ctx context.Context) ([]coordinator.Notification, error) {
	var resp struct {
		Notifications []coordinator.Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/notifications", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

// Reconcile fetches the authoritative membership state for the event,
// retrying transport failures, and replaces the cached value with it.
func (c *Client) Reconcile(ctx context.Context, eventID uuid.UUID) (coordinator.MembershipState, error) {
	var resp struct {
		State coordinator.MembershipState `json:"state"`
	}

	var err error
	backoff := c.retryBackoff
	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return coordinator.StateNone, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		err = c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/events/%s/membership", eventID), nil, &resp)
		if err == nil || errors.Is(err, ErrRemote) {
			break
		}
	}
	if err != nil {
		return coordinator.StateNone, err
	}

	c.mu.Lock()
	prev, had := c.cache[eventID]
	c.cache[eventID] = cacheEntry{state: resp.State, stale: had && prev.state != resp.State}
	c.mu.Unlock()

	return resp.State, nil
}

func (c *Client) setOptimistic(eventID uuid.UUID, state coordinator.MembershipState) {
	c.mu.Lock()
	c.cache[eventID] = cacheEntry{state: state}
	c.mu.Unlock()
}

// afterAction runs the post-action reconcile. The action's own error takes
// precedence; a reconcile failure surfaces only when the action succeeded.
func (c *Client) afterAction(ctx context.Context, eventID uuid.UUID, actionErr error) error {
	if _, recErr := c.Reconcile(ctx, eventID); recErr != nil && actionErr == nil {
		return recErr
	}
	return actionErr
}

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPost, path, body, dest)
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var remote struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&remote)
		if remote.Error == "" {
			remote.Error = resp.Status
		}
		return fmt.Errorf("%w: %s (%d)", ErrRemote, remote.Error, resp.StatusCode)
	}

	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
