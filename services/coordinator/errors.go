package coordinator

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the store, the workflow engine, and the HTTP
// layer. Handlers map these to status codes with errors.Is.
var (
	// ErrNoCredential means no bearer token was presented.
	ErrNoCredential = errors.New("no credential presented")

	// ErrInvalidCredential means the token could not be parsed, failed its
	// signature or expiry check, or carries no usable subject.
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrForbidden means the caller is authenticated but the operation is
	// not permitted for their membership state.
	ErrForbidden = errors.New("operation not permitted")

	// ErrConflict means the observed state no longer matches the caller's
	// expectation: a concurrent modification or a duplicate request/invite.
	ErrConflict = errors.New("state conflict")

	// ErrStaleState is the compare-and-swap failure; it is a kind of
	// ErrConflict, so a single errors.Is branch covers both.
	ErrStaleState = fmt.Errorf("%w: stale membership state", ErrConflict)

	// ErrNotFound covers absent events, requests, invitations, and
	// notifications. Treated as terminal for that id.
	ErrNotFound = errors.New("not found")
)
