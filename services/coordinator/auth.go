package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const callerKey contextKey = "eventbook.caller"

// Resolver extracts a caller's identity from a bearer token. It is a pure
// function of the credential, the signing key, and the clock: no storage
// access, so every component can call it without ordering concerns.
type Resolver struct {
	key   []byte
	clock func() time.Time
}

// NewResolver creates a Resolver for HS256 tokens signed with key.
func NewResolver(key []byte) *Resolver {
	return &Resolver{key: key, clock: time.Now}
}

// Resolve returns the user id carried by the token's sub claim.
func (r *Resolver) Resolve(credential string) (uuid.UUID, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return uuid.Nil, ErrNoCredential
	}

	token, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(r.clock))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed subject", ErrInvalidCredential)
	}

	return userID, nil
}

// Issue mints a token for userID, valid for ttl. Used by coordctl and tests.
func (r *Resolver) Issue(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := r.clock()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.key)
}

// Authenticate is chi middleware that resolves the Authorization header and
// stores the caller id in the request context. No operation proceeds on
// failure.
func (r *Resolver) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		header := req.Header.Get("Authorization")
		if header == "" {
			respondError(w, http.StatusUnauthorized, ErrNoCredential)
			return
		}

		credential, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			respondError(w, http.StatusUnauthorized, ErrInvalidCredential)
			return
		}

		userID, err := r.Resolve(credential)
		if err != nil {
			respondError(w, http.StatusUnauthorized, err)
			return
		}

		next.ServeHTTP(w, req.WithContext(withCaller(req.Context(), userID)))
	})
}

func withCaller(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, callerKey, userID)
}

// callerID returns the authenticated user id placed by Authenticate.
func callerID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(callerKey).(uuid.UUID)
	return userID, ok
}
