package coordinator

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestResolverRoundTrip(t *testing.T) {
	resolver := NewResolver([]byte("test-signing-key"))
	userID := uuid.New()

	token, err := resolver.Issue(userID, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	got, err := resolver.Resolve(token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != userID {
		t.Fatalf("Resolve() = %v, want %v", got, userID)
	}
}

func TestResolverRejects(t *testing.T) {
	resolver := NewResolver([]byte("test-signing-key"))
	userID := uuid.New()

	goodToken, err := resolver.Issue(userID, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	otherKey, err := NewResolver([]byte("different-key")).Issue(userID, time.Hour)
	if err != nil {
		t.Fatalf("Issue() with other key error = %v", err)
	}

	expiredIssuer := NewResolver([]byte("test-signing-key"))
	expiredIssuer.clock = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredIssuer.Issue(userID, time.Hour)
	if err != nil {
		t.Fatalf("Issue() expired error = %v", err)
	}

	tests := []struct {
		name       string
		credential string
		wantErr    error
	}{
		{name: "empty", credential: "", wantErr: ErrNoCredential},
		{name: "whitespace", credential: "   ", wantErr: ErrNoCredential},
		{name: "garbage", credential: "not-a-token", wantErr: ErrInvalidCredential},
		{name: "wrong key", credential: otherKey, wantErr: ErrInvalidCredential},
		{name: "expired", credential: expired, wantErr: ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := resolver.Resolve(tt.credential); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Sanity: the good token still resolves after all the rejections.
	if _, err := resolver.Resolve(goodToken); err != nil {
		t.Fatalf("Resolve() good token error = %v", err)
	}
}
