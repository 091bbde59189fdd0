package security

import (
	"errors"
	"testing"
	"time"
)

const testSigningKey = "abcdefghijklmnopqrstuvwxyz012345"

func newTestSessionService(t *testing.T) *SessionTokenService {
	t.Helper()

	svc, err := NewSessionTokenService(testSigningKey, "spaceuser", "spaceuser-clients", 120*time.Minute)
	if err != nil {
		t.Fatalf("NewSessionTokenService returned error: %v", err)
	}
	return svc
}

func TestSessionTokenIssueAndParse(t *testing.T) {
	svc := newTestSessionService(t)

	token, err := svc.Issue("user-1", "alice@example.com", []string{"Basic", "Premium"})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	claims, err := svc.Parse(token)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if claims.Subject != "alice@example.com" {
		t.Fatalf("expected subject alice@example.com, got %q", claims.Subject)
	}
	if claims.UserID != "user-1" {
		t.Fatalf("expected uid user-1, got %q", claims.UserID)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "Basic" || claims.Roles[1] != "Premium" {
		t.Fatalf("unexpected roles claim: %v", claims.Roles)
	}
	if claims.ID == "" {
		t.Fatal("expected a jti claim")
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Fatal("expected iat and exp claims")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 120*time.Minute {
		t.Fatalf("expected 120m lifetime, got %s", got)
	}
}

func TestSessionTokenUniqueJTI(t *testing.T) {
	svc := newTestSessionService(t)

	first, err := svc.Issue("user-1", "alice@example.com", nil)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	second, err := svc.Issue("user-1", "alice@example.com", nil)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	firstClaims, err := svc.Parse(first)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	secondClaims, err := svc.Parse(second)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if firstClaims.ID == secondClaims.ID {
		t.Fatal("expected unique jti per issued token")
	}
}

func TestSessionTokenRejectedWithWrongKey(t *testing.T) {
	svc := newTestSessionService(t)

	other, err := NewSessionTokenService("0123456789abcdef0123456789abcdef", "spaceuser", "spaceuser-clients", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionTokenService returned error: %v", err)
	}

	token, err := other.Issue("user-1", "alice@example.com", nil)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	if _, err := svc.Parse(token); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken for foreign signature, got %v", err)
	}
}

func TestSessionTokenRejectedAfterExpiry(t *testing.T) {
	issuedAt := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

	svc := newTestSessionService(t).WithClock(func() time.Time { return issuedAt })
	token, err := svc.Issue("user-1", "alice@example.com", nil)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	late := newTestSessionService(t).WithClock(func() time.Time { return issuedAt.Add(121 * time.Minute) })
	if _, err := late.Parse(token); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken after expiry, got %v", err)
	}
}

func TestSessionTokenRejectedForWrongIssuer(t *testing.T) {
	foreign, err := NewSessionTokenService(testSigningKey, "someone-else", "spaceuser-clients", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionTokenService returned error: %v", err)
	}

	token, err := foreign.Issue("user-1", "alice@example.com", nil)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	svc := newTestSessionService(t)
	if _, err := svc.Parse(token); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected ErrInvalidSessionToken for wrong issuer, got %v", err)
	}
}
