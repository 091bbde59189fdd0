package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidSessionToken covers malformed, mis-signed, expired, and
// wrong-audience session tokens.
var ErrInvalidSessionToken = errors.New("security: invalid session token")

// SessionClaims are the claims carried by an issued session token.
type SessionClaims struct {
	UserID string   `json:"uid"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// SessionTokenService issues and parses HMAC-signed (HS256) session tokens.
type SessionTokenService struct {
	key      []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionTokenService constructs a session token service.
func NewSessionTokenService(key, issuer, audience string, ttl time.Duration) (*SessionTokenService, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("session signing key must be at least 32 bytes")
	}
	if issuer == "" || audience == "" {
		return nil, fmt.Errorf("issuer and audience are required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}

	return &SessionTokenService{
		key:      []byte(key),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// WithClock overrides the time source, used by tests to exercise expiry.
func (s *SessionTokenService) WithClock(now func() time.Time) *SessionTokenService {
	clone := *s
	clone.now = now
	return &clone
}

// Issue signs a session token for the user. The subject is the username as
// registered; each assigned role becomes an entry in the roles claim.
func (s *SessionTokenService) Issue(userID, userName string, roles []string) (string, error) {
	if userID == "" || userName == "" {
		return "", fmt.Errorf("user id and username are required")
	}

	issuedAt := s.now()
	claims := SessionClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userName,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	return token, nil
}

// Parse validates the token signature, expiry, issuer, and audience, and
// returns the embedded claims.
func (s *SessionTokenService) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.key, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSessionToken
	}

	return claims, nil
}
