package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token purposes. A token minted for one purpose never validates for another.
const (
	PurposeConfirmEmail  = "confirm_email"
	PurposeResetPassword = "reset_password"
)

// ErrInvalidOrExpiredToken is returned for every validation failure —
// malformed, expired, wrong purpose, wrong user, or stamp mismatch — so
// callers cannot distinguish why a token was rejected.
var ErrInvalidOrExpiredToken = errors.New("security: invalid or expired token")

// PurposeTokenService mints and validates single-purpose account tokens.
// The MAC covers the user's security stamp, so rotating the stamp
// invalidates every token issued before the rotation.
type PurposeTokenService struct {
	secret     []byte
	confirmTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// NewPurposeTokenService constructs a token service with the given signing
// secret and per-purpose lifetimes.
func NewPurposeTokenService(secret string, confirmTTL, resetTTL time.Duration) (*PurposeTokenService, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("purpose token secret must be at least 32 bytes")
	}
	if confirmTTL <= 0 || resetTTL <= 0 {
		return nil, fmt.Errorf("purpose token lifetimes must be positive")
	}

	return &PurposeTokenService{
		secret:     []byte(secret),
		confirmTTL: confirmTTL,
		resetTTL:   resetTTL,
		now:        time.Now,
	}, nil
}

// WithClock overrides the time source, used by tests to exercise expiry.
func (s *PurposeTokenService) WithClock(now func() time.Time) *PurposeTokenService {
	clone := *s
	clone.now = now
	return &clone
}

// GenerateConfirmToken mints an email-confirmation token bound to the user's
// current security stamp.
func (s *PurposeTokenService) GenerateConfirmToken(userID, securityStamp string) (string, error) {
	return s.generate(userID, securityStamp, PurposeConfirmEmail, s.confirmTTL)
}

// GenerateResetToken mints a password-reset token bound to the user's
// current security stamp.
func (s *PurposeTokenService) GenerateResetToken(userID, securityStamp string) (string, error) {
	return s.generate(userID, securityStamp, PurposeResetPassword, s.resetTTL)
}

func (s *PurposeTokenService) generate(userID, securityStamp, purpose string, ttl time.Duration) (string, error) {
	if userID == "" || securityStamp == "" {
		return "", fmt.Errorf("user id and security stamp are required")
	}

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate token nonce: %w", err)
	}

	payload := strings.Join([]string{
		userID,
		purpose,
		strconv.FormatInt(s.now().Add(ttl).Unix(), 10),
		base64.RawURLEncoding.EncodeToString(nonce),
	}, "|")

	mac := s.mac(payload, securityStamp)

	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." +
		base64.RawURLEncoding.EncodeToString(mac), nil
}

// ValidateConfirmToken checks an email-confirmation token against the user's
// current security stamp.
func (s *PurposeTokenService) ValidateConfirmToken(token, userID, securityStamp string) error {
	return s.validate(token, userID, securityStamp, PurposeConfirmEmail)
}

// ValidateResetToken checks a password-reset token against the user's
// current security stamp.
func (s *PurposeTokenService) ValidateResetToken(token, userID, securityStamp string) error {
	return s.validate(token, userID, securityStamp, PurposeResetPassword)
}

func (s *PurposeTokenService) validate(token, userID, securityStamp, purpose string) error {
	encodedPayload, encodedMAC, found := strings.Cut(token, ".")
	if !found {
		return ErrInvalidOrExpiredToken
	}

	payloadBytes, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}
	providedMAC, err := base64.RawURLEncoding.DecodeString(encodedMAC)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}

	payload := string(payloadBytes)
	if !hmac.Equal(providedMAC, s.mac(payload, securityStamp)) {
		return ErrInvalidOrExpiredToken
	}

	fields := strings.Split(payload, "|")
	if len(fields) != 4 {
		return ErrInvalidOrExpiredToken
	}
	if fields[0] != userID || fields[1] != purpose {
		return ErrInvalidOrExpiredToken
	}

	expiry, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil || s.now().After(time.Unix(expiry, 0)) {
		return ErrInvalidOrExpiredToken
	}

	return nil
}

func (s *PurposeTokenService) mac(payload, securityStamp string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(payload))
	h.Write([]byte{'|'})
	h.Write([]byte(securityStamp))
	return h.Sum(nil)
}
