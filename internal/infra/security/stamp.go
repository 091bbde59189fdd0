package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewSecurityStamp returns a fresh random security stamp. Writing a new
// stamp onto a user invalidates every confirmation and reset token minted
// under the old one.
func NewSecurityStamp() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate security stamp: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
