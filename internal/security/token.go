package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// NewRefreshToken returns an opaque 128-bit random bearer value.
func NewRefreshToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
