package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// RefreshTokenBytes is the raw entropy of a refresh token. The token carries
// no claims and no signature; its security is its unguessability plus the
// server-side comparison against the stored slot.
const RefreshTokenBytes = 64

func NewRefreshToken() (string, error) {
	buf := make([]byte, RefreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf), nil
}
