package security

import (
	"crypto/rand"
	"encoding/base64"
)

// RandomToken returns a URL-safe random token of bytesLen entropy bytes.
func RandomToken(bytesLen int) (string, error) {
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
