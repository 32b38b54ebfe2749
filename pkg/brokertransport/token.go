package brokertransport

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateToken generates a cryptographically secure random 12-character
// session token for a broker connection.
func GenerateToken() string {
	b := make([]byte, 9)
	if _, err := rand.Read(b); err != nil {
		panic(err) // should never fail
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
