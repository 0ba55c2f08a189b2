package token

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the sha256 hex digest of a signed token. Stores persist only
// the digest; the signed string stays with the client.
func Hash(tokenValue string) string {
	sum := sha256.Sum256([]byte(tokenValue))
	return hex.EncodeToString(sum[:])
}
