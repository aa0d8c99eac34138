// Package sha256 computes the SHA-256 digest of normalized signature bytes.
//
// Go's crypto/sha256 is kept on the standard library deliberately: it is
// itself the ecosystem-idiomatic way to compute SHA-256 in Go, and no
// third-party package anywhere in the example pack displaces it.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hexdigest returns the lowercase hex SHA-256 digest of data.
func Hexdigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
