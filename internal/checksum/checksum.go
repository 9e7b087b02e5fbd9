// Package checksum fingerprints note files for change detection and If-Match.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Match reports whether ifMatch is empty or equals the digest of data.
func Match(ifMatch string, data []byte) bool {
	return ifMatch == "" || ifMatch == Sum(data)
}
