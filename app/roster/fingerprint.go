package roster

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint computes the canonical fingerprint of a canonicalized roster:
// a SHA-256 digest rendered as lowercase hex. Identical canonical text always
// yields an identical fingerprint.
func Fingerprint(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
