// Package fingerprint derives stable, non-reversible tokens for PII such as
// Pix key values so they can appear in logs, events and cache keys.
package fingerprint

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Of returns a 32-hex-character BLAKE2b-256 prefix of the normalized value.
// Values are lowercased and trimmed first so "A@x.com" and "a@x.com " collide.
func Of(value string) string {
	sum := blake2b.Sum256([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(sum[:16])
}
