package content

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Canonicalize collapses whitespace runs to single spaces and trims the
// result, so re-renders that only shuffle line breaks produce identical
// canonical text.
func Canonicalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Fingerprint returns the SHA-256 hex digest of the canonical text. It is
// only used as a cheap equality check between cycles; the alert decision
// itself is based on substring presence.
func Fingerprint(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Normalize canonicalizes raw page text and fingerprints the result.
func Normalize(raw string) (canonical, fingerprint string) {
	canonical = Canonicalize(raw)
	return canonical, Fingerprint(canonical)
}

// Contains reports whether the search fragment occurs in the canonical
// text. Matching is case-sensitive exact substring containment.
func Contains(canonical, fragment string) bool {
	return strings.Contains(canonical, fragment)
}
