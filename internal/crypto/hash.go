// Package crypto provides hashing helpers for identifiers that must not appear
// in logs or error reports in clear.
package crypto

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// fingerprintLen is the number of hash bytes kept in a fingerprint.
const fingerprintLen = 8

// Fingerprint returns a short, stable, non-reversible tag for a secret
// identifier such as a group id. Equal inputs give equal fingerprints, so log
// lines for one group can still be correlated.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:fingerprintLen])
}
