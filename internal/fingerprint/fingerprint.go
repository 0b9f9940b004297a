// Package fingerprint computes the content-identity digest used to decide
// whether the local and remote copies of the guide hold the same text.
// The embedded version marker is stripped before hashing, so two copies
// that differ only in version metadata fingerprint as identical. This is
// the sole mechanism for content equality; it takes priority over any
// timestamp comparison.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/alexjbarnes/guidesync/internal/version"
)

// Sum returns the hex SHA-256 digest of text with the version marker and
// leading/trailing whitespace removed. Identical stripped text always
// yields an identical digest.
func Sum(text string) string {
	stripped := strings.TrimSpace(version.Strip(text))

	h := sha256.Sum256([]byte(stripped))

	return hex.EncodeToString(h[:])
}

// Equal reports whether two texts carry the same content once version
// metadata is ignored.
func Equal(a, b string) bool {
	return Sum(a) == Sum(b)
}
