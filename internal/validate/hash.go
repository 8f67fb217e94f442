package validate

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// ContentHash returns the hex SHA-256 of the NFC-normalized content.
// Normalizing first keeps visually identical policies on the same
// cache key regardless of how their Unicode was composed.
func ContentHash(content string) string {
	normalized := norm.NFC.String(content)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
