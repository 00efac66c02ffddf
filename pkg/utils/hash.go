package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns a stable hex digest of the input, used as a cache
// key for embeddings and as a dedupe key for ingested files.
func ContentHash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
