package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the hex SHA-256 of raw content. Used to derive stable
// document identifiers from uploaded bytes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ShortContentHash returns the first 16 hex characters of ContentHash,
// enough for log-friendly identifiers.
func ShortContentHash(data []byte) string {
	return ContentHash(data)[:16]
}
