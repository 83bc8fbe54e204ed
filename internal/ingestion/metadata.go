package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the SHA-256 hex digest of the normalized JD text, so
// two descriptions differing only in formatting share a fingerprint.
func Fingerprint(jdText string) string {
	return computeHash(NormalizeJDText(jdText))
}

func computeHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
