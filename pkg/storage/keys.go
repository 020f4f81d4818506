package storage

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewRunID returns a fresh crawl run identifier.
func NewRunID() string {
	return uuid.NewString()
}

func contentHash(content string) string {
	if content == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
