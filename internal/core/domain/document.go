package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded DocumentStatus = "uploaded"
	StatusIndexing DocumentStatus = "indexing"
	StatusReady    DocumentStatus = "ready"
	StatusFailed   DocumentStatus = "failed"
)

// Document is the single active knowledge source. Uploading a new one
// replaces the previous document wholesale.
type Document struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Text          string         `json:"-"`
	Fingerprint   string         `json:"fingerprint"`
	Chars         int            `json:"chars"`
	OriginalChars int            `json:"original_chars"`
	Truncated     bool           `json:"truncated"`
	Status        DocumentStatus `json:"status"`
	Error         string         `json:"error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// ContentFingerprint derives the cache key for an index built from this
// document text. Two uploads with identical text but different timestamps
// produce different fingerprints, so an edit-and-revert still rebuilds.
func ContentFingerprint(text string, updatedAt time.Time) string {
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte("|"))
	h.Write([]byte(updatedAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))
}
