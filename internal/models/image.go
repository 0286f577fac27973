package models

import (
	"strings"
	"time"
)

// GeneratedImage records one text-to-image result. URL is either a remote
// reference or an inline data payload; inline payloads are excluded from
// persistence because they blow the per-key size ceiling of the store.
type GeneratedImage struct {
	ID        int64     `json:"id"`
	Prompt    string    `json:"prompt"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
	Generated bool      `json:"generated"`
	TestMode  bool      `json:"testMode,omitempty"`
}

// Inline reports whether the image reference embeds the full byte content
// instead of pointing at remote storage.
func (g GeneratedImage) Inline() bool {
	return strings.HasPrefix(g.URL, "data:")
}

// UploadedImage describes an image handed to the analysis session. It lives
// in memory only and is never written to the key-value store.
type UploadedImage struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	MimeType    string    `json:"type"`
	PreviewURL  string    `json:"previewUrl"`
	StoragePath string    `json:"filePath"`
	Payload     string    `json:"-"`
	UploadedAt  time.Time `json:"uploadedAt"`
}
