package blob

import (
	"context"
	"io"
)

// Storage is the blob-storage collaborator. The system only ever writes to
// it: chat exports and uploaded image bytes go in, a durable path comes back.
type Storage interface {
	// Save stores the file and returns its object path.
	Save(ctx context.Context, req SaveRequest) (string, error)
	// URL resolves an object path to an externally reachable URL.
	URL(path string) string
}

// SaveRequest carries one file to store.
type SaveRequest struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
	Owner       string
}
