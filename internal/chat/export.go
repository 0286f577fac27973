package chat

import (
	"context"
	"fmt"
	"strings"

	"skychat/internal/blob"
)

// ErrNothingToExport is returned when the current session has no messages.
var ErrNothingToExport = fmt.Errorf("chat: nothing to export")

// Export renders the current session as plain text and writes it to the
// file-storage collaborator. It returns the generated filename.
func (m *Manager) Export(ctx context.Context) (string, error) {
	m.mu.Lock()
	messages := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		header := strings.ToUpper(string(msg.Role))
		if msg.Model != "" {
			header += " - " + msg.Model
		}
		messages = append(messages, fmt.Sprintf("[%s]: %s", header, msg.Content))
	}
	model := m.model
	owner := m.owner
	now := m.now()
	m.mu.Unlock()

	if len(messages) == 0 {
		return "", ErrNothingToExport
	}

	content := strings.Join(messages, "\n\n")
	filename := fmt.Sprintf("chat_%s_%d.txt", sanitizeModel(model), now.UnixMilli())

	req := blob.SaveRequest{
		FileName:    filename,
		ContentType: "text/plain; charset=utf-8",
		Size:        int64(len(content)),
		Reader:      strings.NewReader(content),
		Owner:       owner,
	}
	if _, err := m.files.Save(ctx, req); err != nil {
		return "", fmt.Errorf("export chat: %w", err)
	}
	return filename, nil
}

func sanitizeModel(model string) string {
	return strings.NewReplacer("/", "-", ":", "-").Replace(model)
}
