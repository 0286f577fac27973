package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"skychat/internal/ai"
	"skychat/internal/blob"
	"skychat/internal/kv"
	"skychat/internal/models"
)

const (
	keyCurrentSession = "currentChatSession"
	keySavedChats     = "savedChats"

	// DefaultSnapshotEvery is the message-count interval at which the
	// current session is snapshotted into the history list.
	DefaultSnapshotEvery = 5

	// DefaultHistoryLimit caps the history list; oldest entries are
	// evicted from the front.
	DefaultHistoryLimit = 50
)

// Manager owns the lifecycle of one user's current chat session and their
// bounded history list. Persistence is best effort over a store with no
// transactions: every external call is wrapped at this boundary, and a
// missing or corrupt stored record reads as empty.
type Manager struct {
	store kv.Store
	ai    ai.Client
	files blob.Storage

	owner         string
	snapshotEvery int
	historyLimit  int
	defaultModel  string
	now           func() time.Time

	onSessionLoaded func(models.ChatSession)

	mu        sync.Mutex
	sessionID int64
	model     string
	messages  []models.ChatMessage
}

// Options tunes a Manager. Zero values fall back to the defaults.
type Options struct {
	Owner         string
	SnapshotEvery int
	HistoryLimit  int
	DefaultModel  string
	Now           func() time.Time
}

// NewManager constructs a chat manager over the injected collaborators.
func NewManager(store kv.Store, aiClient ai.Client, files blob.Storage, opts Options) *Manager {
	if opts.SnapshotEvery <= 0 {
		opts.SnapshotEvery = DefaultSnapshotEvery
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = models.DefaultModel
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		store:         store,
		ai:            aiClient,
		files:         files,
		owner:         opts.Owner,
		snapshotEvery: opts.SnapshotEvery,
		historyLimit:  opts.HistoryLimit,
		defaultModel:  opts.DefaultModel,
		model:         opts.DefaultModel,
		now:           opts.Now,
	}
}

// RegisterSessionListener installs a callback fired whenever a history entry
// is loaded as the current session.
func (m *Manager) RegisterSessionListener(fn func(models.ChatSession)) {
	m.mu.Lock()
	m.onSessionLoaded = fn
	m.mu.Unlock()
}

// LoadCurrentSession restores the current-session record. Absent or corrupt
// data leaves the manager empty.
func (m *Manager) LoadCurrentSession(ctx context.Context) {
	raw, err := m.store.Get(ctx, keyCurrentSession)
	if err != nil {
		return
	}
	var session models.ChatSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		log.Printf("load current session: %v", err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = session.Messages
	m.sessionID = session.ID
	if session.Model != "" {
		m.model = session.Model
	}
}

// History reads and deserializes the saved history list, treating a missing
// or corrupt record as empty.
func (m *Manager) History(ctx context.Context) []models.ChatSession {
	return m.loadHistory(ctx)
}

// AppendUserMessage appends a user message and persists a fresh
// current-session snapshot.
func (m *Manager) AppendUserMessage(ctx context.Context, text string, image *models.MessageImage) models.ChatMessage {
	msg := models.ChatMessage{
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: m.now(),
		Image:     image,
	}
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.autoSave(ctx)
	m.mu.Unlock()
	return msg
}

// RequestAssistantReply invokes the inference provider with the message text
// and the session's model, awaiting a single non-streamed result. Provider
// failures are converted into a synthetic error-flagged assistant message;
// they are never retried and never escape this boundary.
func (m *Manager) RequestAssistantReply(ctx context.Context, text string) models.ChatMessage {
	m.mu.Lock()
	model := m.model
	m.mu.Unlock()

	reply, err := m.ai.Chat(ctx, text, ai.ChatOptions{Model: model})
	msg := models.ChatMessage{
		Role:      models.RoleAssistant,
		Timestamp: m.now(),
		Model:     model,
	}
	if err != nil {
		log.Printf("chat with %s: %v", model, err)
		msg.Content = fmt.Sprintf("Sorry, something went wrong while using model %s. Please try another model or try again!", model)
		msg.IsError = true
	} else {
		msg.Content = reply
	}

	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.autoSave(ctx)
	m.mu.Unlock()
	return msg
}

// AppendExchange records a prepared user/assistant pair, used when a reply
// was produced elsewhere (image analysis, OCR).
func (m *Manager) AppendExchange(ctx context.Context, prompt, response string, image *models.MessageImage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages,
		models.ChatMessage{Role: models.RoleUser, Content: prompt, Timestamp: m.now(), Image: image},
		models.ChatMessage{Role: models.RoleAssistant, Content: response, Timestamp: m.now(), Model: m.model},
	)
	m.autoSave(ctx)
}

// autoSave runs after every message-list mutation with m.mu held. The
// current-session snapshot is written unconditionally; every time the
// message count reaches a positive multiple of the snapshot interval the
// session is also upserted into the history list.
func (m *Manager) autoSave(ctx context.Context) {
	if m.sessionID == 0 {
		m.sessionID = models.NewID()
	}
	snapshot := m.snapshotLocked()

	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("marshal session: %v", err)
		return
	}
	if err := m.store.Set(ctx, keyCurrentSession, string(data)); err != nil {
		log.Printf("save current session: %v", err)
		return
	}

	if len(m.messages) > 0 && len(m.messages)%m.snapshotEvery == 0 {
		if err := m.saveToHistory(ctx, snapshot); err != nil {
			log.Printf("snapshot to history: %v", err)
		}
	}
}

// snapshotLocked builds a point-in-time copy of the current session.
func (m *Manager) snapshotLocked() models.ChatSession {
	msgs := make([]models.ChatMessage, len(m.messages))
	copy(msgs, m.messages)
	return models.ChatSession{
		ID:          m.sessionID,
		Messages:    msgs,
		Model:       m.model,
		Title:       models.SessionTitle(msgs),
		LastUpdated: m.now(),
	}
}

// saveToHistory upserts the snapshot into the history list by id, then
// evicts from the front while the list exceeds the limit.
func (m *Manager) saveToHistory(ctx context.Context, snapshot models.ChatSession) error {
	history := m.loadHistory(ctx)
	snapshot.Timestamp = m.now()

	replaced := false
	for i := range history {
		if history[i].ID == snapshot.ID {
			history[i] = snapshot
			replaced = true
			break
		}
	}
	if !replaced {
		history = append(history, snapshot)
	}
	if len(history) > m.historyLimit {
		history = history[len(history)-m.historyLimit:]
	}

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := m.store.Set(ctx, keySavedChats, string(data)); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

func (m *Manager) loadHistory(ctx context.Context) []models.ChatSession {
	raw, err := m.store.Get(ctx, keySavedChats)
	if err != nil {
		return nil
	}
	var history []models.ChatSession
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		log.Printf("load history: %v", err)
		return nil
	}
	return history
}

// SaveNow snapshots the current session into history immediately,
// independent of the periodic trigger.
func (m *Manager) SaveNow(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return nil
	}
	if m.sessionID == 0 {
		m.sessionID = models.NewID()
	}
	return m.saveToHistory(ctx, m.snapshotLocked())
}

// StartNewChat snapshots a non-empty current session into history, deletes
// the current-session record, and resets in-memory state.
func (m *Manager) StartNewChat(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) > 0 && m.sessionID != 0 {
		if err := m.saveToHistory(ctx, m.snapshotLocked()); err != nil {
			log.Printf("snapshot before new chat: %v", err)
		}
	}
	if err := m.store.Delete(ctx, keyCurrentSession); err != nil {
		log.Printf("clear current session: %v", err)
	}
	m.messages = nil
	m.sessionID = 0
}

// LoadFromHistory replaces the current session with the selected one,
// snapshotting a non-empty current session into history first.
func (m *Manager) LoadFromHistory(ctx context.Context, session models.ChatSession) {
	m.mu.Lock()
	if len(m.messages) > 0 && m.sessionID != 0 {
		if err := m.saveToHistory(ctx, m.snapshotLocked()); err != nil {
			log.Printf("snapshot before load: %v", err)
		}
	}
	m.messages = session.Messages
	m.sessionID = session.ID
	if session.Model != "" {
		m.model = session.Model
	} else {
		m.model = m.defaultModel
	}

	data, err := json.Marshal(session)
	if err == nil {
		if err := m.store.Set(ctx, keyCurrentSession, string(data)); err != nil {
			log.Printf("save loaded session: %v", err)
		}
	}
	fn := m.onSessionLoaded
	m.mu.Unlock()

	if fn != nil {
		fn(session)
	}
}

// DeleteFromHistory removes the matching entry from the persisted history
// list; unknown ids are a no-op.
func (m *Manager) DeleteFromHistory(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.loadHistory(ctx)
	filtered := history[:0]
	for _, entry := range history {
		if entry.ID != id {
			filtered = append(filtered, entry)
		}
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := m.store.Set(ctx, keySavedChats, string(data)); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Messages returns a copy of the current session's messages.
func (m *Manager) Messages() []models.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ChatMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// SessionID returns the current session id, zero when no session is active.
func (m *Manager) SessionID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Model returns the session's selected model.
func (m *Manager) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// SetModel selects the model for subsequent replies.
func (m *Manager) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if model != "" {
		m.model = model
	}
}
