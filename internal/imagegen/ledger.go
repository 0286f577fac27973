package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"skychat/internal/ai"
	"skychat/internal/kv"
	"skychat/internal/models"
)

const (
	keyGeneratedImages = "generatedImages"

	// persistLimit caps how many records are written to the store.
	persistLimit = 3
	// promptLimit truncates prompts before persistence.
	promptLimit = 50
	// sizeBudget is the serialized-size ceiling for the persisted ledger,
	// safely under the store's per-key limit.
	sizeBudget = 300 * 1024
)

var (
	// ErrNothingPersistable is returned when every record carries an inline
	// payload, which is too large for the store.
	ErrNothingPersistable = errors.New("imagegen: no records with a remote reference to persist")

	// ErrPersistTooLarge is returned when even a single record exceeds the
	// size budget.
	ErrPersistTooLarge = errors.New("imagegen: serialized ledger exceeds size budget")
)

// Ledger requests image synthesis and maintains a persisted, size-bounded
// record of results. The in-memory view may temporarily hold more than what
// is persisted; persistence trades completeness for guaranteed writability.
type Ledger struct {
	store kv.Store
	ai    ai.Client
	now   func() time.Time

	onTestModeFallback func()

	mu       sync.Mutex
	records  []models.GeneratedImage
	testMode bool
}

// Options tunes a Ledger.
type Options struct {
	TestMode bool
	Now      func() time.Time
}

// NewLedger constructs a ledger over the injected collaborators.
func NewLedger(store kv.Store, aiClient ai.Client, opts Options) *Ledger {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ledger{
		store:    store,
		ai:       aiClient,
		now:      opts.Now,
		testMode: opts.TestMode,
	}
}

// RegisterFallbackListener installs a callback fired when generation falls
// back to test mode because of insufficient funds.
func (l *Ledger) RegisterFallbackListener(fn func()) {
	l.mu.Lock()
	l.onTestModeFallback = fn
	l.mu.Unlock()
}

// Load restores persisted records, treating absent or corrupt data as empty.
func (l *Ledger) Load(ctx context.Context) {
	raw, err := l.store.Get(ctx, keyGeneratedImages)
	if err != nil {
		return
	}
	var records []models.GeneratedImage
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		log.Printf("load generated images: %v", err)
		return
	}
	l.mu.Lock()
	l.records = records
	l.mu.Unlock()
}

// Generate requests an image for the prompt. On an insufficient-funds
// failure outside test mode it retries once in test mode and permanently
// flips the preferred mode. The returned warning is non-empty when the
// record could not be persisted; the record stays in memory regardless.
func (l *Ledger) Generate(ctx context.Context, prompt string) (models.GeneratedImage, string, error) {
	l.mu.Lock()
	testMode := l.testMode
	l.mu.Unlock()

	ref, err := l.ai.TextToImage(ctx, prompt, testMode)
	actualTestMode := testMode
	if err != nil && ai.IsInsufficientFunds(err) && !testMode {
		log.Printf("insufficient funds, retrying in test mode")
		actualTestMode = true
		ref, err = l.ai.TextToImage(ctx, prompt, true)
		if err == nil {
			l.mu.Lock()
			l.testMode = true
			fn := l.onTestModeFallback
			l.mu.Unlock()
			if fn != nil {
				fn()
			}
		}
	}
	if err != nil {
		if ai.IsInsufficientFunds(err) {
			l.mu.Lock()
			l.testMode = true
			l.mu.Unlock()
		}
		return models.GeneratedImage{}, "", fmt.Errorf("generate image: %w", err)
	}

	record := models.GeneratedImage{
		ID:        models.NewID(),
		Prompt:    models.Truncate(prompt, 100),
		URL:       ref,
		Timestamp: l.now(),
		Generated: true,
		TestMode:  actualTestMode,
	}

	l.mu.Lock()
	l.records = append(l.records, record)
	snapshot := make([]models.GeneratedImage, len(l.records))
	copy(snapshot, l.records)
	l.mu.Unlock()

	warning := ""
	if err := l.persist(ctx, snapshot); err != nil {
		log.Printf("persist generated images: %v", err)
		warning = "image generated but could not be saved to storage; it remains visible for this session only"
	}
	return record, warning, nil
}

// persist applies the shrink policy before writing: keep at most the 3 most
// recent records, truncate prompts, drop inline payloads, and collapse to
// the single most recent record if the serialized list still exceeds the
// budget.
func (l *Ledger) persist(ctx context.Context, records []models.GeneratedImage) error {
	if len(records) > persistLimit {
		records = records[len(records)-persistLimit:]
	}

	shrunk := make([]models.GeneratedImage, 0, len(records))
	for _, rec := range records {
		if rec.Inline() || rec.URL == "" {
			continue
		}
		rec.Prompt = models.Truncate(rec.Prompt, promptLimit)
		rec.Timestamp = rec.Timestamp.Truncate(time.Second).UTC()
		shrunk = append(shrunk, rec)
	}
	if len(shrunk) == 0 {
		return ErrNothingPersistable
	}

	data, err := json.Marshal(shrunk)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if len(data) > sizeBudget {
		single := shrunk[len(shrunk)-1:]
		data, err = json.Marshal(single)
		if err != nil {
			return fmt.Errorf("marshal ledger: %w", err)
		}
		if len(data) > sizeBudget {
			return ErrPersistTooLarge
		}
	}
	if err := l.store.Set(ctx, keyGeneratedImages, string(data)); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

// Delete removes the record from the in-memory ledger. Persistence re-runs
// only when at least one remaining record has a remote reference; otherwise
// the write is skipped and the ledger stays in-memory only.
func (l *Ledger) Delete(ctx context.Context, id int64) {
	l.mu.Lock()
	filtered := make([]models.GeneratedImage, 0, len(l.records))
	hasRemote := false
	for _, rec := range l.records {
		if rec.ID == id {
			continue
		}
		if !rec.Inline() && rec.URL != "" {
			hasRemote = true
		}
		filtered = append(filtered, rec)
	}
	l.records = filtered
	snapshot := make([]models.GeneratedImage, len(filtered))
	copy(snapshot, filtered)
	l.mu.Unlock()

	if !hasRemote {
		return
	}
	if err := l.persist(ctx, snapshot); err != nil {
		log.Printf("persist after delete: %v", err)
	}
}

// Records returns a copy of the in-memory ledger.
func (l *Ledger) Records() []models.GeneratedImage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.GeneratedImage, len(l.records))
	copy(out, l.records)
	return out
}

// TestMode reports the preferred generation mode.
func (l *Ledger) TestMode() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.testMode
}

// SetTestMode overrides the preferred generation mode.
func (l *Ledger) SetTestMode(on bool) {
	l.mu.Lock()
	l.testMode = on
	l.mu.Unlock()
}
