package theme

import (
	"context"
	"errors"
	"fmt"
	"log"

	"skychat/internal/kv"
	"skychat/internal/models"
)

const keyUserTheme = "userTheme"

// Store persists the theme preference with store-then-local-fallback
// semantics: reads prefer the remote store, writes go to both sides with no
// rollback if one fails.
type Store struct {
	remote kv.Store
	local  kv.Store
	detect func() models.Theme
}

// NewStore constructs a theme store. detect supplies the system-level
// preference used when neither store has a value; nil defaults to light.
func NewStore(remote, local kv.Store, detect func() models.Theme) *Store {
	if detect == nil {
		detect = func() models.Theme { return models.ThemeLight }
	}
	return &Store{remote: remote, local: local, detect: detect}
}

// Load tries the remote store, then the local store, then system detection.
func (s *Store) Load(ctx context.Context) models.Theme {
	if s.remote != nil {
		if v, err := s.remote.Get(ctx, keyUserTheme); err == nil {
			if t := models.Theme(v); t.Valid() {
				return t
			}
		} else if !errors.Is(err, kv.ErrNotFound) {
			log.Printf("load theme: %v", err)
		}
	}
	if s.local != nil {
		if v, err := s.local.Get(ctx, keyUserTheme); err == nil {
			if t := models.Theme(v); t.Valid() {
				return t
			}
		}
	}
	return s.detect()
}

// Set writes the preference to both stores. Either side is treated as
// sufficient; the error is non-nil only when both writes fail.
func (s *Store) Set(ctx context.Context, t models.Theme) error {
	if !t.Valid() {
		return fmt.Errorf("theme: invalid value %q", t)
	}
	var remoteErr, localErr error
	if s.remote != nil {
		if remoteErr = s.remote.Set(ctx, keyUserTheme, string(t)); remoteErr != nil {
			log.Printf("save theme remotely: %v", remoteErr)
		}
	}
	if s.local != nil {
		if localErr = s.local.Set(ctx, keyUserTheme, string(t)); localErr != nil {
			log.Printf("save theme locally: %v", localErr)
		}
	}
	if remoteErr != nil && localErr != nil {
		return fmt.Errorf("save theme: %w", remoteErr)
	}
	return nil
}
