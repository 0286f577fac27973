package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"skychat/internal/config"
	"skychat/internal/kv"
)

// ErrUnauthorized marks an invalid or expired platform token.
var ErrUnauthorized = errors.New("auth: invalid or expired token")

// User is the identity collaborator's view of a signed-in account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Identity is the consumed contract of the platform identity provider.
type Identity interface {
	CurrentUser(ctx context.Context, token string) (*User, error)
	SignOut(ctx context.Context, token string) error
}

// Service resolves platform-issued bearer tokens into users, caching
// successful lookups in redis to keep the identity provider off the hot
// path.
type Service struct {
	identity Identity
	cache    *kv.RedisStore
	ttl      time.Duration
}

// NewService constructs an auth service with the supplied cache lifetime.
func NewService(identity Identity, cache *kv.RedisStore, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{identity: identity, cache: cache, ttl: ttl}
}

// CurrentUser returns the user behind the token, from cache when possible.
func (s *Service) CurrentUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	cacheKey := "auth:token:" + token

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey); err == nil {
			var user User
			if err := json.Unmarshal([]byte(raw), &user); err == nil {
				return &user, nil
			}
		}
	}

	user, err := s.identity.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(user); err == nil {
			if err := s.cache.SetTTL(ctx, cacheKey, string(data), s.ttl); err != nil {
				log.Printf("cache user lookup: %v", err)
			}
		}
	}
	return user, nil
}

// SignOut revokes the cached token and signs out at the provider.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, "auth:token:"+token); err != nil {
			log.Printf("drop cached token: %v", err)
		}
	}
	return s.identity.SignOut(ctx, token)
}

// PlatformIdentity talks to the platform identity endpoint over HTTP.
type PlatformIdentity struct {
	baseURL string
	client  *http.Client
}

// NewPlatformIdentity constructs the HTTP identity client from app config.
func NewPlatformIdentity(cfg config.IdentityConfig) *PlatformIdentity {
	return &PlatformIdentity{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// CurrentUser resolves the token via the platform's whoami endpoint.
func (p *PlatformIdentity) CurrentUser(ctx context.Context, token string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/whoami", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	if user.ID == "" {
		return nil, ErrUnauthorized
	}
	return &user, nil
}

// SignOut invalidates the token at the platform.
func (p *PlatformIdentity) SignOut(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	resp.Body.Close()
	return nil
}
