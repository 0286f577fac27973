package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"skychat/internal/config"
)

type fakeIdentity struct {
	user  *User
	err   error
	calls int
}

func (f *fakeIdentity) CurrentUser(ctx context.Context, token string) (*User, error) {
	f.calls++
	return f.user, f.err
}

func (f *fakeIdentity) SignOut(ctx context.Context, token string) error {
	return nil
}

func TestServiceCurrentUser(t *testing.T) {
	identity := &fakeIdentity{user: &User{ID: "u1", Username: "alice"}}
	s := NewService(identity, nil, 0)

	user, err := s.CurrentUser(context.Background(), "tok")
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if user.ID != "u1" || user.Username != "alice" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestServiceEmptyTokenIsUnauthorized(t *testing.T) {
	s := NewService(&fakeIdentity{}, nil, 0)
	if _, err := s.CurrentUser(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestServicePropagatesProviderRejection(t *testing.T) {
	s := NewService(&fakeIdentity{err: ErrUnauthorized}, nil, 0)
	if _, err := s.CurrentUser(context.Background(), "bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestPlatformIdentityCurrentUser(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(User{ID: "u9", Username: "carol"})
	}))
	defer srv.Close()

	p := NewPlatformIdentity(config.IdentityConfig{BaseURL: srv.URL})
	user, err := p.CurrentUser(context.Background(), "tok-9")
	if err != nil {
		t.Fatalf("current user: %v", err)
	}
	if user.ID != "u9" || user.Username != "carol" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if gotPath != "/whoami" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok-9" {
		t.Fatalf("auth header = %q", gotAuth)
	}
}

func TestPlatformIdentityRejections(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		p := NewPlatformIdentity(config.IdentityConfig{BaseURL: srv.URL})
		if _, err := p.CurrentUser(context.Background(), "tok"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("status %d: expected ErrUnauthorized, got %v", status, err)
		}
		srv.Close()
	}
}

func TestPlatformIdentityEmptyUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(User{})
	}))
	defer srv.Close()

	p := NewPlatformIdentity(config.IdentityConfig{BaseURL: srv.URL})
	if _, err := p.CurrentUser(context.Background(), "tok"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for empty id, got %v", err)
	}
}
