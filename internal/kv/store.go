package kv

import (
	"context"
	"errors"
)

// ErrNotFound marks a key miss for callers.
var ErrNotFound = errors.New("kv: key not found")

// Store is the narrow contract of the platform key-value collaborator:
// string keys, opaque string values, a per-key size ceiling enforced by the
// platform, no transactions, no listing.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type namespaced struct {
	inner  Store
	prefix string
}

// Namespaced wraps a store so every key is prefixed, giving each user an
// isolated keyspace while leaving leaf key names intact.
func Namespaced(inner Store, prefix string) Store {
	if prefix == "" {
		return inner
	}
	return &namespaced{inner: inner, prefix: prefix + ":"}
}

func (n *namespaced) Get(ctx context.Context, key string) (string, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}
