// Package storage provides the durable client-side key/value storage that
// holds the auth token between runs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/vidinsight/client/internal/db"
)

// ErrNotFound indicates the key has no stored value.
var ErrNotFound = errors.New("storage: key not found")

// Store persists small string values under string keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Closer is implemented by stores holding network resources.
type Closer interface {
	Close() error
}

// Options tunes backend construction.
type Options struct {
	// Passphrase seals file-backed values at rest when non-empty.
	Passphrase string
}

// Open selects a backend from rawURL:
//
//	memory://                 in-process map
//	postgres://… | postgresql://…  client_storage table
//	redis://… | rediss://…    redis keys prefixed "vidinsight:"
//	file:///path or a bare path     JSON document on disk
func Open(ctx context.Context, rawURL string, opts Options) (Store, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("storage: url is required")
	}

	scheme := ""
	if u, err := url.Parse(rawURL); err == nil {
		scheme = strings.ToLower(u.Scheme)
	}

	switch scheme {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres", "postgresql":
		pool, err := db.Connect(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool), nil
	case "redis", "rediss":
		return NewRedisStoreFromURL(rawURL)
	case "file":
		u, _ := url.Parse(rawURL)
		return NewFileStore(u.Path, opts.Passphrase)
	case "":
		return NewFileStore(rawURL, opts.Passphrase)
	default:
		return nil, fmt.Errorf("storage: unsupported scheme %q", scheme)
	}
}
