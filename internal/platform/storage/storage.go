// Package storage persists generated documents either on local disk or in a
// Supabase Storage bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Store saves and loads binary objects by key.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Options selects and configures a Store implementation.
type Options struct {
	Driver      string
	Dir         string
	SupabaseURL string
	ServiceKey  string
	Bucket      string
}

// New builds the Store selected by opts.Driver.
func New(opts Options) (Store, error) {
	switch strings.ToLower(opts.Driver) {
	case "", "local":
		return NewLocal(opts.Dir)
	case "supabase":
		return NewSupabase(opts.SupabaseURL, opts.ServiceKey, opts.Bucket, nil)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(path.Clean("/"+strings.TrimSpace(key)), "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("storage: empty key")
	}
	return key, nil
}
