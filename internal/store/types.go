package store

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("store disabled")

// Config configures the document store.
//
// Driver values:
//   - "file": one JSON document file per key under Path (a directory)
//   - "sqlite": SQLite database file (optional build tag)
//   - "memory": non-persistent, process-local
//
// If Driver is empty or "none", persistence is disabled and Open returns
// a memory store so callers never branch on nil.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// DocStore is the minimal persistence API the entity services consume.
// Get reports ok=false for a key that has never been set.
type DocStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}
