// Package storage contains the backend-agnostic destination contract and a
// factory that backends register themselves with at init time.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"socrata2sql/internal/ddl"
	"socrata2sql/internal/loader"
)

// Destination is a database a dataset can be loaded into: the schema-time
// operations used by ddl.BuildAndCreate plus the bulk insert used by the
// loader.
type Destination interface {
	ddl.Destination
	loader.Sink
	Close()
}

// Config selects a backend and carries its connection string.
type Config struct {
	Kind string
	DSN  string
}

// Factory opens a Destination for cfg.
type Factory func(ctx context.Context, cfg Config) (Destination, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New opens a Destination using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Destination, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
