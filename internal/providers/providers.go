package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/shared"
)

// StreamHandle is a resolved, ready-to-stream source descriptor handed to
// the external playback router. The URL plus headers are sufficient to begin
// audio playback; ExpiresAt is zero for non-expiring handles (local files,
// radio streams).
type StreamHandle struct {
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	MimeType  string            `json:"mime_type,omitempty"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}

// Iterator is a lazy, finite sequence of provider records. A fresh iterator
// is obtained per sync pass, so passes are restartable.
type Iterator interface {
	// Next returns the next record. ok is false when the sequence is
	// exhausted; err is non-nil when fetching the next page failed.
	Next(ctx context.Context) (rec models.ProviderRecord, ok bool, err error)
}

// Provider is the uniform capability set the core consumes: list library
// items, and resolve a record into a live stream handle.
//
// ListLibraryItems fails with [shared.ErrProviderUnavailable] when the
// session/auth is invalid. ResolveStream fails with
// [shared.ErrStreamUnresolvable] when the record went stale between sync and
// playback.
type Provider interface {
	ID() string
	Name() string
	ListLibraryItems(ctx context.Context, kind models.Kind) (Iterator, error)
	ResolveStream(ctx context.Context, rec models.ProviderRecord) (StreamHandle, error)
}

// Registry holds the configured providers keyed by id.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. Registering a duplicate id is an error.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[p.ID()]; exists {
		return fmt.Errorf("%w: duplicate provider id %q", shared.ErrInvalidConfig, p.ID())
	}
	r.providers[p.ID()] = p
	return nil
}

// Get returns the provider with the given id.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrProviderUnknown, id)
	}
	return p, nil
}

// All returns every registered provider, sorted by id for deterministic
// iteration.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// SliceIterator adapts a fully materialized record slice to [Iterator].
// Adapters that fetch everything up front (filesystem walk, single directory
// response) use it instead of hand-rolling pagination.
type SliceIterator struct {
	records []models.ProviderRecord
	pos     int
}

// NewSliceIterator wraps records in an iterator.
func NewSliceIterator(records []models.ProviderRecord) *SliceIterator {
	return &SliceIterator{records: records}
}

// Next implements [Iterator].
func (it *SliceIterator) Next(ctx context.Context) (models.ProviderRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.ProviderRecord{}, false, err
	}
	if it.pos >= len(it.records) {
		return models.ProviderRecord{}, false, nil
	}
	rec := it.records[it.pos]
	it.pos++
	return rec, true, nil
}
