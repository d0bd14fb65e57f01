// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/providers"
)

// MockProvider is a scripted test double for [providers.Provider].
// Records returns per kind whatever the test loaded; failures can be
// injected per call site.
type MockProvider struct {
	mu sync.Mutex

	ProviderID   string
	DisplayName  string
	Records      map[models.Kind][]models.ProviderRecord
	ListErr      error
	ResolveErr   error
	Handle       providers.StreamHandle
	FailResolve  map[models.SourceKey]error
	ListCalls    int
	ResolveCalls []models.SourceKey

	// FailListUntil makes ListLibraryItems fail with ListErr for the
	// first N calls, then succeed. Exercises retry paths.
	FailListUntil int
}

func NewMockProvider(id string) *MockProvider {
	return &MockProvider{
		ProviderID:  id,
		DisplayName: id,
		Records:     make(map[models.Kind][]models.ProviderRecord),
		FailResolve: make(map[models.SourceKey]error),
	}
}

func (m *MockProvider) ID() string   { return m.ProviderID }
func (m *MockProvider) Name() string { return m.DisplayName }

// Add appends records, keyed by their kind.
func (m *MockProvider) Add(records ...models.ProviderRecord) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.Records[rec.Kind] = append(m.Records[rec.Kind], rec)
	}
	return m
}

// SetRecords replaces all records of a kind, simulating upstream changes
// between sync passes.
func (m *MockProvider) SetRecords(kind models.Kind, records []models.ProviderRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records[kind] = records
}

func (m *MockProvider) ListLibraryItems(ctx context.Context, kind models.Kind) (providers.Iterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListCalls++
	if m.ListErr != nil && (m.FailListUntil == 0 || m.ListCalls <= m.FailListUntil) {
		return nil, m.ListErr
	}

	records := make([]models.ProviderRecord, len(m.Records[kind]))
	copy(records, m.Records[kind])
	return providers.NewSliceIterator(records), nil
}

func (m *MockProvider) ResolveStream(ctx context.Context, rec models.ProviderRecord) (providers.StreamHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ResolveCalls = append(m.ResolveCalls, rec.SourceKey())
	if err, ok := m.FailResolve[rec.SourceKey()]; ok {
		return providers.StreamHandle{}, err
	}
	if m.ResolveErr != nil {
		return providers.StreamHandle{}, m.ResolveErr
	}
	if m.Handle.URL != "" {
		return m.Handle, nil
	}
	return providers.StreamHandle{URL: "mock://" + m.ProviderID + "/" + rec.NativeID}, nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// Track builds a track record with sane defaults for tests.
func Track(providerID, nativeID, artist, name string, seconds int) models.ProviderRecord {
	return models.ProviderRecord{
		ProviderID: providerID,
		NativeID:   nativeID,
		Kind:       models.KindTrack,
		Name:       name,
		Artist:     artist,
		Duration:   time.Duration(seconds) * time.Second,
		Available:  true,
		StreamRef:  "mock://" + providerID + "/" + nativeID,
	}
}
