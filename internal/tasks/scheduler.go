package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/providers"
	"github.com/medleyfm/medley/internal/shared"
)

// Scheduler owns sync pass lifecycles: one startup pass per provider, a
// periodic pass per interval, and manual passes on demand. At most one
// pass runs per provider; overlapping requests coalesce into the running
// pass instead of queueing.
type Scheduler struct {
	engine   *Engine
	registry *providers.Registry
	interval time.Duration
	logger   *log.Logger

	mu      sync.Mutex
	running map[string]bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler running periodic passes every interval.
func NewScheduler(engine *Engine, registry *providers.Registry, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = 3 * time.Hour
	}
	return &Scheduler{
		engine:   engine,
		registry: registry,
		interval: interval,
		logger:   logger,
		running:  make(map[string]bool),
	}
}

// Sync runs a pass for one provider, blocking until it finishes. A pass
// already running for the provider returns [shared.ErrSyncInProgress]
// without starting another.
func (s *Scheduler) Sync(ctx context.Context, providerID string, trigger models.SyncTrigger) (*PassResult, error) {
	s.mu.Lock()
	if s.running[providerID] {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: provider %s", shared.ErrSyncInProgress, providerID)
	}
	s.running[providerID] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, providerID)
		s.mu.Unlock()
	}()

	return s.engine.RunPass(ctx, providerID, trigger)
}

// SyncAll runs one pass per registered provider in parallel and waits for
// all of them. Coalesced providers are skipped silently.
func (s *Scheduler) SyncAll(ctx context.Context, trigger models.SyncTrigger) {
	var wg sync.WaitGroup
	for _, provider := range s.registry.All() {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := s.Sync(ctx, id, trigger); err != nil && !errors.Is(err, shared.ErrSyncInProgress) {
				s.logger.Error("sync pass failed", "provider", id, "trigger", trigger, "error", err)
			}
		}(provider.ID())
	}
	wg.Wait()
}

// Running reports the providers with a pass currently in flight.
func (s *Scheduler) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, active := range s.running {
		if active {
			ids = append(ids, id)
		}
	}
	return ids
}

// Start launches the startup pass and the periodic loop in the background.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.SyncAll(ctx, models.TriggerStartup)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SyncAll(ctx, models.TriggerPeriodic)
			}
		}
	}()
}

// Stop cancels the periodic loop and waits for in-flight passes to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
