package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/medleyfm/medley/internal/events"
	"github.com/medleyfm/medley/internal/library"
	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/providers"
	"github.com/medleyfm/medley/internal/repositories"
	"github.com/medleyfm/medley/internal/resolver"
	"github.com/medleyfm/medley/internal/shared"
)

// PassResult summarizes one completed sync pass.
type PassResult struct {
	Job     *models.SyncJob
	Seeded  int // entities created for unmatched records
	Linked  int // records attached to existing entities
	Pruned  int // links removed because the provider stopped reporting them
	Removed int // entities garbage collected after losing their last link
	Skipped int // records dropped as invalid
}

// EngineConfig tunes pass behavior. Zero values fall back to the defaults
// the config file documents.
type EngineConfig struct {
	CallTimeout   time.Duration // budget for listing one kind from a provider
	RetryAttempts int           // attempts per kind for transient failures
	BackoffBase   time.Duration // first retry delay, doubled per attempt
	Resolver      resolver.Config
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	defaults := resolver.DefaultConfig()
	if c.Resolver.FuzzyThreshold == 0 {
		c.Resolver.FuzzyThreshold = defaults.FuzzyThreshold
	}
	if c.Resolver.DurationTolerance == 0 {
		c.Resolver.DurationTolerance = defaults.DurationTolerance
	}
	return c
}

// Engine runs sync passes against the canonical store.
type Engine struct {
	store    *library.Store
	registry *providers.Registry
	config   EngineConfig
	libRepo  *repositories.LibraryRepository // nil disables persistence
	jobRepo  *repositories.SyncJobRepository // nil disables job history
	bus      *events.Bus                     // nil disables notifications
	logger   *log.Logger
}

// NewEngine creates an engine. libRepo, jobRepo and bus may be nil.
func NewEngine(store *library.Store, registry *providers.Registry, config EngineConfig,
	libRepo *repositories.LibraryRepository, jobRepo *repositories.SyncJobRepository,
	bus *events.Bus, logger *log.Logger) *Engine {
	return &Engine{
		store:    store,
		registry: registry,
		config:   config.withDefaults(),
		libRepo:  libRepo,
		jobRepo:  jobRepo,
		bus:      bus,
		logger:   logger,
	}
}

// RunPass syncs one provider's library into the canonical store.
//
// Each kind is listed and resolved independently; a kind that keeps failing
// after retries marks the pass partial but does not abort the others.
// Pruning only runs when every kind listed successfully, since absence can
// only be established from a complete listing.
func (e *Engine) RunPass(ctx context.Context, providerID string, trigger models.SyncTrigger) (*PassResult, error) {
	provider, err := e.registry.Get(providerID)
	if err != nil {
		return nil, err
	}

	job := &models.SyncJob{
		ProviderID: providerID,
		Trigger:    trigger,
		State:      models.SyncRunning,
		StartedAt:  time.Now().UTC(),
	}
	if e.jobRepo != nil {
		if err := e.jobRepo.Create(job); err != nil {
			return nil, fmt.Errorf("failed to record sync job: %w", err)
		}
	}

	e.publish(events.Event{Type: events.SyncStarted, ProviderID: providerID,
		Message: fmt.Sprintf("sync started (%s)", trigger)})
	e.logger.Info("sync pass started", "provider", providerID, "trigger", trigger)

	result := &PassResult{Job: job}
	kinds := models.Kinds
	var kindErrs []string

	seen := make(map[models.LinkKey]struct{})
	for i, kind := range kinds {
		if err := ctx.Err(); err != nil {
			kindErrs = append(kindErrs, fmt.Sprintf("%s: %v", kind, err))
			break
		}

		if err := e.syncKindWithRetry(ctx, provider, kind, seen, result); err != nil {
			e.logger.Error("kind sync failed", "provider", providerID, "kind", kind, "error", err)
			kindErrs = append(kindErrs, fmt.Sprintf("%s: %v", kind, err))
			continue
		}
		e.publish(events.Progress(providerID, i+1, len(kinds), fmt.Sprintf("synced %ss", kind)))
	}

	// A complete listing is the only evidence a source disappeared.
	if len(kindErrs) == 0 {
		pruned, removed := e.store.PruneStale(providerID, seen)
		result.Pruned = pruned
		result.Removed = removed
		if pruned > 0 {
			e.publish(events.Event{Type: events.EntityPruned, ProviderID: providerID,
				Message: fmt.Sprintf("pruned %d stale links (%d entities removed)", pruned, removed)})
		}
	}

	if err := e.persist(); err != nil {
		kindErrs = append(kindErrs, fmt.Sprintf("persist: %v", err))
	}

	job.EndedAt = time.Now().UTC()
	job.Records = result.Seeded + result.Linked
	switch {
	case len(kindErrs) == 0:
		job.State = models.SyncSucceeded
	case len(kindErrs) < len(kinds):
		job.State = models.SyncPartial
		job.Error = strings.Join(kindErrs, "; ")
	default:
		job.State = models.SyncFailed
		job.Error = strings.Join(kindErrs, "; ")
	}

	if e.jobRepo != nil {
		if err := e.jobRepo.Finish(job); err != nil {
			e.logger.Error("failed to finalize sync job", "job", job.ID, "error", err)
		}
	}

	if job.State == models.SyncFailed {
		e.publish(events.Event{Type: events.SyncFailed, ProviderID: providerID, Message: job.Error})
		return result, fmt.Errorf("sync failed for %s: %s", providerID, job.Error)
	}

	e.publish(events.Event{Type: events.SyncCompleted, ProviderID: providerID,
		Message: fmt.Sprintf("synced %d records", job.Records), Data: result})
	e.logger.Info("sync pass finished", "provider", providerID, "state", job.State,
		"records", job.Records, "pruned", result.Pruned)
	return result, nil
}

// syncKindWithRetry retries transient listing failures with exponential
// backoff. Resolution against the store is idempotent, so a retried kind
// simply replays its records.
func (e *Engine) syncKindWithRetry(ctx context.Context, provider providers.Provider,
	kind models.Kind, seen map[models.LinkKey]struct{}, result *PassResult) error {
	var lastErr error
	for attempt := 0; attempt < e.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := e.config.BackoffBase << (attempt - 1)
			e.logger.Warn("retrying after transient failure", "provider", provider.ID(),
				"kind", kind, "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := e.syncKind(ctx, provider, kind, seen, result)
		if err == nil {
			return nil
		}
		lastErr = err
		if !transient(err) {
			return err
		}
	}
	return lastErr
}

func (e *Engine) syncKind(ctx context.Context, provider providers.Provider,
	kind models.Kind, seen map[models.LinkKey]struct{}, result *PassResult) error {
	listCtx, cancel := context.WithTimeout(ctx, e.config.CallTimeout)
	defer cancel()

	it, err := provider.ListLibraryItems(listCtx, kind)
	if err != nil {
		return err
	}

	for {
		rec, ok, err := it.Next(listCtx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		if err := rec.Validate(); err != nil {
			e.logger.Warn("skipping invalid record", "provider", provider.ID(), "error", err)
			result.Skipped++
			continue
		}
		seen[rec.LinkKey()] = struct{}{}
		e.resolveRecord(rec, result)
	}
}

// resolveRecord attaches one provider record to the canonical library:
// refresh its existing link, link it to the best matching entity, or seed
// a new entity when nothing matches.
func (e *Engine) resolveRecord(rec models.ProviderRecord, result *PassResult) {
	if existing, ok := e.store.LookupByProviderRecord(rec.ProviderID, rec.NativeID, rec.Kind); ok {
		if err := e.store.LinkRecord(existing.ID, rec); err != nil {
			e.logger.Error("failed to refresh link", "source", rec.SourceKey(), "error", err)
			result.Skipped++
			return
		}
		result.Linked++
		return
	}

	if match, score := e.config.Resolver.Match(rec, e.store.CandidatesForRecord(rec)); match != nil {
		if err := e.store.LinkRecord(match.ID, rec); err != nil {
			if errors.Is(err, shared.ErrMergeConflict) {
				// Another record from this provider already owns the match;
				// keep this one as its own entity rather than stealing.
				e.seed(rec, result)
				return
			}
			e.logger.Error("failed to link record", "source", rec.SourceKey(), "error", err)
			result.Skipped++
			return
		}
		result.Linked++
		e.publish(events.Event{Type: events.EntityLinked, ProviderID: rec.ProviderID,
			Message: fmt.Sprintf("linked %s - %s (score %.2f)", rec.Artist, rec.Name, score)})
		return
	}

	e.seed(rec, result)
}

func (e *Engine) seed(rec models.ProviderRecord, result *PassResult) {
	entity, err := e.store.SeedEntity(rec)
	if err != nil {
		e.logger.Error("failed to seed entity", "source", rec.SourceKey(), "error", err)
		result.Skipped++
		return
	}
	result.Seeded++
	e.publish(events.Event{Type: events.EntitySeeded, ProviderID: rec.ProviderID,
		Message: fmt.Sprintf("added %s - %s", entity.Artist, entity.Name)})
}

func (e *Engine) persist() error {
	if e.libRepo == nil {
		return nil
	}
	entities := e.store.AllEntities()
	ptrs := make([]*models.CanonicalEntity, len(entities))
	for i := range entities {
		ptrs[i] = &entities[i]
	}
	return e.libRepo.SaveAll(ptrs)
}

func (e *Engine) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

// transient reports whether a failure is worth retrying within a pass.
func transient(err error) bool {
	return errors.Is(err, shared.ErrTimeout) ||
		errors.Is(err, shared.ErrRateLimited) ||
		errors.Is(err, context.DeadlineExceeded)
}
