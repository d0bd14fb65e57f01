// Package selector picks the playback source for a canonical entity.
//
// Candidate links are ranked by quality first and by the user's configured
// provider order only as a tie-break. Selection walks the ranking and asks
// each provider to resolve a live stream, falling through to the next
// candidate when one fails, so a single flaky provider never blocks playback.
package selector

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/providers"
	"github.com/medleyfm/medley/internal/shared"
)

// Selection is the outcome of a successful pick.
type Selection struct {
	Record models.ProviderRecord
	Handle providers.StreamHandle
}

// Selector ranks an entity's provider links and resolves a playable stream.
type Selector struct {
	registry      *providers.Registry
	providerOrder []string
	logger        *log.Logger
}

// New creates a selector. providerOrder lists provider ids from most to
// least preferred and breaks ties between equal-quality sources.
func New(registry *providers.Registry, providerOrder []string, logger *log.Logger) *Selector {
	return &Selector{registry: registry, providerOrder: providerOrder, logger: logger}
}

// bitrate bands group sources so a small kbps difference never outranks
// a meaningful quality step.
const (
	bandLow = iota
	bandMid
	bandHigh
)

func bitrateBand(kbps int) int {
	switch {
	case kbps >= 256:
		return bandHigh
	case kbps >= 128:
		return bandMid
	default:
		return bandLow
	}
}

func (s *Selector) providerRank(id string) int {
	for i, pid := range s.providerOrder {
		if pid == id {
			return i
		}
	}
	return len(s.providerOrder)
}

// Rank orders an entity's links from best to worst playback source.
// Unavailable links sort last regardless of quality.
func (s *Selector) Rank(entity *models.CanonicalEntity) []models.ProviderRecord {
	ranked := make([]models.ProviderRecord, len(entity.Links))
	copy(ranked, entity.Links)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Available != b.Available {
			return a.Available
		}
		if a.Quality.Lossless != b.Quality.Lossless {
			return a.Quality.Lossless
		}
		if ba, bb := bitrateBand(a.Quality.BitrateKbps), bitrateBand(b.Quality.BitrateKbps); ba != bb {
			return ba > bb
		}
		if a.Quality.BitrateKbps != b.Quality.BitrateKbps {
			return a.Quality.BitrateKbps > b.Quality.BitrateKbps
		}
		return s.providerRank(a.ProviderID) < s.providerRank(b.ProviderID)
	})
	return ranked
}

// Select resolves the best playable stream for the entity. Candidates that
// fail to resolve are skipped; when every candidate is exhausted the error
// is [shared.ErrNoPlayableSource].
func (s *Selector) Select(ctx context.Context, entity *models.CanonicalEntity) (Selection, error) {
	if entity == nil || len(entity.Links) == 0 {
		return Selection{}, fmt.Errorf("%w: entity has no provider links", shared.ErrNoPlayableSource)
	}

	var lastErr error
	for _, rec := range s.Rank(entity) {
		if !rec.Available {
			continue
		}

		provider, err := s.registry.Get(rec.ProviderID)
		if err != nil {
			lastErr = err
			continue
		}

		handle, err := provider.ResolveStream(ctx, rec)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return Selection{}, err
			}
			s.logger.Debug("source failed to resolve, trying next",
				"entity", entity.ID, "provider", rec.ProviderID, "error", err)
			lastErr = err
			continue
		}

		return Selection{Record: rec, Handle: handle}, nil
	}

	if lastErr != nil {
		return Selection{}, fmt.Errorf("%w: all sources exhausted: %v", shared.ErrNoPlayableSource, lastErr)
	}
	return Selection{}, fmt.Errorf("%w: no available sources", shared.ErrNoPlayableSource)
}
