package resolver

import (
	"time"

	"github.com/medleyfm/medley/internal/models"
)

// Config holds the resolver's threshold table.
type Config struct {
	// DurationTolerance is the maximum difference between two known durations
	// for records to be considered the same recording.
	DurationTolerance time.Duration
	// FuzzyThreshold is the minimum name similarity for a non-exact match.
	FuzzyThreshold float64
}

// DefaultConfig returns the documented defaults: ±3s duration tolerance and
// a 0.92 similarity threshold.
func DefaultConfig() Config {
	return Config{
		DurationTolerance: 3 * time.Second,
		FuzzyThreshold:    0.92,
	}
}

// durationsAgree applies the duration gate: when both sides carry a known
// duration they must fall within the tolerance window. A missing duration on
// either side passes the gate; name evidence alone decides.
func (c Config) durationsAgree(a, b time.Duration) bool {
	if a <= 0 || b <= 0 {
		return true
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= c.DurationTolerance
}

// Score computes the composite match score between a provider record and a
// candidate entity of the same kind. Returns 0 when the duration gate fails,
// 1.0 on an exact normalized-key match, otherwise the fuzzy name similarity.
func (c Config) Score(rec models.ProviderRecord, candidate *models.CanonicalEntity) float64 {
	if rec.Kind != candidate.Kind {
		return 0
	}
	if !c.durationsAgree(rec.Duration, candidate.Duration) {
		return 0
	}

	if RecordKey(rec) == EntityKey(candidate) {
		return 1.0
	}

	nameSim := Similarity(Normalize(rec.Name), Normalize(candidate.Name))
	artistSim := 1.0
	if rec.Artist != "" || candidate.Artist != "" {
		artistSim = Similarity(Normalize(rec.Artist), Normalize(candidate.Artist))
	}
	if artistSim < nameSim {
		return artistSim
	}
	return nameSim
}

// Match selects the best candidate entity for a record, or nil when no
// candidate clears the threshold and the record should seed a new entity.
//
// Tie-break between equal scores: prefer the entity with the most existing
// links (more corroborated identity), then the most recently updated one.
func (c Config) Match(rec models.ProviderRecord, candidates []*models.CanonicalEntity) (*models.CanonicalEntity, float64) {
	var best *models.CanonicalEntity
	bestScore := 0.0

	for _, candidate := range candidates {
		score := c.Score(rec, candidate)
		if score < c.FuzzyThreshold {
			continue
		}
		if best == nil || score > bestScore || (score == bestScore && preferred(candidate, best)) {
			best = candidate
			bestScore = score
		}
	}

	return best, bestScore
}

// preferred reports whether a should win a tie against b.
func preferred(a, b *models.CanonicalEntity) bool {
	if a.LinkCount() != b.LinkCount() {
		return a.LinkCount() > b.LinkCount()
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}
