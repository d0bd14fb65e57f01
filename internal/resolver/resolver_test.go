package resolver

import (
	"testing"
	"time"

	"github.com/medleyfm/medley/internal/models"
)

func TestNormalize(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercase and whitespace",
			input: "  One   More  Time ",
			want:  "one more time",
		},
		{
			name:  "bracketed suffix stripped",
			input: "One More Time (Remastered)",
			want:  "one more time",
		},
		{
			name:  "square brackets stripped",
			input: "Harder Better [Live at Coachella]",
			want:  "harder better",
		},
		{
			name:  "nested brackets",
			input: "Song (feat. Someone [uncredited])",
			want:  "song",
		},
		{
			name:  "diacritics stripped",
			input: "Beyoncé & Motörhead",
			want:  "beyonce & motorhead",
		},
		{
			name:  "unbalanced close bracket ignored",
			input: "weird) title",
			want:  "weird title",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestKey(t *testing.T) {
	a := Key("Daft Punk", "One More Time (Remastered)", models.KindTrack)
	b := Key("daft punk", "One More Time", models.KindTrack)
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}

	c := Key("Daft Punk", "One More Time", models.KindAlbum)
	if a == c {
		t.Error("kind must participate in the key")
	}
}

func TestSimilarity(t *testing.T) {
	tc := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{name: "identical", a: "one more time", b: "one more time", min: 1.0, max: 1.0},
		{name: "single typo", a: "one more time", b: "one more time!", min: 0.9, max: 0.99},
		{name: "disjoint", a: "around the world", b: "digital love", min: 0.0, max: 0.5},
		{name: "both empty", a: "", b: "", min: 1.0, max: 1.0},
		{name: "one empty", a: "abc", b: "", min: 0.0, max: 0.0},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("Similarity(%q, %q) = %v, want within [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func trackRecord(provider, id, artist, name string, dur time.Duration) models.ProviderRecord {
	return models.ProviderRecord{
		ProviderID: provider,
		NativeID:   id,
		Kind:       models.KindTrack,
		Name:       name,
		Artist:     artist,
		Duration:   dur,
		Available:  true,
	}
}

func trackEntity(id, artist, name string, dur time.Duration, links int) *models.CanonicalEntity {
	e := &models.CanonicalEntity{
		ID:        id,
		Kind:      models.KindTrack,
		Name:      name,
		Artist:    artist,
		Duration:  dur,
		UpdatedAt: time.Now(),
	}
	for i := 0; i < links; i++ {
		e.Links = append(e.Links, models.ProviderRecord{
			ProviderID: "p",
			NativeID:   string(rune('a' + i)),
			Kind:       models.KindTrack,
			Name:       name,
		})
	}
	return e
}

func TestScoreDurationGate(t *testing.T) {
	cfg := DefaultConfig()

	// identically named, 3:00 vs 3:10, never the same recording
	rec := trackRecord("disk", "1", "Daft Punk", "One More Time", 180*time.Second)
	candidate := trackEntity("e1", "Daft Punk", "One More Time", 190*time.Second, 1)

	if score := cfg.Score(rec, candidate); score != 0 {
		t.Errorf("expected duration gate to reject, got score %v", score)
	}

	// within tolerance merges
	candidate.Duration = 182 * time.Second
	if score := cfg.Score(rec, candidate); score != 1.0 {
		t.Errorf("expected exact match within tolerance, got score %v", score)
	}

	// unknown duration on one side passes the gate
	candidate.Duration = 0
	if score := cfg.Score(rec, candidate); score != 1.0 {
		t.Errorf("expected unknown duration to pass gate, got score %v", score)
	}
}

func TestScoreRemasterVariant(t *testing.T) {
	cfg := DefaultConfig()

	// the cross-provider example: disk FLAC vs streaming remaster
	rec := trackRecord("streamsvc", "77", "daft punk", "One More Time (Remastered)", 321*time.Second)
	candidate := trackEntity("e1", "Daft Punk", "One More Time", 320*time.Second, 1)

	if score := cfg.Score(rec, candidate); score != 1.0 {
		t.Errorf("expected remaster suffix to normalize into exact match, got %v", score)
	}
}

func TestMatchThreshold(t *testing.T) {
	cfg := DefaultConfig()

	rec := trackRecord("p2", "9", "Daft Punk", "One More Time", 320*time.Second)

	t.Run("weak evidence seeds new entity", func(t *testing.T) {
		candidates := []*models.CanonicalEntity{
			trackEntity("e1", "Daft Punk", "Aerodynamic", 320*time.Second, 1),
		}
		if best, _ := cfg.Match(rec, candidates); best != nil {
			t.Errorf("expected no match, got %s", best.ID)
		}
	})

	t.Run("near-identical title accepted", func(t *testing.T) {
		candidates := []*models.CanonicalEntity{
			trackEntity("e1", "Daft Punk", "One More Time!", 320*time.Second, 1),
		}
		best, score := cfg.Match(rec, candidates)
		if best == nil {
			t.Fatal("expected fuzzy match above threshold")
		}
		if score < cfg.FuzzyThreshold {
			t.Errorf("score %v below threshold %v", score, cfg.FuzzyThreshold)
		}
	})
}

func TestMatchTieBreak(t *testing.T) {
	cfg := DefaultConfig()
	rec := trackRecord("p2", "9", "Daft Punk", "One More Time", 320*time.Second)

	sparse := trackEntity("sparse", "Daft Punk", "One More Time", 320*time.Second, 1)
	corroborated := trackEntity("corroborated", "Daft Punk", "One More Time", 320*time.Second, 3)

	best, _ := cfg.Match(rec, []*models.CanonicalEntity{sparse, corroborated})
	if best == nil || best.ID != "corroborated" {
		t.Fatalf("expected most-linked entity to win tie, got %+v", best)
	}

	// equal link counts: most recently updated wins
	older := trackEntity("older", "Daft Punk", "One More Time", 320*time.Second, 2)
	older.UpdatedAt = time.Now().Add(-time.Hour)
	newer := trackEntity("newer", "Daft Punk", "One More Time", 320*time.Second, 2)

	best, _ = cfg.Match(rec, []*models.CanonicalEntity{older, newer})
	if best == nil || best.ID != "newer" {
		t.Fatalf("expected most recently updated entity to win tie, got %+v", best)
	}
}
