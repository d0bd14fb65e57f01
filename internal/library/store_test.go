package library

import (
	"errors"
	"testing"
	"time"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/shared"
)

func record(provider, id string, kind models.Kind, name string) models.ProviderRecord {
	return models.ProviderRecord{
		ProviderID: provider,
		NativeID:   id,
		Kind:       kind,
		Name:       name,
		Artist:     "Daft Punk",
		Duration:   320 * time.Second,
		Available:  true,
	}
}

func TestSeedAndLookup(t *testing.T) {
	s := NewStore()

	rec := record("disk", "t1", models.KindTrack, "One More Time")
	e, err := s.SeedEntity(rec)
	if err != nil {
		t.Fatalf("SeedEntity failed: %v", err)
	}
	if e.LinkCount() != 1 {
		t.Fatalf("expected 1 link, got %d", e.LinkCount())
	}

	got, ok := s.LookupByProviderRecord("disk", "t1", models.KindTrack)
	if !ok {
		t.Fatal("LookupByProviderRecord missed seeded record")
	}
	if got.ID != e.ID {
		t.Errorf("lookup returned entity %s, want %s", got.ID, e.ID)
	}

	if _, ok := s.LookupByProviderRecord("disk", "t1", models.KindAlbum); ok {
		t.Error("lookup must be kind-scoped")
	}
}

func TestNoDoubleLinking(t *testing.T) {
	s := NewStore()

	rec := record("disk", "t1", models.KindTrack, "One More Time")
	first, err := s.SeedEntity(rec)
	if err != nil {
		t.Fatalf("SeedEntity failed: %v", err)
	}

	other, err := s.SeedEntity(record("streamsvc", "s9", models.KindTrack, "Aerodynamic"))
	if err != nil {
		t.Fatalf("SeedEntity failed: %v", err)
	}

	// same (provider, native id) onto a second entity of the same kind
	err = s.LinkRecord(other.ID, rec)
	if !errors.Is(err, shared.ErrMergeConflict) {
		t.Fatalf("expected ErrMergeConflict, got %v", err)
	}

	// re-linking to the owning entity refreshes, not duplicates
	rec.Available = false
	if err := s.LinkRecord(first.ID, rec); err != nil {
		t.Fatalf("refresh link failed: %v", err)
	}
	got, _ := s.GetEntity(first.ID)
	if got.LinkCount() != 1 {
		t.Errorf("expected 1 link after refresh, got %d", got.LinkCount())
	}
	if refreshed, _ := got.LinkFor(rec.SourceKey()); refreshed.Available {
		t.Error("refresh did not replace the stored record")
	}
}

func TestUpsertConflictLeavesStoreIntact(t *testing.T) {
	s := NewStore()

	rec := record("disk", "t1", models.KindTrack, "One More Time")
	owner, err := s.SeedEntity(rec)
	if err != nil {
		t.Fatalf("SeedEntity failed: %v", err)
	}

	// a second entity claiming the same link must be rejected wholesale
	intruder := models.CanonicalEntity{
		ID:        "intruder",
		Kind:      models.KindTrack,
		Name:      "One More Time",
		Artist:    "Daft Punk",
		UpdatedAt: time.Now(),
		Links:     []models.ProviderRecord{rec},
	}
	if err := s.Upsert(intruder); !errors.Is(err, shared.ErrMergeConflict) {
		t.Fatalf("expected ErrMergeConflict, got %v", err)
	}

	// the rejected upsert must not have disturbed the owner's indexes
	got, ok := s.LookupByProviderRecord("disk", "t1", models.KindTrack)
	if !ok || got.ID != owner.ID {
		t.Errorf("source index disturbed: ok=%v id=%s want %s", ok, got.ID, owner.ID)
	}
	if cands := s.CandidatesForRecord(rec); len(cands) != 1 || cands[0].ID != owner.ID {
		t.Errorf("candidate index disturbed: %+v", cands)
	}
	if _, err := s.GetEntity("intruder"); !errors.Is(err, shared.ErrEntityNotFound) {
		t.Errorf("rejected entity must not be stored, got %v", err)
	}
}

func TestUpsertConflictPreservesOldVersion(t *testing.T) {
	s := NewStore()

	taken := record("disk", "t1", models.KindTrack, "One More Time")
	if _, err := s.SeedEntity(taken); err != nil {
		t.Fatalf("SeedEntity failed: %v", err)
	}

	own := record("streamsvc", "s1", models.KindTrack, "Aerodynamic")
	existing, err := s.SeedEntity(own)
	if err != nil {
		t.Fatalf("SeedEntity failed: %v", err)
	}

	// replacing an existing entity with a conflicting link set fails and
	// must leave the old version fully indexed
	update := existing
	update.Links = append(update.Links, taken)
	if err := s.Upsert(update); !errors.Is(err, shared.ErrMergeConflict) {
		t.Fatalf("expected ErrMergeConflict, got %v", err)
	}

	got, ok := s.LookupByProviderRecord("streamsvc", "s1", models.KindTrack)
	if !ok || got.ID != existing.ID {
		t.Errorf("old version lost its source index: ok=%v", ok)
	}
	if cands := s.CandidatesForRecord(own); len(cands) != 1 {
		t.Errorf("old version lost its candidate indexes: %+v", cands)
	}
}

func TestLinkKindMismatch(t *testing.T) {
	s := NewStore()

	e, err := s.SeedEntity(record("disk", "t1", models.KindTrack, "One More Time"))
	if err != nil {
		t.Fatalf("SeedEntity failed: %v", err)
	}

	err = s.LinkRecord(e.ID, record("disk", "a1", models.KindAlbum, "Discovery"))
	if !errors.Is(err, shared.ErrMergeConflict) {
		t.Fatalf("expected ErrMergeConflict on kind mismatch, got %v", err)
	}
}

func TestUnlinkGarbageCollects(t *testing.T) {
	s := NewStore()

	e, _ := s.SeedEntity(record("disk", "t1", models.KindTrack, "One More Time"))
	if err := s.LinkRecord(e.ID, record("streamsvc", "s1", models.KindTrack, "One More Time")); err != nil {
		t.Fatalf("LinkRecord failed: %v", err)
	}

	removed, err := s.UnlinkRecord("disk", "t1", models.KindTrack)
	if err != nil || removed {
		t.Fatalf("expected entity to survive first unlink, removed=%v err=%v", removed, err)
	}

	removed, err = s.UnlinkRecord("streamsvc", "s1", models.KindTrack)
	if err != nil || !removed {
		t.Fatalf("expected entity GC on last unlink, removed=%v err=%v", removed, err)
	}

	if _, err := s.GetEntity(e.ID); !errors.Is(err, shared.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound after GC, got %v", err)
	}
}

func TestPruneStale(t *testing.T) {
	s := NewStore()

	keep := record("disk", "t1", models.KindTrack, "One More Time")
	stale := record("disk", "t2", models.KindTrack, "Aerodynamic")
	otherProvider := record("streamsvc", "s1", models.KindTrack, "Digital Love")

	s.SeedEntity(keep)
	s.SeedEntity(stale)
	s.SeedEntity(otherProvider)

	seen := map[models.LinkKey]struct{}{keep.LinkKey(): {}}
	pruned, removed := s.PruneStale("disk", seen)
	if pruned != 1 || removed != 1 {
		t.Fatalf("PruneStale = (%d, %d), want (1, 1)", pruned, removed)
	}

	// other providers untouched
	if _, ok := s.LookupByProviderRecord("streamsvc", "s1", models.KindTrack); !ok {
		t.Error("prune crossed provider boundary")
	}
	if _, ok := s.LookupByProviderRecord("disk", "t1", models.KindTrack); !ok {
		t.Error("prune removed a seen record")
	}
}

func TestPruneStaleIsKindScoped(t *testing.T) {
	s := NewStore()

	// same provider and native id, different kinds
	track := record("disk", "x1", models.KindTrack, "Discovery")
	album := record("disk", "x1", models.KindAlbum, "Discovery")
	s.SeedEntity(track)
	s.SeedEntity(album)

	// only the track was listed this pass
	seen := map[models.LinkKey]struct{}{track.LinkKey(): {}}
	pruned, removed := s.PruneStale("disk", seen)
	if pruned != 1 || removed != 1 {
		t.Fatalf("PruneStale = (%d, %d), want (1, 1)", pruned, removed)
	}

	if _, ok := s.LookupByProviderRecord("disk", "x1", models.KindAlbum); ok {
		t.Error("stale album link survived pruning")
	}
	if _, ok := s.LookupByProviderRecord("disk", "x1", models.KindTrack); !ok {
		t.Error("seen track link was pruned")
	}
}

func TestCandidatesForRecord(t *testing.T) {
	s := NewStore()

	s.SeedEntity(record("disk", "t1", models.KindTrack, "One More Time"))
	s.SeedEntity(record("disk", "t2", models.KindTrack, "Aerodynamic"))
	s.SeedEntity(record("disk", "a1", models.KindAlbum, "Discovery"))

	// exact key hit
	probe := record("streamsvc", "s1", models.KindTrack, "One More Time (Remastered)")
	candidates := s.CandidatesForRecord(probe)
	if len(candidates) != 2 { // exact key hit + same-artist track
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	for _, c := range candidates {
		if c.Kind != models.KindTrack {
			t.Errorf("candidate %s has kind %s, want track", c.ID, c.Kind)
		}
	}
}

func TestAllEntitiesOfKindFavorites(t *testing.T) {
	s := NewStore()

	e1, _ := s.SeedEntity(record("disk", "t1", models.KindTrack, "One More Time"))
	s.SeedEntity(record("disk", "t2", models.KindTrack, "Aerodynamic"))

	if err := s.MarkFavorite(e1.ID, true); err != nil {
		t.Fatalf("MarkFavorite failed: %v", err)
	}

	all := s.AllEntitiesOfKind(models.KindTrack, false)
	if len(all) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(all))
	}
	favs := s.AllEntitiesOfKind(models.KindTrack, true)
	if len(favs) != 1 || favs[0].ID != e1.ID {
		t.Fatalf("favorites filter wrong: %+v", favs)
	}
}

func TestReadersSeeConsistentCopies(t *testing.T) {
	s := NewStore()

	e, _ := s.SeedEntity(record("disk", "t1", models.KindTrack, "One More Time"))

	snapshot, _ := s.GetEntity(e.ID)
	snapshot.Links[0].Available = false
	snapshot.Name = "mutated"

	again, _ := s.GetEntity(e.ID)
	if again.Name != "One More Time" || !again.Links[0].Available {
		t.Error("reader mutation leaked into the store")
	}
}
