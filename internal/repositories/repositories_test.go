package repositories

import (
	"database/sql"
	"testing"
	"time"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/shared"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// In-memory SQLite gives each connection its own database.
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func sampleEntity() *models.CanonicalEntity {
	return &models.CanonicalEntity{
		ID:        "e1",
		Kind:      models.KindTrack,
		Name:      "One More Time",
		Artist:    "Daft Punk",
		Album:     "Discovery",
		Duration:  320 * time.Second,
		Favorite:  true,
		UpdatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Links: []models.ProviderRecord{
			{
				ProviderID: "filesystem",
				NativeID:   "abc123",
				Kind:       models.KindTrack,
				Name:       "One More Time",
				Artist:     "Daft Punk",
				Album:      "Discovery",
				Duration:   320 * time.Second,
				Quality:    models.Quality{Format: models.FormatFLAC, Lossless: true},
				Available:  true,
				StreamRef:  "/music/daft punk/one more time.flac",
			},
			{
				ProviderID: "spotify",
				NativeID:   "sp1",
				Kind:       models.KindTrack,
				Name:       "One More Time",
				Artist:     "Daft Punk",
				Album:      "Discovery",
				Duration:   320 * time.Second,
				Quality:    models.Quality{Format: models.FormatAAC, BitrateKbps: 256},
				Available:  true,
				StreamRef:  "spotify:track:sp1",
			},
		},
	}
}

func TestLibraryRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewLibraryRepository(db)

	want := sampleEntity()
	if err := repo.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := repo.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(loaded))
	}

	got := loaded[0]
	if got.ID != want.ID || got.Kind != want.Kind || got.Name != want.Name || got.Artist != want.Artist {
		t.Errorf("entity mismatch: got %+v", got)
	}
	if got.Duration != want.Duration {
		t.Errorf("expected duration %s, got %s", want.Duration, got.Duration)
	}
	if !got.Favorite {
		t.Error("expected favorite flag to survive the round trip")
	}
	if len(got.Links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(got.Links))
	}

	// Link order is the insert order.
	first := got.Links[0]
	if first.ProviderID != "filesystem" || first.Quality.Format != models.FormatFLAC || !first.Quality.Lossless {
		t.Errorf("unexpected first link: %+v", first)
	}
	second := got.Links[1]
	if second.ProviderID != "spotify" || second.Quality.BitrateKbps != 256 {
		t.Errorf("unexpected second link: %+v", second)
	}
}

func TestSaveIsUpsert(t *testing.T) {
	db := testDB(t)
	repo := NewLibraryRepository(db)

	entity := sampleEntity()
	if err := repo.Save(entity); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	entity.Favorite = false
	entity.Links = entity.Links[:1]
	if err := repo.Save(entity); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := repo.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 entity after upsert, got %d", len(loaded))
	}
	if loaded[0].Favorite {
		t.Error("expected favorite flag cleared")
	}
	if len(loaded[0].Links) != 1 {
		t.Errorf("expected link rows replaced, got %d", len(loaded[0].Links))
	}
}

func TestDeleteCascadesLinks(t *testing.T) {
	db := testDB(t)
	repo := NewLibraryRepository(db)

	if err := repo.Save(sampleEntity()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := repo.Delete("e1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM links`).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected links to cascade on entity delete, %d remained", count)
	}
}

func TestSaveAllReplacesSnapshot(t *testing.T) {
	db := testDB(t)
	repo := NewLibraryRepository(db)

	if err := repo.Save(sampleEntity()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	replacement := &models.CanonicalEntity{
		ID:        "e2",
		Kind:      models.KindArtist,
		Name:      "Daft Punk",
		Artist:    "Daft Punk",
		UpdatedAt: time.Now().UTC(),
		Links: []models.ProviderRecord{{
			ProviderID: "spotify",
			NativeID:   "a1",
			Kind:       models.KindArtist,
			Name:       "Daft Punk",
			Artist:     "Daft Punk",
			Available:  true,
		}},
	}
	if err := repo.SaveAll([]*models.CanonicalEntity{replacement}); err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	loaded, err := repo.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "e2" {
		t.Fatalf("expected snapshot to replace prior contents, got %+v", loaded)
	}
}

func TestSyncJobLifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewSyncJobRepository(db)

	job := &models.SyncJob{
		ProviderID: "spotify",
		Trigger:    models.TriggerManual,
		State:      models.SyncRunning,
		StartedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.Create(job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected Create to assign an id")
	}

	job.State = models.SyncSucceeded
	job.EndedAt = job.StartedAt.Add(30 * time.Second)
	job.Records = 42
	if err := repo.Finish(job); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	history, err := repo.History("spotify", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 job, got %d", len(history))
	}
	got := history[0]
	if got.State != models.SyncSucceeded || got.Records != 42 || got.Trigger != models.TriggerManual {
		t.Errorf("unexpected job: %+v", got)
	}
	if got.EndedAt.IsZero() {
		t.Error("expected ended_at to be set")
	}
	if got.Error != "" {
		t.Errorf("expected empty error for a succeeded job, got %q", got.Error)
	}
}

func TestSyncJobErrorRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewSyncJobRepository(db)

	job := &models.SyncJob{
		ProviderID: "spotify",
		Trigger:    models.TriggerPeriodic,
		State:      models.SyncRunning,
		StartedAt:  time.Now().UTC(),
	}
	if err := repo.Create(job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	job.State = models.SyncFailed
	job.EndedAt = time.Now().UTC()
	job.Error = "track: provider unavailable"
	if err := repo.Finish(job); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	history, err := repo.History("spotify", 1)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 job, got %d", len(history))
	}
	if history[0].Error != "track: provider unavailable" {
		t.Errorf("unexpected error column: %q", history[0].Error)
	}
}

func TestFinishRequiresTerminalState(t *testing.T) {
	db := testDB(t)
	repo := NewSyncJobRepository(db)

	job := &models.SyncJob{ProviderID: "radio", Trigger: models.TriggerStartup, State: models.SyncRunning, StartedAt: time.Now()}
	if err := repo.Create(job); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Finish(job); err == nil {
		t.Error("expected Finish to reject a running job")
	}
}

func TestHistoryOrderAndFilter(t *testing.T) {
	db := testDB(t)
	repo := NewSyncJobRepository(db)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, provider := range []string{"spotify", "radio", "spotify"} {
		job := &models.SyncJob{
			ProviderID: provider,
			Trigger:    models.TriggerPeriodic,
			State:      models.SyncRunning,
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
		}
		if err := repo.Create(job); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	spotifyJobs, err := repo.History("spotify", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(spotifyJobs) != 2 {
		t.Fatalf("expected 2 spotify jobs, got %d", len(spotifyJobs))
	}
	if !spotifyJobs[0].StartedAt.After(spotifyJobs[1].StartedAt) {
		t.Error("expected newest-first ordering")
	}

	all, err := repo.History("", 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected limit to apply, got %d", len(all))
	}

	latest, err := repo.LatestByProvider()
	if err != nil {
		t.Fatalf("LatestByProvider failed: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(latest))
	}
	if !latest["spotify"].StartedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("expected latest spotify job, got %+v", latest["spotify"])
	}
}
