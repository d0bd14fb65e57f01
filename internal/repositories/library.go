package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/medleyfm/medley/internal/models"
)

// LibraryRepository persists canonical entities and their provider links.
type LibraryRepository struct {
	db *sql.DB
}

// NewLibraryRepository creates a new LibraryRepository with the given database connection
func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// Save upserts a single entity and replaces its link rows.
func (r *LibraryRepository) Save(entity *models.CanonicalEntity) error {
	if err := entity.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveEntityTx(tx, entity); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit entity: %w", err)
	}
	return nil
}

// SaveAll replaces the whole persisted library with the given snapshot.
func (r *LibraryRepository) SaveAll(entities []*models.CanonicalEntity) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM links`); err != nil {
		return fmt.Errorf("failed to clear links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM entities`); err != nil {
		return fmt.Errorf("failed to clear entities: %w", err)
	}

	for _, entity := range entities {
		if err := entity.Validate(); err != nil {
			return fmt.Errorf("validation failed for %s: %w", entity.ID, err)
		}
		if err := saveEntityTx(tx, entity); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// Delete removes an entity; its link rows cascade.
func (r *LibraryRepository) Delete(id string) error {
	if _, err := r.db.Exec(`DELETE FROM entities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	return nil
}

// LoadAll reads every persisted entity with its links.
func (r *LibraryRepository) LoadAll() ([]*models.CanonicalEntity, error) {
	query := `
		SELECT id, kind, name, artist, album, duration_ms, favorite, updated_at
		FROM entities
		ORDER BY id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []*models.CanonicalEntity
	byID := make(map[string]*models.CanonicalEntity)
	for rows.Next() {
		var e models.CanonicalEntity
		var kind string
		var durationMS int64
		if err := rows.Scan(&e.ID, &kind, &e.Name, &e.Artist, &e.Album, &durationMS, &e.Favorite, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		e.Kind = models.Kind(kind)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entities = append(entities, &e)
		byID[e.ID] = &e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}

	if err := r.loadLinks(byID); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *LibraryRepository) loadLinks(byID map[string]*models.CanonicalEntity) error {
	query := `
		SELECT entity_id, provider_id, native_id, kind, name, artist, album,
		       duration_ms, format, bitrate_kbps, lossless, available, stream_ref
		FROM links
		ORDER BY entity_id, position
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entityID, kind, format string
		var rec models.ProviderRecord
		var durationMS int64
		if err := rows.Scan(&entityID, &rec.ProviderID, &rec.NativeID, &kind,
			&rec.Name, &rec.Artist, &rec.Album, &durationMS,
			&format, &rec.Quality.BitrateKbps, &rec.Quality.Lossless,
			&rec.Available, &rec.StreamRef); err != nil {
			return fmt.Errorf("failed to scan link: %w", err)
		}
		rec.Kind = models.Kind(kind)
		rec.Quality.Format = models.Format(format)
		rec.Duration = time.Duration(durationMS) * time.Millisecond

		if entity, ok := byID[entityID]; ok {
			entity.Links = append(entity.Links, rec)
		}
	}
	return rows.Err()
}

func saveEntityTx(tx *sql.Tx, entity *models.CanonicalEntity) error {
	_, err := tx.Exec(`
		INSERT INTO entities (id, kind, name, artist, album, duration_ms, favorite, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			artist = excluded.artist,
			album = excluded.album,
			duration_ms = excluded.duration_ms,
			favorite = excluded.favorite,
			updated_at = excluded.updated_at
	`,
		entity.ID,
		string(entity.Kind),
		entity.Name,
		entity.Artist,
		entity.Album,
		entity.Duration.Milliseconds(),
		entity.Favorite,
		entity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entity: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE entity_id = ?`, entity.ID); err != nil {
		return fmt.Errorf("failed to clear entity links: %w", err)
	}

	for i, rec := range entity.Links {
		_, err := tx.Exec(`
			INSERT INTO links (provider_id, native_id, kind, entity_id, position,
				name, artist, album, duration_ms, format, bitrate_kbps, lossless, available, stream_ref)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.ProviderID,
			rec.NativeID,
			string(rec.Kind),
			entity.ID,
			i,
			rec.Name,
			rec.Artist,
			rec.Album,
			rec.Duration.Milliseconds(),
			string(rec.Quality.Format),
			rec.Quality.BitrateKbps,
			rec.Quality.Lossless,
			rec.Available,
			rec.StreamRef,
		)
		if err != nil {
			return fmt.Errorf("failed to insert link %s: %w", rec.SourceKey(), err)
		}
	}
	return nil
}
