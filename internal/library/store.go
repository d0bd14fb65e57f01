package library

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/resolver"
	"github.com/medleyfm/medley/internal/shared"
)

// Stats summarizes the library for status surfaces.
type Stats struct {
	Artists int            `json:"artists"`
	Albums  int            `json:"albums"`
	Tracks  int            `json:"tracks"`
	Links   map[string]int `json:"links_by_provider"`
}

// Store holds the merged catalog and its lookup indices.
//
// A single mutex guards all state: merge critical sections are short and
// in-memory (provider I/O happens outside the store), so serializing them
// preserves the single-writer-per-entity contract without lock striping.
// Readers receive deep copies and never observe a half-linked entity.
type Store struct {
	mu sync.RWMutex

	entities map[string]*models.CanonicalEntity
	bySource map[models.LinkKey]string      // (provider, native id, kind) -> entity id
	byKey    map[string]map[string]struct{} // normalized key -> entity ids
	byArtist map[string]map[string]struct{} // normalized artist + kind -> entity ids
}

// NewStore creates an empty library store.
func NewStore() *Store {
	return &Store{
		entities: make(map[string]*models.CanonicalEntity),
		bySource: make(map[models.LinkKey]string),
		byKey:    make(map[string]map[string]struct{}),
		byArtist: make(map[string]map[string]struct{}),
	}
}

func artistKey(artist string, kind models.Kind) string {
	return resolver.Normalize(artist) + "|" + string(kind)
}

// Upsert inserts or replaces a canonical entity wholesale, rebuilding its
// index entries. Used when loading a persisted snapshot and in tests; sync
// passes go through LinkRecord / SeedEntity instead.
func (s *Store) Upsert(e models.CanonicalEntity) error {
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check conflicts before touching any index, so a rejected upsert
	// leaves the store unchanged.
	for _, rec := range e.Links {
		key := rec.LinkKey()
		if owner, ok := s.bySource[key]; ok && owner != e.ID {
			return fmt.Errorf("%w: record %s already linked to entity %s", shared.ErrMergeConflict, key.Source, owner)
		}
	}
	if old, ok := s.entities[e.ID]; ok {
		s.dropIndexes(old)
	}

	clone := cloneEntity(&e)
	s.entities[e.ID] = clone
	s.addIndexes(clone)
	return nil
}

// SeedEntity creates a new canonical entity from an unmatched provider
// record and links the record to it. Returns a copy of the new entity.
func (s *Store) SeedEntity(rec models.ProviderRecord) (models.CanonicalEntity, error) {
	if err := rec.Validate(); err != nil {
		return models.CanonicalEntity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.LinkKey()
	if owner, ok := s.bySource[key]; ok {
		return models.CanonicalEntity{}, fmt.Errorf("%w: record %s already linked to entity %s", shared.ErrMergeConflict, key.Source, owner)
	}

	e := &models.CanonicalEntity{
		ID:        shared.GenerateID(),
		Kind:      rec.Kind,
		Name:      rec.Name,
		Artist:    rec.Artist,
		Album:     rec.Album,
		Duration:  rec.Duration,
		UpdatedAt: time.Now(),
		Links:     []models.ProviderRecord{rec},
	}
	s.entities[e.ID] = e
	s.addIndexes(e)

	return *cloneEntity(e), nil
}

// LinkRecord links a provider record to an existing entity.
//
// Re-linking the same (provider, native id) to the same entity refreshes the
// stored record in place, the normal resync path. Linking it to a different
// entity of the same kind is a consistency violation and fails with
// [shared.ErrMergeConflict].
func (s *Store) LinkRecord(entityID string, rec models.ProviderRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[entityID]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrEntityNotFound, entityID)
	}
	if e.Kind != rec.Kind {
		return fmt.Errorf("%w: cannot link %s record to %s entity %s", shared.ErrMergeConflict, rec.Kind, e.Kind, entityID)
	}

	key := rec.LinkKey()
	if owner, linked := s.bySource[key]; linked {
		if owner != entityID {
			return fmt.Errorf("%w: record %s already linked to entity %s", shared.ErrMergeConflict, key.Source, owner)
		}
		for i := range e.Links {
			if e.Links[i].SourceKey() == rec.SourceKey() {
				e.Links[i] = rec
				break
			}
		}
	} else {
		e.Links = append(e.Links, rec)
		s.bySource[key] = entityID
	}

	// keep best-known display metadata: fill gaps, never overwrite
	if e.Duration <= 0 && rec.Duration > 0 {
		e.Duration = rec.Duration
	}
	if e.Album == "" && rec.Album != "" {
		e.Album = rec.Album
	}
	e.UpdatedAt = time.Now()

	return nil
}

// UnlinkRecord removes the link for (provider id, native id, kind). The
// owning entity is garbage-collected when its last link is pruned. Reports
// whether the entity was removed.
func (s *Store) UnlinkRecord(providerID, nativeID string, kind models.Kind) (removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.LinkKey{Source: models.SourceKey{ProviderID: providerID, NativeID: nativeID}, Kind: kind}
	entityID, ok := s.bySource[key]
	if !ok {
		return false, nil
	}

	e := s.entities[entityID]
	if e == nil {
		return false, fmt.Errorf("%w: index points at missing entity %s", shared.ErrMergeConflict, entityID)
	}

	delete(s.bySource, key)
	for i := range e.Links {
		if e.Links[i].SourceKey() == key.Source {
			e.Links = append(e.Links[:i], e.Links[i+1:]...)
			break
		}
	}

	if len(e.Links) == 0 {
		s.dropIndexes(e)
		delete(s.entities, e.ID)
		return true, nil
	}

	e.UpdatedAt = time.Now()
	return false, nil
}

// LookupByProviderRecord resolves (provider id, native id, kind) to the
// linked entity, if any.
func (s *Store) LookupByProviderRecord(providerID, nativeID string, kind models.Kind) (models.CanonicalEntity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := models.LinkKey{Source: models.SourceKey{ProviderID: providerID, NativeID: nativeID}, Kind: kind}
	entityID, ok := s.bySource[key]
	if !ok {
		return models.CanonicalEntity{}, false
	}
	e, ok := s.entities[entityID]
	if !ok {
		return models.CanonicalEntity{}, false
	}
	return *cloneEntity(e), true
}

// GetEntity returns a copy of the entity with the given id.
func (s *Store) GetEntity(id string) (models.CanonicalEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return models.CanonicalEntity{}, fmt.Errorf("%w: %s", shared.ErrEntityNotFound, id)
	}
	return *cloneEntity(e), nil
}

// CandidatesForRecord returns copies of the entities the resolver should
// score against a record: exact normalized-key matches first, then entities
// of the same kind sharing the record's normalized artist.
func (s *Store) CandidatesForRecord(rec models.ProviderRecord) []*models.CanonicalEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []*models.CanonicalEntity

	collect := func(ids map[string]struct{}) {
		for id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if e, ok := s.entities[id]; ok {
				out = append(out, cloneEntity(e))
			}
		}
	}

	collect(s.byKey[resolver.RecordKey(rec)])
	collect(s.byArtist[artistKey(rec.Artist, rec.Kind)])

	return out
}

// AllEntitiesOfKind returns copies of every entity of the given kind, sorted
// by artist then name. favoritesOnly restricts the result to flagged entities.
func (s *Store) AllEntitiesOfKind(kind models.Kind, favoritesOnly bool) []models.CanonicalEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.CanonicalEntity
	for _, e := range s.entities {
		if e.Kind != kind {
			continue
		}
		if favoritesOnly && !e.Favorite {
			continue
		}
		out = append(out, *cloneEntity(e))
	}

	sort.Slice(out, func(i, j int) bool {
		if c := strings.Compare(out[i].Artist, out[j].Artist); c != 0 {
			return c < 0
		}
		return out[i].Name < out[j].Name
	})

	return out
}

// AllEntities returns copies of every entity, for persistence and export.
func (s *Store) AllEntities() []models.CanonicalEntity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CanonicalEntity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, *cloneEntity(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MarkFavorite sets the favorite flag on an entity.
func (s *Store) MarkFavorite(id string, favorite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrEntityNotFound, id)
	}
	e.Favorite = favorite
	e.UpdatedAt = time.Now()
	return nil
}

// PruneStale removes every link of the provider whose link key is absent
// from seen, garbage-collecting entities that lose their last link. The keys
// are kind-scoped, so a stale album link is pruned even when a track shares
// its native id. Returns the number of pruned links and removed entities.
func (s *Store) PruneStale(providerID string, seen map[models.LinkKey]struct{}) (pruned, removed int) {
	s.mu.Lock()
	stale := make([]models.LinkKey, 0)
	for key := range s.bySource {
		if key.Source.ProviderID != providerID {
			continue
		}
		if _, ok := seen[key]; !ok {
			stale = append(stale, key)
		}
	}
	s.mu.Unlock()

	for _, key := range stale {
		gone, err := s.UnlinkRecord(key.Source.ProviderID, key.Source.NativeID, key.Kind)
		if err != nil {
			continue
		}
		pruned++
		if gone {
			removed++
		}
	}
	return pruned, removed
}

// Stats returns per-kind entity counts and per-provider link counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Links: make(map[string]int)}
	for _, e := range s.entities {
		switch e.Kind {
		case models.KindArtist:
			stats.Artists++
		case models.KindAlbum:
			stats.Albums++
		case models.KindTrack:
			stats.Tracks++
		}
		for _, rec := range e.Links {
			stats.Links[rec.ProviderID]++
		}
	}
	return stats
}

// addIndexes registers an entity in every index. Caller holds the write lock.
func (s *Store) addIndexes(e *models.CanonicalEntity) {
	key := resolver.EntityKey(e)
	if s.byKey[key] == nil {
		s.byKey[key] = make(map[string]struct{})
	}
	s.byKey[key][e.ID] = struct{}{}

	ak := artistKey(e.Artist, e.Kind)
	if s.byArtist[ak] == nil {
		s.byArtist[ak] = make(map[string]struct{})
	}
	s.byArtist[ak][e.ID] = struct{}{}

	for _, rec := range e.Links {
		s.bySource[rec.LinkKey()] = e.ID
	}
}

// dropIndexes removes an entity from every index. Caller holds the write lock.
func (s *Store) dropIndexes(e *models.CanonicalEntity) {
	key := resolver.EntityKey(e)
	if ids, ok := s.byKey[key]; ok {
		delete(ids, e.ID)
		if len(ids) == 0 {
			delete(s.byKey, key)
		}
	}

	ak := artistKey(e.Artist, e.Kind)
	if ids, ok := s.byArtist[ak]; ok {
		delete(ids, e.ID)
		if len(ids) == 0 {
			delete(s.byArtist, ak)
		}
	}

	for _, rec := range e.Links {
		delete(s.bySource, rec.LinkKey())
	}
}

func cloneEntity(e *models.CanonicalEntity) *models.CanonicalEntity {
	clone := *e
	clone.Links = make([]models.ProviderRecord, len(e.Links))
	copy(clone.Links, e.Links)
	return &clone
}
