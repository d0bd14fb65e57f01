package models

import (
	"fmt"
	"time"
)

// Kind classifies a library item as an artist, album, or track.
type Kind string

const (
	KindArtist Kind = "artist"
	KindAlbum  Kind = "album"
	KindTrack  Kind = "track"
)

// Kinds lists every kind in the order sync passes process them.
var Kinds = []Kind{KindArtist, KindAlbum, KindTrack}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindArtist, KindAlbum, KindTrack:
		return true
	}
	return false
}

// Format identifies an audio container/codec for quality ranking.
type Format string

const (
	FormatFLAC    Format = "flac"
	FormatALAC    Format = "alac"
	FormatWAV     Format = "wav"
	FormatAAC     Format = "aac"
	FormatOGG     Format = "ogg"
	FormatMP3     Format = "mp3"
	FormatOpus    Format = "opus"
	FormatUnknown Format = ""
)

// Quality describes the audio quality of a single provider record.
type Quality struct {
	Format      Format `json:"format"`
	BitrateKbps int    `json:"bitrate_kbps"`
	Lossless    bool   `json:"lossless"`
}

// ProviderRecord is one catalog item as seen by a single provider.
//
// Records are immutable once fetched within a sync pass and are replaced
// wholesale on the next pass. StreamRef is an opaque provider-issued
// reference; its validity is owned by the originating adapter, not the
// library.
type ProviderRecord struct {
	ProviderID string        `json:"provider_id"`
	NativeID   string        `json:"native_id"`
	Kind       Kind          `json:"kind"`
	Name       string        `json:"name"`
	Artist     string        `json:"artist,omitempty"`
	Album      string        `json:"album,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"` // zero = unknown
	Quality    Quality       `json:"quality"`
	Available  bool          `json:"available"`
	StreamRef  string        `json:"stream_ref,omitempty"`
}

// SourceKey returns the (provider id, native id) identity of the record,
// used by the library's reverse index.
func (r ProviderRecord) SourceKey() SourceKey {
	return SourceKey{ProviderID: r.ProviderID, NativeID: r.NativeID}
}

// LinkKey returns the kind-scoped identity of the record. Native ids are
// only unique per provider per kind, so linking and pruning key on it.
func (r ProviderRecord) LinkKey() LinkKey {
	return LinkKey{Source: r.SourceKey(), Kind: r.Kind}
}

// Validate checks that the record carries the minimum identity fields.
func (r ProviderRecord) Validate() error {
	if r.ProviderID == "" {
		return fmt.Errorf("provider record missing provider id")
	}
	if r.NativeID == "" {
		return fmt.Errorf("provider record missing native id")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("provider record has invalid kind %q", r.Kind)
	}
	if r.Name == "" {
		return fmt.Errorf("provider record missing name")
	}
	return nil
}

// SourceKey identifies a record by provider and native catalog id.
type SourceKey struct {
	ProviderID string `json:"provider_id"`
	NativeID   string `json:"native_id"`
}

func (k SourceKey) String() string {
	return k.ProviderID + ":" + k.NativeID
}

// LinkKey identifies a record by provider, native catalog id, and kind.
type LinkKey struct {
	Source SourceKey `json:"source"`
	Kind   Kind      `json:"kind"`
}

// CanonicalEntity is the library's single merged identity for an artist,
// album, or track. Links holds every provider record that resolved to this
// entity, in match order.
//
// Invariants maintained by the library store: every linked record's kind
// matches Kind, and a (provider, native id) pair is linked to at most one
// entity of a given kind.
type CanonicalEntity struct {
	ID        string           `json:"id"`
	Kind      Kind             `json:"kind"`
	Name      string           `json:"name"`
	Artist    string           `json:"artist,omitempty"`
	Album     string           `json:"album,omitempty"`
	Duration  time.Duration    `json:"duration,omitempty"`
	Favorite  bool             `json:"favorite"`
	UpdatedAt time.Time        `json:"updated_at"`
	Links     []ProviderRecord `json:"links"`
}

// LinkCount returns the number of provider records linked to the entity.
func (e *CanonicalEntity) LinkCount() int { return len(e.Links) }

// LinkFor returns the linked record for the given source key, if any.
func (e *CanonicalEntity) LinkFor(key SourceKey) (ProviderRecord, bool) {
	for _, rec := range e.Links {
		if rec.SourceKey() == key {
			return rec, true
		}
	}
	return ProviderRecord{}, false
}

// Validate checks entity invariants that do not require index access.
func (e *CanonicalEntity) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entity missing id")
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("entity %s has invalid kind %q", e.ID, e.Kind)
	}
	for _, rec := range e.Links {
		if rec.Kind != e.Kind {
			return fmt.Errorf("entity %s (%s) linked to %s record %s", e.ID, e.Kind, rec.Kind, rec.SourceKey())
		}
	}
	return nil
}

// SyncTrigger identifies what initiated a sync pass.
type SyncTrigger string

const (
	TriggerStartup  SyncTrigger = "startup"
	TriggerPeriodic SyncTrigger = "periodic"
	TriggerManual   SyncTrigger = "manual"
)

// SyncState is the lifecycle state of a sync pass.
type SyncState string

const (
	SyncPending   SyncState = "pending"
	SyncRunning   SyncState = "running"
	SyncSucceeded SyncState = "succeeded"
	SyncFailed    SyncState = "failed"
	SyncPartial   SyncState = "partial"
)

// Terminal reports whether the state is a finished outcome.
func (s SyncState) Terminal() bool {
	switch s {
	case SyncSucceeded, SyncFailed, SyncPartial:
		return true
	}
	return false
}

// SyncJob represents one in-flight or completed synchronization pass for one
// provider.
type SyncJob struct {
	ID         string      `json:"id"`
	ProviderID string      `json:"provider_id"`
	Trigger    SyncTrigger `json:"trigger"`
	State      SyncState   `json:"state"`
	StartedAt  time.Time   `json:"started_at"`
	EndedAt    time.Time   `json:"ended_at,omitempty"`
	Error      string      `json:"error,omitempty"`
	Records    int         `json:"records"`
}
