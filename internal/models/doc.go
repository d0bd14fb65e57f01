// Package models defines domain entities for the medley media-aggregation engine.
//
// The package contains two categories of types:
//
// 1. Provider-facing records: immutable snapshots of external catalog data
//   - [ProviderRecord] : One item as seen by a single provider during a sync pass
//   - [Quality] : Audio quality descriptor (format, bitrate, lossless flag)
//
// 2. Library entities: the merged, deduplicated catalog
//   - [CanonicalEntity] : A library-wide identity aggregating provider records
//   - [SyncJob] : One synchronization pass for one provider
//
// ProviderRecords are replaced wholesale on every sync pass; CanonicalEntities
// are long-lived and mutated only through the library store.
package models
