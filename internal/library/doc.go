// Package library implements the merged, deduplicated catalog.
//
// The [Store] exclusively owns canonical entities. Concurrent sync passes for
// different providers may mutate the store in parallel; mutations to the same
// entity are serialized, and readers always observe a consistent snapshot,
// never a partially linked entity mid-merge.
package library
