// Package resolver decides whether a provider record matches an existing
// canonical entity or seeds a new one.
//
// The matcher is a set of pure functions over normalized records plus a
// threshold table: no state, no side effects. The library store supplies
// candidate entities via its key index; the resolver only scores them.
// Matching is greedy and incremental: settled links are never re-evaluated
// against entities created later, which keeps repeated sync passes stable.
package resolver
