// package tasks implements library synchronization between providers and
// the canonical store.
//
// The core abstraction is the Engine, which runs one sync pass for one
// provider: list the provider's library, resolve each record against the
// canonical store, and prune links the provider no longer reports.
// The Scheduler owns pass lifecycles: a startup pass per provider, periodic
// passes on an interval, and manual passes on demand, with at most one
// running pass per provider at a time.
package tasks
