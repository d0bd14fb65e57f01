// Package providers defines the capability interface every media source
// implements, plus the registry the engine uses to look adapters up by id.
//
// Adapters live in subpackages (filesystem, spotify, radio) and are selected
// at configuration time; the core never depends on a concrete adapter. Every
// adapter call can partially fail: a timeout or revoked session for one
// provider must never abort sync for the others.
package providers
