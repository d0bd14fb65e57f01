// Package server provides the HTTP surface of the aggregation engine:
// a small JSON API over the canonical library plus the OAuth callback
// endpoint used during provider authentication.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers outermost-first: the first middleware added
// sees the request first.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally, with
// method patterns for method-specific routes.
//
// # API
//
// [APIHandler] serves the read side (library listings, sync status, library
// stats, health) and accepts manual sync triggers. Sync triggers run in the
// background; an already-running pass for the same provider answers 409.
//
// # OAuth Callback Handler
//
// [CallbackHandler] implements the OAuth2 authorization code callback flow
// for streaming providers. It validates the state parameter (CSRF
// protection), hands the code to the provider for exchange, and reports the
// outcome through a channel. Only the first callback is processed.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
