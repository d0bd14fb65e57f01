package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// ExchangeFunc trades an authorization code for provider credentials.
// The provider adapter owns token persistence.
type ExchangeFunc func(ctx context.Context, code string) error

// CallbackHandler handles OAuth2 callback requests for authorization code flow.
// Implements the Handler interface for registration with a Router.
type CallbackHandler struct {
	exchange    ExchangeFunc
	state       string
	resultChan  chan error
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewCallbackHandler creates a callback handler bound to a provider's code
// exchange. The state token should be cryptographically random for CSRF
// protection.
func NewCallbackHandler(exchange ExchangeFunc, state string) *CallbackHandler {
	return &CallbackHandler{
		exchange:   exchange,
		state:      state,
		resultChan: make(chan error, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates the state parameter, hands the authorization code to the
// provider for exchange, and reports the outcome through the result channel.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only handle callback once
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	state := r.URL.Query().Get("state")
	if state != h.state {
		h.send(fmt.Errorf("invalid state parameter"))
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		h.send(fmt.Errorf("authorization failed: %s - %s", errParam, errDesc))
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	if err := h.exchange(r.Context(), code); err != nil {
		h.send(fmt.Errorf("code exchange failed: %w", err))
		http.Error(w, "Code exchange failed", http.StatusInternalServerError)
		return
	}

	h.send(nil)

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`)
}

// send reports the outcome through the channel (only once).
func (h *CallbackHandler) send(err error) {
	h.once.Do(func() {
		h.resultChan <- err
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *CallbackHandler) Result() <-chan error {
	return h.resultChan
}
