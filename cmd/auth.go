package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/medleyfm/medley/internal/providers/spotify"
	"github.com/medleyfm/medley/internal/server"
	"github.com/medleyfm/medley/internal/shared"
)

// AuthLogin performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local callback server, opens the browser for user authorization,
// and lets the provider exchange and persist the token.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Providers.Spotify
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret must be set in config.toml", shared.ErrMissingConfig)
	}

	provider, err := spotify.New(spotify.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		TokenPath:    cfg.TokenPath,
		RateLimit:    cfg.RateLimit,
	})
	if err != nil {
		return err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return err
	}

	callback := server.NewCallbackHandler(provider.Authenticate, state)
	router := server.NewBasicRouter()
	router.Handler(callback)

	srv, err := server.Listen(r.config.Server.Host, r.config.Server.Port, router, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}

	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Serve(); err != nil {
			serverErrors <- err
		}
	}()

	authURL := provider.AuthURL(state)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result error
	select {
	case result = <-callback.Result():
	case err := <-serverErrors:
		return fmt.Errorf("callback server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("error shutting down callback server", "error", err)
	}

	if result != nil {
		return fmt.Errorf("authorization failed: %w", result)
	}

	r.writePlainln("✓ Authorization successful")
	if cfg.TokenPath != "" {
		r.writePlain("✓ Token saved to %s\n\n", cfg.TokenPath)
	}
	r.writePlain("You can now use: medley sync --provider spotify\n")
	return nil
}

// AuthStatus reports per-provider authentication and availability state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Providers

	r.writePlain("Provider status:\n\n")

	if cfg.Filesystem.Enabled {
		r.writePlain("filesystem: enabled (%d roots, no auth required)\n", len(cfg.Filesystem.Roots))
	} else {
		r.writePlain("filesystem: disabled\n")
	}

	switch {
	case !cfg.Spotify.Enabled:
		r.writePlain("spotify: disabled\n")
	case cfg.Spotify.ClientID == "" || cfg.Spotify.ClientSecret == "":
		r.writePlain("spotify: enabled, missing client credentials\n")
	default:
		provider, err := spotify.New(spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RedirectURI:  cfg.Spotify.RedirectURI,
			TokenPath:    cfg.Spotify.TokenPath,
		})
		if err != nil {
			return err
		}
		if provider.Authenticated() {
			r.writePlain("spotify: ✓ authenticated\n")
		} else {
			r.writePlain("spotify: ✗ not authenticated (run 'medley auth login')\n")
		}
	}

	if cfg.Radio.Enabled {
		r.writePlain("radio: enabled (no auth required)\n")
	} else {
		r.writePlain("radio: disabled\n")
	}

	return nil
}
