// Package spotify implements the streaming-service provider adapter.
//
// Response types are based on https://developer.spotify.com/documentation/web-api/reference/
// Library listing walks the paginated saved-tracks/saved-albums/followed-artists
// endpoints; page fetches are rate limited so sync passes stay inside the
// API quota. Stream handles are Spotify URIs for the downstream playback
// router; the adapter verifies current availability before handing one out.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/providers"
	"github.com/medleyfm/medley/internal/shared"
)

// ProviderID is the registry id of the streaming adapter.
const ProviderID = "spotify"

const (
	authURL  = "https://accounts.spotify.com/authorize"
	tokenURL = "https://accounts.spotify.com/api/token"
	baseURL  = "https://api.spotify.com/v1"

	pageSize = 50
)

// Image represents an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Artist represents a Spotify artist.
type Artist struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Images []Image `json:"images"`
	URI    string  `json:"uri"`
}

// Album represents a Spotify album.
type Album struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []Artist `json:"artists"`
	TotalTracks int      `json:"total_tracks"`
	URI         string   `json:"uri"`
}

// Track represents a Spotify track.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMS int      `json:"duration_ms"`
	IsPlayable *bool    `json:"is_playable,omitempty"`
	URI        string   `json:"uri"`
}

type savedTrack struct {
	Track Track `json:"track"`
}

type savedAlbum struct {
	Album Album `json:"album"`
}

type pagedSavedTracks struct {
	Items []savedTrack `json:"items"`
	Next  *string      `json:"next"`
}

type pagedSavedAlbums struct {
	Items []savedAlbum `json:"items"`
	Next  *string      `json:"next"`
}

type followedArtists struct {
	Artists struct {
		Items []Artist `json:"items"`
		Next  *string  `json:"next"`
	} `json:"artists"`
}

// Provider implements the streaming-service adapter over the Spotify Web API.
type Provider struct {
	config     *oauth2.Config
	token      *oauth2.Token
	httpClient *http.Client
	limiter    *rate.Limiter
	tokenPath  string
	apiBase    string
}

// Config holds adapter construction options.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	TokenPath    string
	RateLimit    float64 // page requests per second
}

// New creates a Spotify provider. A previously persisted token is loaded
// from TokenPath when present; otherwise Authenticate must run first.
func New(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret required", shared.ErrInvalidConfig)
	}
	if cfg.RedirectURI == "" {
		cfg.RedirectURI = "http://localhost:8095/callback"
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5.0
	}

	p := &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes: []string{
				"user-library-read",
				"user-follow-read",
			},
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		tokenPath:  cfg.TokenPath,
		apiBase:    baseURL,
	}

	if cfg.TokenPath != "" {
		if token, err := loadToken(cfg.TokenPath); err == nil {
			p.useToken(context.Background(), token)
		}
	}

	return p, nil
}

func (p *Provider) ID() string   { return ProviderID }
func (p *Provider) Name() string { return "Spotify" }

// AuthURL returns the OAuth2 authorization URL for user login.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Authenticate exchanges an authorization code for a token and persists it.
func (p *Provider) Authenticate(ctx context.Context, authCode string) error {
	token, err := p.config.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("%w: code exchange failed: %v", shared.ErrProviderUnavailable, err)
	}
	p.useToken(ctx, token)

	if p.tokenPath != "" {
		if err := saveToken(p.tokenPath, token); err != nil {
			return fmt.Errorf("authenticated but failed to persist token: %w", err)
		}
	}
	return nil
}

// Authenticated reports whether the adapter holds a token.
func (p *Provider) Authenticated() bool { return p.token != nil }

func (p *Provider) useToken(ctx context.Context, token *oauth2.Token) {
	p.token = token
	p.httpClient = p.config.Client(ctx, token)
}

// ListLibraryItems walks the user's saved library for the requested kind.
func (p *Provider) ListLibraryItems(ctx context.Context, kind models.Kind) (providers.Iterator, error) {
	if p.token == nil {
		return nil, fmt.Errorf("%w: spotify not authenticated", shared.ErrProviderUnavailable)
	}

	switch kind {
	case models.KindTrack:
		return newPageIterator(p, fmt.Sprintf("%s/me/tracks?limit=%d", p.apiBase, pageSize), decodeTrackPage), nil
	case models.KindAlbum:
		return newPageIterator(p, fmt.Sprintf("%s/me/albums?limit=%d", p.apiBase, pageSize), decodeAlbumPage), nil
	case models.KindArtist:
		return newPageIterator(p, fmt.Sprintf("%s/me/following?type=artist&limit=%d", p.apiBase, pageSize), decodeArtistPage), nil
	default:
		return nil, fmt.Errorf("%w: kind %q", shared.ErrInvalidInput, kind)
	}
}

// ResolveStream re-checks availability and returns the track URI for the
// playback router. Records that went stale or region-blocked since the last
// sync fail with [shared.ErrStreamUnresolvable].
func (p *Provider) ResolveStream(ctx context.Context, rec models.ProviderRecord) (providers.StreamHandle, error) {
	if p.token == nil {
		return providers.StreamHandle{}, fmt.Errorf("%w: spotify not authenticated", shared.ErrStreamUnresolvable)
	}
	if rec.Kind != models.KindTrack {
		return providers.StreamHandle{}, fmt.Errorf("%w: only tracks are streamable", shared.ErrStreamUnresolvable)
	}

	var track Track
	if err := p.get(ctx, fmt.Sprintf("%s/tracks/%s", p.apiBase, url.PathEscape(rec.NativeID)), &track); err != nil {
		return providers.StreamHandle{}, fmt.Errorf("%w: %v", shared.ErrStreamUnresolvable, err)
	}
	if track.IsPlayable != nil && !*track.IsPlayable {
		return providers.StreamHandle{}, fmt.Errorf("%w: track %s not playable in market", shared.ErrStreamUnresolvable, rec.NativeID)
	}

	return providers.StreamHandle{
		URL:       track.URI,
		MimeType:  "audio/mp4",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

// get performs an authenticated, rate-limited GET against the API.
func (p *Provider) get(ctx context.Context, fullURL string, result any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", shared.ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", shared.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// pageDecoder turns one response page into records plus the next page URL.
type pageDecoder func(body json.RawMessage) ([]models.ProviderRecord, *string, error)

// pageIterator lazily walks a paginated endpoint, fetching the next page
// only when the current one is drained.
type pageIterator struct {
	provider *Provider
	nextURL  *string
	decode   pageDecoder
	buffer   []models.ProviderRecord
	pos      int
}

func newPageIterator(p *Provider, firstURL string, decode pageDecoder) *pageIterator {
	return &pageIterator{provider: p, nextURL: &firstURL, decode: decode}
}

// Next implements [providers.Iterator].
func (it *pageIterator) Next(ctx context.Context) (models.ProviderRecord, bool, error) {
	for it.pos >= len(it.buffer) {
		if it.nextURL == nil || *it.nextURL == "" {
			return models.ProviderRecord{}, false, nil
		}

		var raw json.RawMessage
		if err := it.provider.get(ctx, *it.nextURL, &raw); err != nil {
			return models.ProviderRecord{}, false, err
		}
		records, next, err := it.decode(raw)
		if err != nil {
			return models.ProviderRecord{}, false, err
		}
		it.buffer = records
		it.pos = 0
		it.nextURL = next
	}

	rec := it.buffer[it.pos]
	it.pos++
	return rec, true, nil
}

func decodeTrackPage(body json.RawMessage) ([]models.ProviderRecord, *string, error) {
	var page pagedSavedTracks
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, nil, fmt.Errorf("failed to decode track page: %w", err)
	}
	records := make([]models.ProviderRecord, 0, len(page.Items))
	for _, item := range page.Items {
		records = append(records, trackRecord(item.Track))
	}
	return records, page.Next, nil
}

func decodeAlbumPage(body json.RawMessage) ([]models.ProviderRecord, *string, error) {
	var page pagedSavedAlbums
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, nil, fmt.Errorf("failed to decode album page: %w", err)
	}
	records := make([]models.ProviderRecord, 0, len(page.Items))
	for _, item := range page.Items {
		records = append(records, albumRecord(item.Album))
	}
	return records, page.Next, nil
}

func decodeArtistPage(body json.RawMessage) ([]models.ProviderRecord, *string, error) {
	var page followedArtists
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, nil, fmt.Errorf("failed to decode artist page: %w", err)
	}
	records := make([]models.ProviderRecord, 0, len(page.Artists.Items))
	for _, artist := range page.Artists.Items {
		records = append(records, artistRecord(artist))
	}
	return records, page.Artists.Next, nil
}

func trackRecord(t Track) models.ProviderRecord {
	available := true
	if t.IsPlayable != nil {
		available = *t.IsPlayable
	}
	return models.ProviderRecord{
		ProviderID: ProviderID,
		NativeID:   t.ID,
		Kind:       models.KindTrack,
		Name:       t.Name,
		Artist:     primaryArtist(t.Artists),
		Album:      t.Album.Name,
		Duration:   time.Duration(t.DurationMS) * time.Millisecond,
		Quality: models.Quality{
			Format:      models.FormatAAC,
			BitrateKbps: 256,
		},
		Available: available,
		StreamRef: t.URI,
	}
}

func albumRecord(a Album) models.ProviderRecord {
	return models.ProviderRecord{
		ProviderID: ProviderID,
		NativeID:   a.ID,
		Kind:       models.KindAlbum,
		Name:       a.Name,
		Artist:     primaryArtist(a.Artists),
		Available:  true,
		StreamRef:  a.URI,
	}
}

func artistRecord(a Artist) models.ProviderRecord {
	return models.ProviderRecord{
		ProviderID: ProviderID,
		NativeID:   a.ID,
		Kind:       models.KindArtist,
		Name:       a.Name,
		Artist:     a.Name,
		Available:  true,
		StreamRef:  a.URI,
	}
}

func primaryArtist(artists []Artist) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}

func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return &token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
