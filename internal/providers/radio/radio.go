// Package radio implements an internet-radio provider backed by a
// radio-browser.info compatible station directory.
//
// Stations are surfaced as track records with unknown duration; the
// directory has no notion of artists or albums, so those kinds list empty.
package radio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/providers"
	"github.com/medleyfm/medley/internal/shared"
)

// ProviderID is the registry id of the radio adapter.
const ProviderID = "radio"

const defaultDirectoryURL = "https://de1.api.radio-browser.info"

// station is the subset of the directory's station document the adapter reads.
type station struct {
	UUID     string `json:"stationuuid"`
	Name     string `json:"name"`
	URL      string `json:"url_resolved"`
	Codec    string `json:"codec"`
	Bitrate  int    `json:"bitrate"`
	Country  string `json:"country"`
	LastOK   int    `json:"lastcheckok"`
	Homepage string `json:"homepage"`
}

// Provider lists and resolves stations from a public radio directory.
type Provider struct {
	directoryURL string
	tags         []string
	limit        int
	httpClient   *http.Client
}

// Config holds adapter construction options.
type Config struct {
	DirectoryURL string
	Tags         []string // station tags to pull, e.g. "jazz"; empty means top stations
	Limit        int      // max stations per listing
}

// New creates a radio provider against the configured directory.
func New(cfg Config) *Provider {
	if cfg.DirectoryURL == "" {
		cfg.DirectoryURL = defaultDirectoryURL
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	return &Provider{
		directoryURL: strings.TrimRight(cfg.DirectoryURL, "/"),
		tags:         cfg.Tags,
		limit:        cfg.Limit,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *Provider) ID() string   { return ProviderID }
func (p *Provider) Name() string { return "Internet Radio" }

// ListLibraryItems returns the configured station set as track records.
// Artist and album listings are empty since the directory only has stations.
func (p *Provider) ListLibraryItems(ctx context.Context, kind models.Kind) (providers.Iterator, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: kind %q", shared.ErrInvalidInput, kind)
	}
	if kind != models.KindTrack {
		return providers.NewSliceIterator(nil), nil
	}

	stations, err := p.fetchStations(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]models.ProviderRecord, 0, len(stations))
	for _, st := range stations {
		if st.URL == "" {
			continue
		}
		records = append(records, stationRecord(st))
	}
	return providers.NewSliceIterator(records), nil
}

// ResolveStream returns the station's live stream URL. Stations the
// directory last saw offline fail with [shared.ErrStreamUnresolvable].
func (p *Provider) ResolveStream(ctx context.Context, rec models.ProviderRecord) (providers.StreamHandle, error) {
	if rec.StreamRef == "" {
		return providers.StreamHandle{}, fmt.Errorf("%w: station %s has no stream url", shared.ErrStreamUnresolvable, rec.NativeID)
	}

	st, err := p.fetchStation(ctx, rec.NativeID)
	if err != nil {
		return providers.StreamHandle{}, fmt.Errorf("%w: %v", shared.ErrStreamUnresolvable, err)
	}
	if st.LastOK == 0 {
		return providers.StreamHandle{}, fmt.Errorf("%w: station %s is offline", shared.ErrStreamUnresolvable, rec.NativeID)
	}

	streamURL := st.URL
	if streamURL == "" {
		streamURL = rec.StreamRef
	}
	return providers.StreamHandle{
		URL:      streamURL,
		MimeType: mimeTypeFor(st.Codec),
	}, nil
}

func (p *Provider) fetchStations(ctx context.Context) ([]station, error) {
	var all []station

	if len(p.tags) == 0 {
		endpoint := fmt.Sprintf("%s/json/stations/topvote/%d", p.directoryURL, p.limit)
		return all, p.getJSON(ctx, endpoint, &all)
	}

	seen := make(map[string]struct{})
	for _, tag := range p.tags {
		endpoint := fmt.Sprintf("%s/json/stations/bytag/%s?limit=%d&hidebroken=true",
			p.directoryURL, url.PathEscape(tag), p.limit)

		var stations []station
		if err := p.getJSON(ctx, endpoint, &stations); err != nil {
			return nil, err
		}
		for _, st := range stations {
			if _, ok := seen[st.UUID]; ok {
				continue
			}
			seen[st.UUID] = struct{}{}
			all = append(all, st)
		}
	}
	return all, nil
}

func (p *Provider) fetchStation(ctx context.Context, uuid string) (station, error) {
	endpoint := fmt.Sprintf("%s/json/stations/byuuid/%s", p.directoryURL, url.PathEscape(uuid))

	var stations []station
	if err := p.getJSON(ctx, endpoint, &stations); err != nil {
		return station{}, err
	}
	if len(stations) == 0 {
		return station{}, fmt.Errorf("station %s not found in directory", uuid)
	}
	return stations[0], nil
}

func (p *Provider) getJSON(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "medley/1.0")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d", shared.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: directory returned status %d", shared.ErrProviderUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode directory response: %w", err)
	}
	return nil
}

// stationRecord maps a directory station onto a track record. Live streams
// have no fixed length, so Duration stays zero.
func stationRecord(st station) models.ProviderRecord {
	format, lossless := formatFor(st.Codec)
	return models.ProviderRecord{
		ProviderID: ProviderID,
		NativeID:   st.UUID,
		Kind:       models.KindTrack,
		Name:       strings.TrimSpace(st.Name),
		Artist:     st.Country,
		Quality: models.Quality{
			Format:      format,
			BitrateKbps: st.Bitrate,
			Lossless:    lossless,
		},
		Available: st.LastOK == 1,
		StreamRef: st.URL,
	}
}

func formatFor(codec string) (models.Format, bool) {
	switch strings.ToUpper(codec) {
	case "FLAC":
		return models.FormatFLAC, true
	case "AAC", "AAC+":
		return models.FormatAAC, false
	case "OGG":
		return models.FormatOGG, false
	case "OPUS":
		return models.FormatOpus, false
	default:
		return models.FormatMP3, false
	}
}

func mimeTypeFor(codec string) string {
	switch strings.ToUpper(codec) {
	case "FLAC":
		return "audio/flac"
	case "AAC", "AAC+":
		return "audio/aac"
	case "OGG":
		return "audio/ogg"
	case "OPUS":
		return "audio/opus"
	default:
		return "audio/mpeg"
	}
}
