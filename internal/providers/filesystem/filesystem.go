// Package filesystem implements the local-disk provider adapter.
//
// A sync pass walks the configured roots, reads ID3/FLAC/MP4 tags with
// [tag.ReadFrom], and emits artist/album/track records. Local files are
// always available and their stream handles never expire.
package filesystem

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhowden/tag"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/providers"
	"github.com/medleyfm/medley/internal/shared"
)

// ProviderID is the registry id of the local-disk adapter.
const ProviderID = "filesystem"

var allowedExtensions = map[string]models.Format{
	".mp3":  models.FormatMP3,
	".flac": models.FormatFLAC,
	".m4a":  models.FormatAAC,
	".ogg":  models.FormatOGG,
	".opus": models.FormatOpus,
	".wav":  models.FormatWAV,
}

var losslessFormats = map[models.Format]bool{
	models.FormatFLAC: true,
	models.FormatALAC: true,
	models.FormatWAV:  true,
}

// Provider scans local music directories.
type Provider struct {
	roots []string
}

// New creates a filesystem provider over the given root directories.
// Relative roots and "~" prefixes are resolved at construction.
func New(roots []string) (*Provider, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: filesystem provider needs at least one root", shared.ErrInvalidConfig)
	}

	resolved := make([]string, 0, len(roots))
	for _, root := range roots {
		if strings.HasPrefix(root, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("%w: cannot resolve %q: %v", shared.ErrInvalidConfig, root, err)
			}
			root = filepath.Join(home, strings.TrimPrefix(root, "~"))
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidConfig, err)
		}
		resolved = append(resolved, abs)
	}

	return &Provider{roots: resolved}, nil
}

func (p *Provider) ID() string   { return ProviderID }
func (p *Provider) Name() string { return "Filesystem" }

// ListLibraryItems walks the roots and returns records of the requested
// kind. Artists and albums are derived from distinct track tags.
func (p *Provider) ListLibraryItems(ctx context.Context, kind models.Kind) (providers.Iterator, error) {
	tracks, err := p.scan(ctx)
	if err != nil {
		return nil, err
	}

	switch kind {
	case models.KindTrack:
		return providers.NewSliceIterator(tracks), nil
	case models.KindArtist:
		return providers.NewSliceIterator(deriveArtists(tracks)), nil
	case models.KindAlbum:
		return providers.NewSliceIterator(deriveAlbums(tracks)), nil
	default:
		return nil, fmt.Errorf("%w: kind %q", shared.ErrInvalidInput, kind)
	}
}

// ResolveStream verifies the file still exists and returns a file:// handle.
func (p *Provider) ResolveStream(ctx context.Context, rec models.ProviderRecord) (providers.StreamHandle, error) {
	path := rec.StreamRef
	if path == "" {
		return providers.StreamHandle{}, fmt.Errorf("%w: record %s has no path", shared.ErrStreamUnresolvable, rec.SourceKey())
	}
	if _, err := os.Stat(path); err != nil {
		return providers.StreamHandle{}, fmt.Errorf("%w: %s: %v", shared.ErrStreamUnresolvable, path, err)
	}

	u := url.URL{Scheme: "file", Path: path}
	return providers.StreamHandle{
		URL:      u.String(),
		MimeType: mimeTypeFor(rec.Quality.Format),
	}, nil
}

// scan walks every root and builds one track record per audio file.
func (p *Provider) scan(ctx context.Context) ([]models.ProviderRecord, error) {
	var tracks []models.ProviderRecord

	for _, root := range p.roots {
		if _, err := os.Stat(root); err != nil {
			return nil, fmt.Errorf("%w: root %s: %v", shared.ErrProviderUnavailable, root, err)
		}

		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil || d.IsDir() {
				return nil
			}
			format, ok := allowedExtensions[strings.ToLower(filepath.Ext(path))]
			if !ok {
				return nil
			}
			if rec, ok := p.readTrack(path, format); ok {
				tracks = append(tracks, rec)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Slice(tracks, func(i, j int) bool { return tracks[i].NativeID < tracks[j].NativeID })
	return tracks, nil
}

// readTrack reads tags from one audio file. Unreadable files are skipped,
// not fatal: a single corrupt download must not fail the whole pass.
func (p *Provider) readTrack(path string, format models.Format) (models.ProviderRecord, bool) {
	f, err := os.Open(path)
	if err != nil {
		return models.ProviderRecord{}, false
	}
	defer f.Close()

	var artist, album, title string
	if meta, err := tag.ReadFrom(f); err == nil {
		artist = meta.Artist()
		album = meta.Album()
		title = meta.Title()
	}
	if artist == "" {
		artist = "Unknown Artist"
	}
	if album == "" {
		album = filepath.Base(filepath.Dir(path))
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return models.ProviderRecord{
		ProviderID: ProviderID,
		NativeID:   hash(path),
		Kind:       models.KindTrack,
		Name:       title,
		Artist:     artist,
		Album:      album,
		Quality: models.Quality{
			Format:   format,
			Lossless: losslessFormats[format],
		},
		Available: true,
		StreamRef: path,
	}, true
}

// deriveArtists collapses track records into one artist record per distinct
// artist name.
func deriveArtists(tracks []models.ProviderRecord) []models.ProviderRecord {
	seen := make(map[string]struct{})
	var out []models.ProviderRecord
	for _, t := range tracks {
		key := strings.ToLower(t.Artist)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.ProviderRecord{
			ProviderID: ProviderID,
			NativeID:   hash("artist", key),
			Kind:       models.KindArtist,
			Name:       t.Artist,
			Artist:     t.Artist,
			Available:  true,
		})
	}
	return out
}

// deriveAlbums collapses track records into one album record per distinct
// (artist, album) pair.
func deriveAlbums(tracks []models.ProviderRecord) []models.ProviderRecord {
	seen := make(map[string]struct{})
	var out []models.ProviderRecord
	for _, t := range tracks {
		key := strings.ToLower(t.Artist) + "|" + strings.ToLower(t.Album)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, models.ProviderRecord{
			ProviderID: ProviderID,
			NativeID:   hash("album", key),
			Kind:       models.KindAlbum,
			Name:       t.Album,
			Artist:     t.Artist,
			Available:  true,
		})
	}
	return out
}

func hash(parts ...string) string {
	h := sha1.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func mimeTypeFor(f models.Format) string {
	switch f {
	case models.FormatFLAC:
		return "audio/flac"
	case models.FormatMP3:
		return "audio/mpeg"
	case models.FormatAAC:
		return "audio/mp4"
	case models.FormatOGG:
		return "audio/ogg"
	case models.FormatOpus:
		return "audio/opus"
	case models.FormatWAV:
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
