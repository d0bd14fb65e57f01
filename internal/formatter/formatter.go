// package formatter provides functions to export library data to various formats (CSV, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/shared"
)

// LibraryExport bundles the entities of one kind for export.
type LibraryExport struct {
	Kind     models.Kind              `json:"kind"`
	Count    int                      `json:"count"`
	Entities []models.CanonicalEntity `json:"entities"`
}

// NewLibraryExport wraps entities of one kind for export.
func NewLibraryExport(kind models.Kind, entities []models.CanonicalEntity) *LibraryExport {
	return &LibraryExport{Kind: kind, Count: len(entities), Entities: entities}
}

// ExportToCSV converts a LibraryExport to CSV with columns:
// ID, Name, Artist, Album, Duration, Favorite, Sources
func ExportToCSV(export *LibraryExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Artist", "Album", "Duration", "Favorite", "Sources"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entity := range export.Entities {
		record := []string{
			entity.ID,
			entity.Name,
			entity.Artist,
			entity.Album,
			shared.FormatDuration(entity.Duration),
			fmt.Sprintf("%t", entity.Favorite),
			sourceList(entity),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a LibraryExport to pretty-printed JSON.
func ExportToJSON(export *LibraryExport) ([]byte, error) {
	return shared.MarshalJSON(export, true)
}

// ExportToText converts a LibraryExport to plain text format
func ExportToText(export *LibraryExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Library %ss: %d\n\n", export.Kind, export.Count))
	for i, entity := range export.Entities {
		line := fmt.Sprintf("%d. %s - %s", i+1, entity.Artist, entity.Name)
		if entity.Kind == models.KindArtist {
			line = fmt.Sprintf("%d. %s", i+1, entity.Name)
		}
		if entity.Favorite {
			line += " *"
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// sourceList renders an entity's provider links as "provider:quality"
// pairs, e.g. "filesystem:FLAC spotify:AAC@256".
func sourceList(entity models.CanonicalEntity) string {
	parts := make([]string, 0, len(entity.Links))
	for _, rec := range entity.Links {
		part := rec.ProviderID + ":" + strings.ToUpper(string(rec.Quality.Format))
		if rec.Quality.BitrateKbps > 0 {
			part = fmt.Sprintf("%s@%d", part, rec.Quality.BitrateKbps)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}

// WriteExport writes the export in the requested format ("json", "csv" or
// "text"). An empty path defaults to library_{kind}s.{ext}.
func WriteExport(export *LibraryExport, format, path string) (string, error) {
	var (
		data []byte
		ext  string
		err  error
	)
	switch format {
	case "csv":
		data, err = ExportToCSV(export)
		ext = "csv"
	case "text":
		data, err = ExportToText(export)
		ext = "txt"
	case "json", "":
		data, err = ExportToJSON(export)
		ext = "json"
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidInput, format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate %s export: %w", format, err)
	}

	if path == "" {
		path = fmt.Sprintf("library_%ss.%s", export.Kind, ext)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
