package formatter

import (
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/medleyfm/medley/internal/models"
)

func sampleExport() *LibraryExport {
	return NewLibraryExport(models.KindTrack, []models.CanonicalEntity{
		{
			ID:       "e1",
			Kind:     models.KindTrack,
			Name:     "One More Time",
			Artist:   "Daft Punk",
			Album:    "Discovery",
			Duration: 320 * time.Second,
			Favorite: true,
			Links: []models.ProviderRecord{
				{ProviderID: "filesystem", NativeID: "f1", Kind: models.KindTrack,
					Quality: models.Quality{Format: models.FormatFLAC, Lossless: true}},
				{ProviderID: "spotify", NativeID: "s1", Kind: models.KindTrack,
					Quality: models.Quality{Format: models.FormatAAC, BitrateKbps: 256}},
			},
		},
		{
			ID:     "e2",
			Kind:   models.KindTrack,
			Name:   "Aerodynamic",
			Artist: "Daft Punk",
		},
	})
}

func TestExportToCSV(t *testing.T) {
	data, err := ExportToCSV(sampleExport())
	if err != nil {
		t.Fatalf("ExportToCSV failed: %v", err)
	}

	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][6] != "Sources" {
		t.Errorf("unexpected header: %v", rows[0])
	}

	first := rows[1]
	if first[1] != "One More Time" || first[2] != "Daft Punk" || first[4] != "5:20" {
		t.Errorf("unexpected row: %v", first)
	}
	if first[6] != "filesystem:FLAC spotify:AAC@256" {
		t.Errorf("unexpected sources column: %q", first[6])
	}

	// Zero duration renders as a dash.
	if rows[2][4] != "-" {
		t.Errorf("expected dash for unknown duration, got %q", rows[2][4])
	}
}

func TestExportToJSON(t *testing.T) {
	data, err := ExportToJSON(sampleExport())
	if err != nil {
		t.Fatalf("ExportToJSON failed: %v", err)
	}

	var decoded LibraryExport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if decoded.Kind != models.KindTrack || decoded.Count != 2 || len(decoded.Entities) != 2 {
		t.Errorf("unexpected export: %+v", decoded)
	}
}

func TestExportToText(t *testing.T) {
	data, err := ExportToText(sampleExport())
	if err != nil {
		t.Fatalf("ExportToText failed: %v", err)
	}

	text := string(data)
	if !strings.Contains(text, "1. Daft Punk - One More Time *") {
		t.Errorf("expected favorite marker on first line, got:\n%s", text)
	}
	if !strings.Contains(text, "2. Daft Punk - Aerodynamic") {
		t.Errorf("expected second entry, got:\n%s", text)
	}
}

func TestWriteExport(t *testing.T) {
	dir := t.TempDir()

	tc := []struct {
		format  string
		path    string
		wantErr bool
	}{
		{"json", filepath.Join(dir, "out.json"), false},
		{"csv", filepath.Join(dir, "out.csv"), false},
		{"text", filepath.Join(dir, "out.txt"), false},
		{"yaml", filepath.Join(dir, "out.yaml"), true},
	}

	for _, c := range tc {
		t.Run(c.format, func(t *testing.T) {
			path, err := WriteExport(sampleExport(), c.format, c.path)
			if c.wantErr {
				if err == nil {
					t.Error("expected an error for unsupported format")
				}
				return
			}
			if err != nil {
				t.Fatalf("WriteExport failed: %v", err)
			}
			if path != c.path {
				t.Errorf("expected path %s, got %s", c.path, path)
			}
		})
	}
}
