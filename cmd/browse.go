package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/shared"
)

// parseKind accepts singular and plural entity kind names.
func parseKind(raw string) (models.Kind, error) {
	kind := models.Kind(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "s"))
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q (want artist, album or track)", shared.ErrInvalidInput, raw)
	}
	return kind, nil
}

// Browse lists canonical entities of one kind.
func (r *Runner) Browse(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.StringArg("kind")
	if raw == "" {
		raw = "track"
	}
	kind, err := parseKind(raw)
	if err != nil {
		return err
	}

	app, err := r.openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	entities := app.store.AllEntitiesOfKind(kind, cmd.Bool("favorites"))

	if cmd.Bool("json") {
		return r.writeJSON(entities, cmd.Bool("pretty"))
	}

	if len(entities) == 0 {
		r.writePlain("No %ss in the library. Run 'medley sync' first.\n", kind)
		return nil
	}

	for i, entity := range entities {
		marker := " "
		if entity.Favorite {
			marker = "*"
		}
		line := fmt.Sprintf("%3d. %s %s", i+1, marker, entity.Name)
		if kind != models.KindArtist && entity.Artist != "" {
			line += " - " + entity.Artist
		}
		if kind == models.KindTrack && entity.Duration > 0 {
			line += fmt.Sprintf(" (%s)", shared.FormatDuration(entity.Duration))
		}
		r.writePlain("%s\n", line)
		for _, rec := range entity.Links {
			r.writePlain("       %s\n", describeSource(rec))
		}
	}
	r.writePlainln("%d %ss", len(entities), kind)
	return nil
}

func describeSource(rec models.ProviderRecord) string {
	desc := rec.ProviderID
	if rec.Quality.Format != models.FormatUnknown {
		desc += " " + string(rec.Quality.Format)
	}
	if rec.Quality.BitrateKbps > 0 {
		desc += fmt.Sprintf("@%dk", rec.Quality.BitrateKbps)
	}
	if !rec.Available {
		desc += " (unavailable)"
	}
	return desc
}

// Favorite sets or clears the favorite flag and persists the change.
func (r *Runner) Favorite(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: entity id required", shared.ErrInvalidInput)
	}

	app, err := r.openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	favorite := !cmd.Bool("remove")
	if err := app.store.MarkFavorite(id, favorite); err != nil {
		return err
	}

	entity, err := app.store.GetEntity(id)
	if err != nil {
		return err
	}
	if err := app.libRepo.Save(&entity); err != nil {
		return fmt.Errorf("failed to persist favorite: %w", err)
	}

	if favorite {
		r.writePlain("★ %s\n", entity.Name)
	} else {
		r.writePlain("☆ %s\n", entity.Name)
	}
	return nil
}
