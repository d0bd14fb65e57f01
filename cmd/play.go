package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/shared"
)

// Play resolves the best playable stream for a track, found by id or by a
// case-insensitive name match.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: track id or name required", shared.ErrInvalidInput)
	}

	app, err := r.openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	entity, err := findTrack(app, query)
	if err != nil {
		return err
	}

	selection, err := app.selector.Select(ctx, &entity)
	if err != nil {
		return fmt.Errorf("cannot play %q: %w", entity.Name, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"entity": entity,
			"source": selection.Record,
			"stream": selection.Handle,
		}, true)
	}

	r.writePlain("▶ %s", entity.Name)
	if entity.Artist != "" {
		r.writePlain(" - %s", entity.Artist)
	}
	r.writePlain("\n")
	r.writePlain("  source: %s\n", describeSource(selection.Record))
	r.writePlain("  stream: %s\n", selection.Handle.URL)
	if selection.Handle.MimeType != "" {
		r.writePlain("  type:   %s\n", selection.Handle.MimeType)
	}
	if !selection.Handle.ExpiresAt.IsZero() {
		r.writePlain("  expires: %s\n", selection.Handle.ExpiresAt.Format("15:04:05"))
	}
	return nil
}

// findTrack tries an exact id first, then an exact case-insensitive name,
// then a unique substring match among tracks.
func findTrack(app *app, query string) (models.CanonicalEntity, error) {
	if entity, err := app.store.GetEntity(query); err == nil {
		if entity.Kind != models.KindTrack {
			return models.CanonicalEntity{}, fmt.Errorf("%w: %q is a %s, not a track", shared.ErrInvalidInput, entity.Name, entity.Kind)
		}
		return entity, nil
	}

	tracks := app.store.AllEntitiesOfKind(models.KindTrack, false)
	lower := strings.ToLower(query)

	for _, entity := range tracks {
		if strings.ToLower(entity.Name) == lower {
			return entity, nil
		}
	}

	var matches []models.CanonicalEntity
	for _, entity := range tracks {
		if strings.Contains(strings.ToLower(entity.Name), lower) {
			matches = append(matches, entity)
		}
	}
	switch len(matches) {
	case 0:
		return models.CanonicalEntity{}, fmt.Errorf("%w: no track matching %q", shared.ErrEntityNotFound, query)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Name)
		}
		return models.CanonicalEntity{}, fmt.Errorf("%w: %q matches %d tracks (%s)",
			shared.ErrInvalidInput, query, len(matches), strings.Join(names, ", "))
	}
}
