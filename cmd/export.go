package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/medleyfm/medley/internal/formatter"
)

// Export writes the library of one kind to a file in the chosen format.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	kind, err := parseKind(cmd.String("kind"))
	if err != nil {
		return err
	}

	app, err := r.openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	entities := app.store.AllEntitiesOfKind(kind, cmd.Bool("favorites"))
	export := formatter.NewLibraryExport(kind, entities)

	path, err := formatter.WriteExport(export, cmd.String("format"), cmd.String("output"))
	if err != nil {
		return err
	}

	r.writePlain("✓ Exported %d %ss to %s\n", export.Count, kind, path)
	return nil
}
