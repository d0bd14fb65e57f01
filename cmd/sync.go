package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/medleyfm/medley/internal/models"
	"github.com/medleyfm/medley/internal/tasks"
)

// Sync runs a manual sync pass for one provider or all enabled providers.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	providerID := cmd.String("provider")

	app, err := r.openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if providerID != "" {
		result, err := app.scheduler.Sync(ctx, providerID, models.TriggerManual)
		if err != nil {
			return err
		}
		r.printPassResult(providerID, result)
		return nil
	}

	all := app.registry.All()
	if len(all) == 0 {
		r.writePlain("No providers enabled. Edit config.toml and try again.\n")
		return nil
	}

	for _, provider := range all {
		result, err := app.scheduler.Sync(ctx, provider.ID(), models.TriggerManual)
		if err != nil {
			r.writePlain("✗ %s: %v\n", provider.ID(), err)
			continue
		}
		r.printPassResult(provider.ID(), result)
	}

	stats := app.store.Stats()
	r.writePlainln("Library: %d artists, %d albums, %d tracks", stats.Artists, stats.Albums, stats.Tracks)
	return nil
}

func (r *Runner) printPassResult(providerID string, result *tasks.PassResult) {
	r.writePlain("✓ %s: %s (%d new, %d linked", providerID, result.Job.State, result.Seeded, result.Linked)
	if result.Pruned > 0 {
		r.writePlain(", %d pruned", result.Pruned)
	}
	if result.Skipped > 0 {
		r.writePlain(", %d skipped", result.Skipped)
	}
	r.writePlain(")\n")
}

// Status prints library stats and recent sync job history.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	limit := int(cmd.Int("limit"))
	useJSON := cmd.Bool("json")

	app, err := r.openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	stats := app.store.Stats()
	jobs, err := app.jobRepo.History("", limit)
	if err != nil {
		return fmt.Errorf("failed to load sync history: %w", err)
	}

	if useJSON {
		return r.writeJSON(map[string]any{"stats": stats, "jobs": jobs}, true)
	}

	r.writePlain("Library: %d artists, %d albums, %d tracks\n", stats.Artists, stats.Albums, stats.Tracks)
	if len(stats.Links) > 0 {
		r.writePlain("Sources:\n")
		for provider, count := range stats.Links {
			r.writePlain("  %s: %d links\n", provider, count)
		}
	}

	if len(jobs) == 0 {
		r.writePlainln("No sync passes recorded yet. Run 'medley sync'.")
		return nil
	}

	r.writePlainln("Recent sync passes:")
	for _, job := range jobs {
		line := fmt.Sprintf("%s  %-10s %-9s %-8s %d records",
			job.StartedAt.Format("2006-01-02 15:04:05"), job.ProviderID, job.State, job.Trigger, job.Records)
		if job.Error != "" {
			line += " (" + job.Error + ")"
		}
		r.writePlain("%s\n", line)
	}
	return nil
}
