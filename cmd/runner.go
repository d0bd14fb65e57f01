package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/medleyfm/medley/internal/events"
	"github.com/medleyfm/medley/internal/library"
	"github.com/medleyfm/medley/internal/providers"
	"github.com/medleyfm/medley/internal/providers/filesystem"
	"github.com/medleyfm/medley/internal/providers/radio"
	"github.com/medleyfm/medley/internal/providers/spotify"
	"github.com/medleyfm/medley/internal/repositories"
	"github.com/medleyfm/medley/internal/resolver"
	"github.com/medleyfm/medley/internal/selector"
	"github.com/medleyfm/medley/internal/shared"
	"github.com/medleyfm/medley/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer

	// registry override for tests; built from config when nil
	registry *providers.Registry
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config   *shared.Config
	Logger   *log.Logger
	Output   io.Writer
	Registry *providers.Registry
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:   opts.Config,
		logger:   opts.Logger,
		output:   opts.Output,
		registry: opts.Registry,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, syncCommand, statusCommand, browseCommand,
		favoriteCommand, playCommand, exportCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// app bundles the wired engine components a command needs.
type app struct {
	db        *sql.DB
	store     *library.Store
	registry  *providers.Registry
	bus       *events.Bus
	engine    *tasks.Engine
	scheduler *tasks.Scheduler
	selector  *selector.Selector
	libRepo   *repositories.LibraryRepository
	jobRepo   *repositories.SyncJobRepository
}

func (a *app) Close() {
	if a.bus != nil {
		a.bus.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// openApp opens the database, loads the persisted library into the
// in-memory store and wires providers, engine, scheduler and selector.
func (r *Runner) openApp() (*app, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	libRepo := repositories.NewLibraryRepository(db)
	jobRepo := repositories.NewSyncJobRepository(db)

	store := library.NewStore()
	entities, err := libRepo.LoadAll()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load library: %w", err)
	}
	for _, entity := range entities {
		if err := store.Upsert(*entity); err != nil {
			r.logger.Warn("skipping bad persisted entity", "id", entity.ID, "error", err)
		}
	}

	registry := r.registry
	if registry == nil {
		registry, err = r.buildRegistry()
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	engineConfig := tasks.EngineConfig{
		CallTimeout:   r.config.CallTimeout(),
		RetryAttempts: r.config.RetryAttempts(),
		Resolver: resolver.Config{
			DurationTolerance: r.config.DurationTolerance(),
			FuzzyThreshold:    r.config.FuzzyThreshold(),
		},
	}

	bus := events.NewBus()
	engine := tasks.NewEngine(store, registry, engineConfig, libRepo, jobRepo, bus, r.logger)
	scheduler := tasks.NewScheduler(engine, registry, r.config.SyncInterval(), r.logger)
	sel := selector.New(registry, r.config.Playback.ProviderOrder, r.logger)

	return &app{
		db:        db,
		store:     store,
		registry:  registry,
		bus:       bus,
		engine:    engine,
		scheduler: scheduler,
		selector:  sel,
		libRepo:   libRepo,
		jobRepo:   jobRepo,
	}, nil
}

// buildRegistry registers every provider the config enables.
func (r *Runner) buildRegistry() (*providers.Registry, error) {
	registry := providers.NewRegistry()
	cfg := r.config.Providers

	if cfg.Filesystem.Enabled {
		fs, err := filesystem.New(cfg.Filesystem.Roots)
		if err != nil {
			return nil, fmt.Errorf("failed to configure filesystem provider: %w", err)
		}
		if err := registry.Register(fs); err != nil {
			return nil, err
		}
	}

	if cfg.Spotify.Enabled {
		sp, err := spotify.New(spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RedirectURI:  cfg.Spotify.RedirectURI,
			TokenPath:    cfg.Spotify.TokenPath,
			RateLimit:    cfg.Spotify.RateLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure spotify provider: %w", err)
		}
		if err := registry.Register(sp); err != nil {
			return nil, err
		}
	}

	if cfg.Radio.Enabled {
		rd := radio.New(radio.Config{
			DirectoryURL: cfg.Radio.DirectoryURL,
			Tags:         cfg.Radio.Tags,
			Limit:        cfg.Radio.Limit,
		})
		if err := registry.Register(rd); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
