package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"carbonstream/internal/alerting"
	"carbonstream/internal/config"
	"carbonstream/internal/fetcher"
	"carbonstream/internal/pipeline"
	"carbonstream/internal/retry"
	"carbonstream/internal/scheduler"
	"carbonstream/internal/storage"
	"carbonstream/internal/validator"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newClient() *fetcher.Client {
	return fetcher.NewClient(fetcher.Options{
		BaseURL:   a.Config.Source.BaseURL,
		Timeout:   a.Config.Source.RequestTimeout,
		UserAgent: a.Config.Source.UserAgent,
		Retry: retry.Policy{
			MaxAttempts: a.Config.Retry.MaxAttempts,
			BaseDelay:   a.Config.Retry.BaseDelay,
		},
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

// openStore connects the pool and ensures the schema exists. An unreachable
// store here is the one condition that exits non-zero: without it not even
// a failure outcome can be recorded.
func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	store := storage.NewStore(pool)
	if err := store.InitSchema(ctx); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("init schema: %w", err)
	}

	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newPipeline(store *storage.Store) *pipeline.Pipeline {
	client := a.newClient()
	return pipeline.New(pipeline.Options{
		Intensity:     client,
		Generation:    client,
		Validator:     validator.New(a.Config.Validation.MaxSampleAge, a.Logger),
		Store:         store,
		Runs:          store,
		Notifier:      a.newNotifier(),
		ThresholdGCO2: a.Config.Alerting.ThresholdGCO2,
	}, a.Logger)
}

// Run executes the pipeline once. The run result lives in the recorded
// outcome; only startup failures propagate as errors.
func (a *App) Run(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	a.newPipeline(store).Execute(ctx)
	return nil
}

// Watch executes the pipeline on the configured interval until interrupted.
func (a *App) Watch(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	p := a.newPipeline(store)

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting watch loop")
	err = sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		p.Execute(ctx)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch loop terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch loop stopped")
	return nil
}

// Migrate ensures the schema exists and does nothing else.
func (a *App) Migrate(ctx context.Context) error {
	_, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	a.Logger.Info().Msg("schema is up to date")
	return nil
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
	Runs  bool
}
