package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/mlahtinen/trainplan/internal/catalog"
	"github.com/mlahtinen/trainplan/internal/envstruct"
	"github.com/mlahtinen/trainplan/internal/flightrecorder"
	"github.com/mlahtinen/trainplan/internal/logging"
	"github.com/mlahtinen/trainplan/internal/namegen"
	"github.com/mlahtinen/trainplan/internal/plan"
	"github.com/mlahtinen/trainplan/internal/sqlite"
)

type application struct {
	logger      *slog.Logger
	planService *plan.Service
}

type config struct {
	// Addr is the address to listen on. Use localhost:0 for a dynamic port.
	Addr string `env:"TRAINPLAN_ADDR" envDefault:"localhost:8081"`
	// SqliteURL is the URL to the SQLite database. ":memory:" gives an
	// ethereal in-memory database.
	SqliteURL string `env:"TRAINPLAN_SQLITE_URL" envDefault:"./trainplan.sqlite3"`
	// OpenAIAPIKey enables AI session naming. Empty disables it and every
	// unit gets a deterministic fallback name.
	OpenAIAPIKey string `env:"OPENAI_API_KEY" envDefault:""`
	// TracesDirectory enables slow-generation trace capture when set.
	TracesDirectory string `env:"TRAINPLAN_TRACES_DIR" envDefault:""`
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	var cfg config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return fmt.Errorf("populate config: %w", err)
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return fmt.Errorf("open db %s: %w", cfg.SqliteURL, err)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "connected to db")

	var namer plan.Namer
	if cfg.OpenAIAPIKey != "" {
		namer = namegen.New(cfg.OpenAIAPIKey, logger)
	}

	var opts []plan.Option
	if cfg.TracesDirectory != "" {
		var recorder *flightrecorder.Service
		if recorder, err = flightrecorder.New(flightrecorder.Config{
			Logger:          logger,
			MinAge:          0,
			MaxBytes:        0,
			TracesDirectory: cfg.TracesDirectory,
		}); err != nil {
			return fmt.Errorf("new flight recorder: %w", err)
		}
		if err = recorder.Start(ctx); err != nil {
			return fmt.Errorf("start flight recorder: %w", err)
		}
		defer recorder.Stop(ctx)
		opts = append(opts, plan.WithTraceCapturer(recorder))
	}

	app := application{
		logger:      logger,
		planService: plan.NewService(db, logger, catalog.New(db, logger), namer, opts...),
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr, app.routes()); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", slog.Any("error", err))
		os.Exit(1)
	}
}
