// Package server initializes and runs the backend core: it opens the
// database, applies migrations, wires the directory and catalog services over
// the configured chunk backend, and runs the orphan-chunk sweep until the
// process is signalled to stop. The transport layer (HTTP routing,
// authentication, request parsing) lives outside this module and consumes the
// services exposed here.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/avbaranovs/schoolcast/internal/logging"
	"github.com/avbaranovs/schoolcast/internal/server/chunkstore"
	"github.com/avbaranovs/schoolcast/internal/server/config"
	"github.com/avbaranovs/schoolcast/internal/server/licenses"
	"github.com/avbaranovs/schoolcast/internal/server/models"
	"github.com/avbaranovs/schoolcast/internal/server/repositories/chunks"
	"github.com/avbaranovs/schoolcast/internal/server/repositories/repomanager"
	"github.com/avbaranovs/schoolcast/internal/server/services"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	directory *services.Directory
	catalog   *services.Catalog
	sweeper   *services.Sweeper
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	chunkRepo, err := newChunkRepository(ctx, c, db)
	if err != nil {
		return nil, err
	}
	store := chunkstore.New(chunkRepo, c.ChunkSizeBytes, c.MaxUploadBytes)

	registry := licenses.New(c.LicenseLimits, validKeysByType(c.ValidLicenseKeys))

	directory := services.NewDirectory(db, rm, registry, c.SchoolNames, logger)
	catalog := services.NewCatalog(db, rm, store, directory, logger)
	directory.SetVideoPurger(catalog)

	sweeper := services.NewSweeper(store, catalog, c.SweepInterval, c.SweepGrace, logger)

	return &App{
		config:    c,
		logger:    logger,
		db:        db,
		directory: directory,
		catalog:   catalog,
		sweeper:   sweeper,
	}, nil
}

func newChunkRepository(ctx context.Context, c *config.Config, db *sql.DB) (chunks.Repository, error) {
	switch c.ChunkBackend {
	case "s3":
		return chunks.NewS3Repository(ctx, chunks.S3Config{
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	case "postgres", "":
		return chunks.NewPostgresRepository(db), nil
	default:
		return nil, fmt.Errorf("unknown chunk backend: %q", c.ChunkBackend)
	}
}

func validKeysByType(m map[string][]string) map[models.AccountType][]string {
	out := make(map[models.AccountType][]string, len(m))
	for accountType, keys := range m {
		out[models.AccountType(accountType)] = keys
	}
	return out
}

// Directory exposes the account provisioning service to the transport layer.
func (app *App) Directory() *services.Directory {
	return app.directory
}

// Catalog exposes the media catalog service to the transport layer.
func (app *App) Catalog() *services.Catalog {
	return app.catalog
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run starts the background sweep and blocks until the context is cancelled
// or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
