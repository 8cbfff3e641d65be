// Package app wires configuration, storage, the catalog and the ingest
// pipeline together for the command binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dmitrijs2005/mediacatalog/internal/catalog"
	"github.com/dmitrijs2005/mediacatalog/internal/config"
	"github.com/dmitrijs2005/mediacatalog/internal/filex"
	"github.com/dmitrijs2005/mediacatalog/internal/keycodec"
	"github.com/dmitrijs2005/mediacatalog/internal/logging"
	"github.com/dmitrijs2005/mediacatalog/internal/matcher"
	"github.com/dmitrijs2005/mediacatalog/internal/metadata"
	"github.com/dmitrijs2005/mediacatalog/internal/netx"
	"github.com/dmitrijs2005/mediacatalog/internal/objectstore"
	"github.com/dmitrijs2005/mediacatalog/internal/orchestrator"
	"github.com/dmitrijs2005/mediacatalog/internal/scanner"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Seams for tests.
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	runMigrations = catalog.RunMigrations
	newStore      = func(ctx context.Context, cfg objectstore.S3Config) (objectstore.Store, error) {
		return objectstore.NewS3Store(ctx, cfg)
	}
	progressInterval = 30 * time.Second
)

type App struct {
	config *config.Config
	logger logging.Logger
	out    io.Writer
	db     *sql.DB
	dest   objectstore.Store
	writer *catalog.Writer
}

// NewApp connects to the catalog database, applies migrations and opens the
// destination store. out receives the human-readable run reports.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger, out io.Writer) (*App, error) {
	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	dest, err := newStore(ctx, storeConfig(c.Destination, c.PathStyle))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("destination store error: %w", err)
	}

	writer := catalog.NewWriter(db, catalog.PostgresRepositories, dest, logger, catalog.Options{
		BatchSize:        c.BatchSize,
		CallTimeout:      c.CallTimeout,
		BackfillInterval: c.BackfillInterval,
	})

	return &App{config: c, logger: logger, out: out, db: db, dest: dest, writer: writer}, nil
}

func storeConfig(s config.StoreConfig, pathStyle bool) objectstore.S3Config {
	return objectstore.S3Config{
		Endpoint:  s.Endpoint,
		Region:    s.Region,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		Bucket:    s.Bucket,
		PathStyle: pathStyle,
	}
}

// Close releases the database pool.
func (app *App) Close() error {
	return app.db.Close()
}

// initSignalHandler cancels the run on SIGINT, SIGTERM or SIGQUIT.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			app.logger.Warn(ctx, "signal received, stopping", "signal", sig.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startMetrics(ctx context.Context) {
	if app.config.MetricsAddr == "" {
		return
	}
	go func() {
		if err := netx.ListenAndServe(ctx, app.config.MetricsAddr, netx.MetricsHandler()); err != nil {
			app.logger.Error(ctx, "metrics listener failed", "addr", app.config.MetricsAddr, "reason", err.Error())
		}
	}()
}

// RunIngest scans the source store, matches every object against the
// metadata spreadsheet and drives it through the pipeline.
func (app *App) RunIngest(ctx context.Context) (orchestrator.Summary, error) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting ingest...")
	app.initSignalHandler(ctx, cancelFunc)
	app.startMetrics(ctx)

	candidates, err := metadata.LoadCSVFile(app.config.MetadataCSV)
	if err != nil {
		return orchestrator.Summary{}, fmt.Errorf("metadata: %w", err)
	}
	m := matcher.New(candidates, app.config.MatchThreshold)
	app.logger.Info(ctx, "metadata loaded", "candidates", len(candidates), "threshold", m.Threshold())

	source, err := newStore(ctx, storeConfig(app.config.Source, app.config.PathStyle))
	if err != nil {
		return orchestrator.Summary{}, fmt.Errorf("source store error: %w", err)
	}

	objects, err := scanner.New(source, app.config.SourcePrefix, app.config.Extensions).Collect(ctx)
	if err != nil {
		return orchestrator.Summary{}, err
	}

	workDir, err := filex.EnsureWorkDir(app.config.WorkDir)
	if err != nil {
		return orchestrator.Summary{}, err
	}

	orch := orchestrator.New(orchestrator.Config{
		Workers:       app.config.Workers,
		TestMode:      app.config.TestMode,
		TestModeLimit: app.config.TestModeLimit,
		WorkDir:       workDir,
		CallTimeout:   app.config.CallTimeout,
	}, source, app.dest, m, app.writer, app.logger)

	stopProgress := app.reportProgress(ctx, orch, len(objects))
	summary, err := orch.Run(ctx, objects)
	stopProgress()
	if err != nil {
		return summary, err
	}

	for _, hit := range m.Hits() {
		if hit.Count > 1 {
			app.logger.Info(ctx, "metadata row matched by several objects", "title", hit.Title, "objects", hit.Count)
		}
	}

	fmt.Fprint(app.out, summary.String())
	return summary, nil
}

func (app *App) reportProgress(ctx context.Context, orch *orchestrator.Orchestrator, total int) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				ok, failed := orch.Progress()
				app.logger.Info(ctx, "ingest progress", "succeeded", ok, "failed", failed, "objects", total)
			}
		}
	}()
	return func() { close(done) }
}

// RunBackfill fills in full hashes missing from the catalog.
func (app *App) RunBackfill(ctx context.Context) (catalog.BackfillReport, error) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting backfill...")
	app.initSignalHandler(ctx, cancelFunc)
	app.startMetrics(ctx)

	report, err := app.writer.BackfillMissingHashes(ctx)
	fmt.Fprintf(app.out, "selected: %d, updated: %d, already set: %d, mismatched: %d, failed: %d\n",
		report.Selected, report.Updated, report.AlreadySet, report.Mismatched, report.Failed)
	return report, err
}

// RunUpload stores the local file at path as an upload owned by userID and
// returns its key.
func (app *App) RunUpload(ctx context.Context, userID, title, path string) (string, error) {
	if userID == "" || strings.ContainsAny(userID, "/\\") {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", errors.New("file has no extension")
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", err
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	key := keycodec.NewUserUploadKey(userID, title, ext)

	callCtx, cancel := context.WithTimeout(ctx, app.config.CallTimeout)
	defer cancel()
	if err := app.dest.Put(callCtx, key, f, fi.Size(), orchestrator.ContentType(ext)); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	app.logger.Info(ctx, "upload stored", "user_id", userID, "key", key, "size", fi.Size())
	fmt.Fprintln(app.out, key)
	return key, nil
}
