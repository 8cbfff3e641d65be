package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mediacatalog/internal/common"
	"github.com/dmitrijs2005/mediacatalog/internal/dbx"
	"github.com/dmitrijs2005/mediacatalog/internal/fingerprint"
	"github.com/dmitrijs2005/mediacatalog/internal/keycodec"
	"github.com/dmitrijs2005/mediacatalog/internal/logging"
	"github.com/dmitrijs2005/mediacatalog/internal/objectstore"
	"golang.org/x/time/rate"
)

// DefaultBatchSize is the number of rows written per transaction.
const DefaultBatchSize = 10

// Options tunes a Writer. Zero values select defaults.
type Options struct {
	BatchSize int
	// CallTimeout bounds each batch transaction, object read and backfill query.
	CallTimeout time.Duration
	// BackfillInterval is the minimum spacing between backfilled rows.
	BackfillInterval time.Duration
}

// Writer is the only component that creates or changes catalog rows.
type Writer struct {
	db          *sql.DB
	repos       RepositoryFactory
	objects     objectstore.Getter
	logger      logging.Logger
	batchSize   int
	callTimeout time.Duration
	limiter     *rate.Limiter
}

// RowFailure names a row that was not written and why.
type RowFailure struct {
	TrackID string
	Err     error
}

// UpsertReport is the per-row outcome of Writer.Upsert.
type UpsertReport struct {
	Written int
	Failed  []RowFailure
}

// BackfillReport summarizes one BackfillMissingHashes pass.
type BackfillReport struct {
	Selected   int
	Updated    int
	AlreadySet int
	Mismatched int
	Failed     int
}

func NewWriter(db *sql.DB, repos RepositoryFactory, objects objectstore.Getter, logger logging.Logger, opts Options) *Writer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	limit := rate.Inf
	if opts.BackfillInterval > 0 {
		limit = rate.Every(opts.BackfillInterval)
	}
	return &Writer{
		db:          db,
		repos:       repos,
		objects:     objects,
		logger:      logger,
		batchSize:   opts.BatchSize,
		callTimeout: opts.CallTimeout,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

func (w *Writer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, w.callTimeout)
}

// Upsert writes rows in batches, one transaction per batch. A failing batch
// is rolled back and reported row by row; later batches still run.
func (w *Writer) Upsert(ctx context.Context, rows []*Row) UpsertReport {
	var report UpsertReport

	valid := make([]*Row, 0, len(rows))
	for _, row := range rows {
		if err := validateRow(row); err != nil {
			w.logger.Warn(ctx, "catalog row rejected", "track_id", row.TrackID, "reason", err.Error())
			report.Failed = append(report.Failed, RowFailure{TrackID: row.TrackID, Err: err})
			rowsWritten.WithLabelValues("rejected").Inc()
			continue
		}
		valid = append(valid, row)
	}

	for start := 0; start < len(valid); start += w.batchSize {
		batch := valid[start:min(start+w.batchSize, len(valid))]
		if err := w.writeBatch(ctx, batch); err != nil {
			w.logger.Error(ctx, "catalog batch failed", "rows", len(batch), "first_track_id", batch[0].TrackID, "reason", err.Error())
			for _, row := range batch {
				report.Failed = append(report.Failed, RowFailure{TrackID: row.TrackID, Err: err})
			}
			rowsWritten.WithLabelValues("failed").Add(float64(len(batch)))
			continue
		}
		report.Written += len(batch)
		rowsWritten.WithLabelValues("written").Add(float64(len(batch)))
	}
	return report
}

func (w *Writer) writeBatch(ctx context.Context, batch []*Row) error {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	return dbx.WithTx(ctx, w.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := w.repos(tx)
		for _, row := range batch {
			if err := repo.Upsert(ctx, row); err != nil {
				return fmt.Errorf("upsert %s: %w", row.TrackID, err)
			}
		}
		return nil
	})
}

func validateRow(row *Row) error {
	switch {
	case !keycodec.IsSlug(row.TrackID):
		return fmt.Errorf("invalid track id %q", row.TrackID)
	case row.ShortHash == "":
		return errors.New("short hash is empty")
	case row.ObjectKey == "":
		return errors.New("object key is empty")
	}
	return nil
}

// BackfillMissingHashes computes the full hash of every row that lacks one.
// Each object is re-read and its hash must extend the stored short hash;
// rows that fail are logged and left for the next pass. Repeated passes
// are safe: only NULL hashes are ever written.
func (w *Writer) BackfillMissingHashes(ctx context.Context) (BackfillReport, error) {
	var report BackfillReport

	selectCtx, cancel := w.withTimeout(ctx)
	pending, err := w.repos(w.db).SelectMissingHash(selectCtx)
	cancel()
	if err != nil {
		return report, err
	}
	report.Selected = len(pending)
	w.logger.Info(ctx, "backfill started", "rows", len(pending))

	repo := w.repos(w.db)
	for _, row := range pending {
		if err := w.limiter.Wait(ctx); err != nil {
			return report, fmt.Errorf("%w: %w", common.ErrorCanceled, err)
		}

		fp, err := w.hashObject(ctx, row.ObjectKey)
		if err != nil {
			w.logger.Warn(ctx, "backfill hash failed", "track_id", row.TrackID, "key", row.ObjectKey, "reason", err.Error())
			report.Failed++
			backfillRows.WithLabelValues("failed").Inc()
			continue
		}
		if !fp.Matches(row.ShortHash) {
			w.logger.Warn(ctx, "backfill hash mismatch", "track_id", row.TrackID, "key", row.ObjectKey,
				"short_hash", row.ShortHash, "full_hash", fp.FullHash, "reason", common.ErrorHashMismatch.Error())
			report.Mismatched++
			backfillRows.WithLabelValues("mismatch").Inc()
			continue
		}

		updateCtx, cancel := w.withTimeout(ctx)
		updated, err := repo.UpdateFullHash(updateCtx, row.ID, fp.FullHash)
		cancel()
		switch {
		case err != nil:
			w.logger.Warn(ctx, "backfill update failed", "track_id", row.TrackID, "reason", err.Error())
			report.Failed++
			backfillRows.WithLabelValues("failed").Inc()
		case !updated:
			report.AlreadySet++
			backfillRows.WithLabelValues("already_set").Inc()
		default:
			report.Updated++
			backfillRows.WithLabelValues("updated").Inc()
		}
	}

	w.logger.Info(ctx, "backfill finished", "selected", report.Selected, "updated", report.Updated,
		"already_set", report.AlreadySet, "mismatched", report.Mismatched, "failed", report.Failed)
	return report, nil
}

func (w *Writer) hashObject(ctx context.Context, key string) (fingerprint.Fingerprint, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	body, err := w.objects.Get(ctx, key)
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	defer body.Close()

	return fingerprint.FromReader(body)
}
