// Package orchestrator drives scanned objects through the ingest pipeline:
// fetch, hash, place in the library, commit to the catalog.
//
// Objects are independent. Up to Config.Workers of them are in flight at
// once and a failure in one never reaches the others; it is logged with its
// stage and counted in the Summary.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/mediacatalog/internal/catalog"
	"github.com/dmitrijs2005/mediacatalog/internal/common"
	"github.com/dmitrijs2005/mediacatalog/internal/fingerprint"
	"github.com/dmitrijs2005/mediacatalog/internal/keycodec"
	"github.com/dmitrijs2005/mediacatalog/internal/logging"
	"github.com/dmitrijs2005/mediacatalog/internal/matcher"
	"github.com/dmitrijs2005/mediacatalog/internal/metadata"
	"github.com/dmitrijs2005/mediacatalog/internal/objectstore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	DefaultWorkers       = 4
	DefaultTestModeLimit = 3
	DefaultCallTimeout   = 2 * time.Minute
)

// Config tunes a run. Zero values select defaults.
type Config struct {
	Workers int

	// TestMode caps the run to the first TestModeLimit objects.
	TestMode      bool
	TestModeLimit int

	// WorkDir is where the per-run temporary directory is created;
	// empty means os.TempDir().
	WorkDir string

	// CallTimeout bounds each fetch, put and catalog write.
	CallTimeout time.Duration
}

// Matcher picks metadata for an object.
type Matcher interface {
	Match(obj objectstore.StorageObject, name string) (matcher.Result, bool)
}

// CatalogWriter persists catalog rows. Each object commits its own row, so a
// failed row never rolls back the rows of other objects.
type CatalogWriter interface {
	Upsert(ctx context.Context, rows []*catalog.Row) catalog.UpsertReport
}

type Orchestrator struct {
	cfg     Config
	source  objectstore.Getter
	dest    objectstore.Putter
	matcher Matcher
	catalog CatalogWriter
	logger  logging.Logger

	succeeded atomic.Int64
	failed    atomic.Int64
}

func New(cfg Config, source objectstore.Getter, dest objectstore.Putter, m Matcher, w CatalogWriter, logger logging.Logger) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.TestModeLimit < 1 {
		cfg.TestModeLimit = DefaultTestModeLimit
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Orchestrator{
		cfg:     cfg,
		source:  source,
		dest:    dest,
		matcher: m,
		catalog: w,
		logger:  logger,
	}
}

// Progress returns live counts of objects that reached a terminal state.
// It may be called while Run is in progress.
func (o *Orchestrator) Progress() (succeeded, failed int64) {
	return o.succeeded.Load(), o.failed.Load()
}

// Run processes objects and returns the run summary. Only a failure to set
// up the run itself is returned as an error.
//
// Canceling ctx stops new objects from starting; they are recorded as
// failed@fetched. An object already in flight completes its current call,
// then stops before the next stage. Temporary files are removed on every path.
func (o *Orchestrator) Run(ctx context.Context, objects []objectstore.StorageObject) (Summary, error) {
	if o.cfg.TestMode && len(objects) > o.cfg.TestModeLimit {
		o.logger.Info(ctx, "test mode: capping object list", "limit", o.cfg.TestModeLimit, "available", len(objects))
		objects = objects[:o.cfg.TestModeLimit]
	}

	runDir, err := os.MkdirTemp(o.cfg.WorkDir, "ingest-")
	if err != nil {
		return Summary{}, fmt.Errorf("create work dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			o.logger.Warn(ctx, "failed to remove work dir", "dir", runDir, "reason", err.Error())
		}
	}()

	o.logger.Info(ctx, "ingest started", "objects", len(objects), "workers", o.cfg.Workers)

	results := make(chan *Record)
	var summary Summary
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for rec := range results {
			summary.add(rec)
		}
	}()

	// a plain Group: one object's failure must not cancel its siblings
	var g errgroup.Group
	g.SetLimit(o.cfg.Workers)
	for _, obj := range objects {
		if ctx.Err() != nil {
			results <- o.fail(ctx, &Record{Object: obj, Stage: StagePending}, StageFetched, canceled(ctx))
			continue
		}
		g.Go(func() error {
			results <- o.process(ctx, runDir, obj)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-collected

	summary.sort()
	o.logger.Info(ctx, "ingest finished", "succeeded", summary.Succeeded, "failed", summary.Failed,
		"total", summary.Total, "skipped", len(summary.Skipped), "unmatched", len(summary.Unmatched))
	return summary, nil
}

func canceled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", common.ErrorCanceled, context.Cause(ctx))
}

// callContext detaches a network call from run cancellation so that an
// in-flight call completes; only the per-call timeout bounds it.
func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.cfg.CallTimeout)
}

func (o *Orchestrator) process(ctx context.Context, runDir string, obj objectstore.StorageObject) *Record {
	inFlight.Inc()
	defer inFlight.Dec()
	start := time.Now()
	defer func() { objectDuration.Observe(time.Since(start).Seconds()) }()

	rec := &Record{Object: obj, Stage: StagePending}
	log := o.logger.With("key", obj.Key)

	parsed, err := keycodec.Decode(obj.Key)
	if err != nil {
		rec.Skipped = true
		log.Warn(ctx, "skipping object", "stage", string(StagePending), "reason", err.Error())
		objectsTotal.WithLabelValues("skipped").Inc()
		return rec
	}
	rec.TrackID = parsed.CatalogTrackID()
	if !keycodec.IsSlug(rec.TrackID) {
		return o.fail(ctx, rec, StagePending, fmt.Errorf("catalog track id %q is longer than %d characters", rec.TrackID, keycodec.MaxSlugLen))
	}

	match, ok := o.matcher.Match(obj, parsed.TrackID)
	if !ok {
		rec.Unmatched = true
		log.Info(ctx, "no metadata match, using default", "track_id", rec.TrackID, "best_score", match.Score)
	}

	if ctx.Err() != nil {
		return o.fail(ctx, rec, StageFetched, canceled(ctx))
	}

	tmp, err := os.CreateTemp(runDir, "object-*")
	if err != nil {
		return o.fail(ctx, rec, StageFetched, err)
	}
	defer func() {
		_ = tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn(ctx, "failed to remove temp file", "path", tmp.Name(), "reason", err.Error())
		}
	}()

	size, err := o.fetch(ctx, obj.Key, tmp)
	if err != nil {
		return o.fail(ctx, rec, StageFetched, err)
	}
	rec.Stage = StageFetched

	if ctx.Err() != nil {
		return o.fail(ctx, rec, StageHashed, canceled(ctx))
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return o.fail(ctx, rec, StageHashed, err)
	}
	fp, err := fingerprint.FromReader(tmp)
	if err != nil {
		return o.fail(ctx, rec, StageHashed, err)
	}
	rec.Stage = StageHashed

	if ctx.Err() != nil {
		return o.fail(ctx, rec, StagePlaced, canceled(ctx))
	}
	destKey := keycodec.EncodeLibraryKey(rec.TrackID, fp.ShortHash, parsed.Extension)
	if err := o.place(ctx, destKey, tmp, size, ContentType(parsed.Extension)); err != nil {
		return o.fail(ctx, rec, StagePlaced, err)
	}
	rec.Stage = StagePlaced
	rec.Bytes = size

	if ctx.Err() != nil {
		return o.fail(ctx, rec, StageCommitted, canceled(ctx))
	}
	row := buildRow(parsed, rec.TrackID, match.Candidate, destKey, fp, size)
	if err := o.commit(ctx, row); err != nil {
		return o.fail(ctx, rec, StageCommitted, err)
	}
	rec.Stage = StageCommitted

	o.succeeded.Add(1)
	objectsTotal.WithLabelValues(string(StageCommitted)).Inc()
	bytesPlacedTotal.Add(float64(size))
	log.Debug(ctx, "object committed", "track_id", rec.TrackID, "dest_key", destKey, "size", size)
	return rec
}

func (o *Orchestrator) fail(ctx context.Context, rec *Record, stage Stage, err error) *Record {
	rec.Err = &StageError{Stage: stage, Key: rec.Object.Key, Err: err}
	o.failed.Add(1)
	objectsTotal.WithLabelValues("failed@" + string(stage)).Inc()
	o.logger.Warn(ctx, "object failed", "key", rec.Object.Key, "stage", string(stage), "reason", err.Error())
	return rec
}

func (o *Orchestrator) fetch(ctx context.Context, key string, dst io.Writer) (int64, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	body, err := o.source.Get(callCtx, key)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.Copy(dst, body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", key, err)
	}
	return n, nil
}

func (o *Orchestrator) place(ctx context.Context, key string, f *os.File, size int64, contentType string) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	return o.dest.Put(callCtx, key, f, size, contentType)
}

func (o *Orchestrator) commit(ctx context.Context, row *catalog.Row) error {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	report := o.catalog.Upsert(callCtx, []*catalog.Row{row})
	if len(report.Failed) > 0 {
		return report.Failed[0].Err
	}
	return nil
}

func buildRow(parsed *keycodec.ParsedKey, trackID string, c metadata.Candidate, destKey string, fp fingerprint.Fingerprint, size int64) *catalog.Row {
	full := fp.FullHash
	return &catalog.Row{
		TrackID:      trackID,
		DisplayName:  DisplayName(parsed, c),
		Genres:       c.Genres,
		Tags:         c.Tags,
		ObjectKey:    destKey,
		ShortHash:    fp.ShortHash,
		FullHash:     &full,
		SizeBytes:    size,
		ContentType:  ContentType(parsed.Extension),
		IsActive:     true,
		IsProOnly:    c.ProOnly,
		RotationWeek: c.RotationWeek,
	}
}

// DisplayName is the candidate's title, or the title-cased track id when the
// candidate has none. Versions after the first get a " (Version n)" suffix.
func DisplayName(parsed *keycodec.ParsedKey, c metadata.Candidate) string {
	name := strings.TrimSpace(c.Title)
	if name == "" {
		name = cases.Title(language.English).String(strings.ReplaceAll(parsed.TrackID, "-", " "))
	}
	if parsed.Version > 1 {
		name = fmt.Sprintf("%s (Version %d)", name, parsed.Version)
	}
	return name
}
