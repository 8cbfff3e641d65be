package app

import (
	"bytes"
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/mediacatalog/internal/common"
	"github.com/dmitrijs2005/mediacatalog/internal/config"
	"github.com/dmitrijs2005/mediacatalog/internal/logging"
	"github.com/dmitrijs2005/mediacatalog/internal/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	if s, ok := v.([]string); ok {
		return s, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

type storedObject struct {
	body        []byte
	contentType string
}

type memStore struct {
	mu      sync.Mutex
	objects map[string]storedObject
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]storedObject{}}
}

func (m *memStore) add(key string, body []byte) {
	m.objects[key] = storedObject{body: body}
}

func (m *memStore) ListPage(_ context.Context, prefix, token string) (objectstore.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var page objectstore.Page
	for k, o := range m.objects {
		if strings.HasPrefix(k, prefix) {
			page.Objects = append(page.Objects, objectstore.StorageObject{Key: k, SizeBytes: int64(len(o.body))})
		}
	}
	sort.Slice(page.Objects, func(i, j int) bool { return page.Objects[i].Key < page.Objects[j].Key })
	return page, nil
}

func (m *memStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return io.NopCloser(bytes.NewReader(o.body)), nil
}

func (m *memStore) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = storedObject{body: b, contentType: contentType}
	return nil
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type harness struct {
	cfg    *config.Config
	mock   sqlmock.Sqlmock
	source *memStore
	dest   *memStore
	out    *bytes.Buffer
}

func setup(t *testing.T) *harness {
	t.Helper()

	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.ValueConverterOption(arrayConverter{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h := &harness{mock: mock, source: newMemStore(), dest: newMemStore(), out: &bytes.Buffer{}}

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Source.Bucket = "src"
	cfg.Destination.Bucket = "dst"
	cfg.Workers = 1
	cfg.WorkDir = t.TempDir()
	cfg.BackfillInterval = 0
	h.cfg = cfg

	origOpen, origMigrate, origStore := openDB, runMigrations, newStore
	t.Cleanup(func() { openDB, runMigrations, newStore = origOpen, origMigrate, origStore })

	openDB = func(string) (*sql.DB, error) { return db, nil }
	runMigrations = func(context.Context, *sql.DB) error { return nil }
	newStore = func(_ context.Context, c objectstore.S3Config) (objectstore.Store, error) {
		switch c.Bucket {
		case "src":
			return h.source, nil
		case "dst":
			return h.dest, nil
		}
		return nil, errors.New("unknown bucket " + c.Bucket)
	}
	return h
}

func (h *harness) newApp(t *testing.T) *App {
	t.Helper()
	a, err := NewApp(context.Background(), h.cfg, logging.Discard(), h.out)
	require.NoError(t, err)
	return a
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewApp_MigrationError(t *testing.T) {
	h := setup(t)
	runMigrations = func(context.Context, *sql.DB) error { return errors.New("bad migration") }

	_, err := NewApp(context.Background(), h.cfg, logging.Discard(), h.out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations error: bad migration")
}

func TestNewApp_OpenError(t *testing.T) {
	h := setup(t)
	openDB = func(string) (*sql.DB, error) { return nil, errors.New("bad dsn") }

	_, err := NewApp(context.Background(), h.cfg, logging.Discard(), h.out)
	require.ErrorContains(t, err, "db init error")
}

func TestNewApp_DestinationStoreError(t *testing.T) {
	h := setup(t)
	h.cfg.Destination.Bucket = "missing"

	_, err := NewApp(context.Background(), h.cfg, logging.Discard(), h.out)
	require.ErrorContains(t, err, "destination store error")
}

func TestRunIngest_EndToEnd(t *testing.T) {
	h := setup(t)
	h.cfg.MetadataCSV = writeCSV(t, "title,genres,tags\nMidnight Drive,synthwave,\"night, drive\"\n")
	h.source.add("legacy/midnight-drive-0a1b2c3d.mp3", []byte("drive audio"))
	h.source.add("legacy/lost-tape-9f8e7d6c.wav", []byte("tape audio"))
	h.source.add("legacy/readme.txt", []byte("not media"))
	h.source.add("legacy/broken.mp3", []byte("no hash in key"))

	insert := `(?s)^INSERT\s+INTO\s+tracks\b`
	h.mock.ExpectBegin()
	h.mock.ExpectExec(insert).
		WithArgs("lost-tape", "Lost Tape", []string{"unknown"}, []string{}, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), int64(len("tape audio")), "audio/wav", true, false, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()
	h.mock.ExpectBegin()
	h.mock.ExpectExec(insert).
		WithArgs("midnight-drive", "Midnight Drive", []string{"synthwave"}, []string{"night", "drive"}, sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), int64(len("drive audio")), "audio/mpeg", true, false, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectCommit()

	a := h.newApp(t)
	summary, err := a.RunIngest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, []string{"legacy/broken.mp3"}, summary.Skipped)
	assert.Equal(t, []string{"lost-tape"}, summary.Unmatched)
	assert.Contains(t, h.out.String(), "succeeded: 2, failed: 0, total: 2")
	require.NoError(t, h.mock.ExpectationsWereMet())

	keys := h.dest.keys()
	require.Len(t, keys, 2)
	for _, k := range keys {
		assert.True(t, strings.HasPrefix(k, "library/originals/"), k)
	}

	entries, err := os.ReadDir(h.cfg.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunIngest_MissingMetadata(t *testing.T) {
	h := setup(t)
	h.cfg.MetadataCSV = filepath.Join(t.TempDir(), "absent.csv")

	a := h.newApp(t)
	_, err := a.RunIngest(context.Background())
	require.ErrorContains(t, err, "metadata")
}

func TestRunBackfill_NothingMissing(t *testing.T) {
	h := setup(t)
	h.mock.ExpectQuery(`(?s)^SELECT\s+id,\s*track_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "track_id", "object_key", "short_hash"}))

	a := h.newApp(t)
	report, err := a.RunBackfill(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Selected)
	assert.Contains(t, h.out.String(), "selected: 0, updated: 0")
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRunUpload(t *testing.T) {
	h := setup(t)
	path := filepath.Join(t.TempDir(), "Demo Take.mp3")
	require.NoError(t, os.WriteFile(path, []byte("demo"), 0o600))

	a := h.newApp(t)
	key, err := a.RunUpload(context.Background(), "42", "", path)
	require.NoError(t, err)

	assert.Regexp(t, `^users/42/uploads/[0-9a-f-]{36}-demo-take\.mp3$`, key)
	stored, ok := h.dest.objects[key]
	require.True(t, ok)
	assert.Equal(t, []byte("demo"), stored.body)
	assert.Equal(t, "audio/mpeg", stored.contentType)
	assert.Equal(t, key+"\n", h.out.String())
}

func TestRunUpload_Rejects(t *testing.T) {
	h := setup(t)
	a := h.newApp(t)

	_, err := a.RunUpload(context.Background(), "../etc", "t", "x.mp3")
	require.ErrorContains(t, err, "invalid user id")

	_, err = a.RunUpload(context.Background(), "7", "t", "noext")
	require.ErrorContains(t, err, "no extension")

	_, err = a.RunUpload(context.Background(), "7", "t", filepath.Join(t.TempDir(), "missing.mp3"))
	require.Error(t, err)
}
