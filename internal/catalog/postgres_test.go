package catalog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// arrayConverter lets text[] arguments reach the mock unchanged, the way the
// pgx driver accepts them.
type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	if s, ok := v.([]string); ok {
		return s, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.ValueConverterOption(arrayConverter{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

const (
	upsertQuery = `(?s)^INSERT\s+INTO\s+tracks\b.*ON\s+CONFLICT\s*\(track_id\)\s*DO\s+UPDATE\s+SET\b.*full_hash\s*=\s*COALESCE\(EXCLUDED\.full_hash,\s*tracks\.full_hash\).*;?$`
	selectQuery = `(?s)^SELECT\s+id,\s*track_id,\s*object_key,\s*short_hash\s+FROM\s+tracks\s+WHERE\s+full_hash\s+IS\s+NULL\s+ORDER\s+BY\s+track_id$`
	updateQuery = `^UPDATE\s+tracks\s+SET\s+full_hash\s*=\s*\$2,.*WHERE\s+id\s*=\s*\$1\s+AND\s+full_hash\s+IS\s+NULL$`
)

func sampleRow() *Row {
	week := 3
	return &Row{
		TrackID:      "midnight-drive",
		DisplayName:  "Midnight Drive",
		Genres:       []string{"synthwave"},
		Tags:         []string{"night", "drive"},
		ObjectKey:    "library/originals/midnight-drive-abcdef0123.mp3",
		ShortHash:    "abcdef0123",
		SizeBytes:    1024,
		ContentType:  "audio/mpeg",
		IsActive:     true,
		RotationWeek: &week,
	}
}

func TestUpsert_Success(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec(upsertQuery).
		WithArgs("midnight-drive", "Midnight Drive", []string{"synthwave"}, []string{"night", "drive"},
			"library/originals/midnight-drive-abcdef0123.mp3", "abcdef0123", nil,
			int64(1024), "audio/mpeg", true, false, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), sampleRow()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_PassesFullHashWhenKnown(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	row := sampleRow()
	full := "abcdef0123" + "456789abcdef0123456789abcdef0123456789abcdef0123456789"
	row.FullHash = &full
	row.RotationWeek = nil

	mock.ExpectExec(upsertQuery).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), full, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), row))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec(upsertQuery).WillReturnError(errors.New("db down"))

	err := repo.Upsert(context.Background(), sampleRow())
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestUpsert_UnexpectedRowsAffected(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec(upsertQuery).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Upsert(context.Background(), sampleRow())
	require.EqualError(t, err, "unexpected rows affected: 0")
}

func TestUpsert_RowsAffectedErr(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec(upsertQuery).WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))

	err := repo.Upsert(context.Background(), sampleRow())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected error: rows-err")
}

func TestSelectMissingHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(selectQuery).WillReturnRows(
		sqlmock.NewRows([]string{"id", "track_id", "object_key", "short_hash"}).
			AddRow("id-1", "alpha", "library/originals/alpha-aaaaaaaaaa.mp3", "aaaaaaaaaa").
			AddRow("id-2", "beta", "library/originals/beta-bbbbbbbbbb.wav", "bbbbbbbbbb"),
	)

	got, err := repo.SelectMissingHash(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, &MissingHash{ID: "id-1", TrackID: "alpha", ObjectKey: "library/originals/alpha-aaaaaaaaaa.mp3", ShortHash: "aaaaaaaaaa"}, got[0])
	assert.Equal(t, "beta", got[1].TrackID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectMissingHash_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(selectQuery).WillReturnError(errors.New("boom"))

	_, err := repo.SelectMissingHash(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to select tracks")
}

func TestSelectMissingHash_RowError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(selectQuery).WillReturnRows(
		sqlmock.NewRows([]string{"id", "track_id", "object_key", "short_hash"}).
			AddRow("id-1", "alpha", "k", "aaaaaaaaaa").
			RowError(0, errors.New("row broken")),
	)

	_, err := repo.SelectMissingHash(context.Background())
	require.EqualError(t, err, "row broken")
}

func TestUpdateFullHash(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
		wantErr  bool
	}{
		{name: "updated", affected: 1, want: true},
		{name: "already set", affected: 0, want: false},
		{name: "too many", affected: 2, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewPostgresRepository(db)

			mock.ExpectExec(updateQuery).WithArgs("id-1", "cafe").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.UpdateFullHash(context.Background(), "id-1", "cafe")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpdateFullHash_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec(updateQuery).WillReturnError(errors.New("down"))

	_, err := repo.UpdateFullHash(context.Background(), "id-1", "cafe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update full hash")
}

func TestPostgresRepositories_ReturnsRepository(t *testing.T) {
	db, _ := newMockDB(t)
	var repo Repository = PostgresRepositories(db)
	assert.NotNil(t, repo)
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newMockDB(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, RunMigrations(context.Background(), db))
	assert.Equal(t, ".", gotDir)
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newMockDB(t)

	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("migration failed")
	}

	require.EqualError(t, RunMigrations(context.Background(), db), "migration failed")
}
