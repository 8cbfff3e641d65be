package catalog

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/mediacatalog/internal/dbx"
)

// PostgresRepository implements catalog storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts row or, when its track_id already exists, overwrites the
// stored fields. A stored full hash is kept when row carries none.
func (r *PostgresRepository) Upsert(ctx context.Context, row *Row) error {
	query := `
		INSERT INTO tracks (track_id, display_name, genres, tags, object_key, short_hash, full_hash,
			size_bytes, content_type, is_active, is_pro_only, rotation_week)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (track_id)
		DO UPDATE SET
			display_name = EXCLUDED.display_name,
			genres = EXCLUDED.genres,
			tags = EXCLUDED.tags,
			object_key = EXCLUDED.object_key,
			short_hash = EXCLUDED.short_hash,
			full_hash = COALESCE(EXCLUDED.full_hash, tracks.full_hash),
			size_bytes = EXCLUDED.size_bytes,
			content_type = EXCLUDED.content_type,
			is_active = EXCLUDED.is_active,
			is_pro_only = EXCLUDED.is_pro_only,
			rotation_week = EXCLUDED.rotation_week,
			updated_at = now();
	`
	res, err := r.db.ExecContext(ctx, query,
		row.TrackID, row.DisplayName, row.Genres, row.Tags, row.ObjectKey, row.ShortHash, row.FullHash,
		row.SizeBytes, row.ContentType, row.IsActive, row.IsProOnly, row.RotationWeek)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
	return nil
}

// SelectMissingHash returns every row whose full_hash is NULL, ordered by track_id.
func (r *PostgresRepository) SelectMissingHash(ctx context.Context) ([]*MissingHash, error) {
	query := `SELECT id, track_id, object_key, short_hash FROM tracks
		WHERE full_hash IS NULL
		ORDER BY track_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select tracks: %w", err)
	}
	defer rows.Close()

	var result []*MissingHash
	for rows.Next() {
		var item MissingHash
		if err := rows.Scan(&item.ID, &item.TrackID, &item.ObjectKey, &item.ShortHash); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateFullHash sets full_hash for row id if it is still NULL. It reports
// false when another writer got there first.
func (r *PostgresRepository) UpdateFullHash(ctx context.Context, id, fullHash string) (bool, error) {
	query := `UPDATE tracks SET full_hash = $2, updated_at = now() WHERE id = $1 AND full_hash IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, fullHash)
	if err != nil {
		return false, fmt.Errorf("failed to update full hash: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	switch ra {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("wrong rows affected count: %d", ra)
	}
}
