// Package catalog persists catalog rows in Postgres and backfills missing
// full content hashes.
package catalog

// Row is one catalog entry. TrackID is unique across the catalog.
type Row struct {
	ID           string
	TrackID      string
	DisplayName  string
	Genres       []string
	Tags         []string
	ObjectKey    string
	ShortHash    string
	FullHash     *string // nil until computed
	SizeBytes    int64
	ContentType  string
	IsActive     bool
	IsProOnly    bool
	RotationWeek *int
}

// MissingHash is the projection of a row whose full hash is still unknown.
type MissingHash struct {
	ID        string
	TrackID   string
	ObjectKey string
	ShortHash string
}
