package catalog

import (
	"context"

	"github.com/dmitrijs2005/mediacatalog/internal/dbx"
)

type Repository interface {
	Upsert(ctx context.Context, row *Row) error
	SelectMissingHash(ctx context.Context) ([]*MissingHash, error)
	UpdateFullHash(ctx context.Context, id, fullHash string) (bool, error)
}

// RepositoryFactory binds a Repository to a DBTX, so the same code runs
// against *sql.DB or inside a transaction.
type RepositoryFactory func(db dbx.DBTX) Repository

// PostgresRepositories is the RepositoryFactory for PostgreSQL.
func PostgresRepositories(db dbx.DBTX) Repository {
	return NewPostgresRepository(db)
}
