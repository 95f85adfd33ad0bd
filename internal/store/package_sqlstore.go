package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/georgysavva/scany/v2/sqlscan"
)

func NewPackageSQLStore(rdb, rwdb *sql.DB) *PackageSQLStore {
	return &PackageSQLStore{rdb, rwdb}
}

type PackageSQLStore struct {
	rdb, rwdb *sql.DB
}

func (store *PackageSQLStore) CreatePackage(ctx context.Context, p *Package, finalize func() error) error {
	tx, err := store.rwdb.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
	insert into packages (
		name, version, checksum, size, location, published_by, published_on
	)
	values ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.ExecContext(
		ctx,
		query,
		p.Name,
		p.Version,
		p.Checksum,
		p.Size,
		p.Location,
		p.PublishedBy,
		p.PublishedOn.UTC(),
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrConflict
		}
		return err
	}

	if finalize != nil {
		if err := finalize(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (store *PackageSQLStore) ReadPackage(ctx context.Context, name, version string) (*Package, error) {
	p := new(Package)
	query := `select * from packages where name = $1 and version = $2`
	if err := sqlscan.Get(ctx, store.rdb, p, query, name, version); err != nil {
		return nil, err
	}
	return p, nil
}

func (store *PackageSQLStore) ListPackageVersions(ctx context.Context, name string) ([]*Package, error) {
	packages := make([]*Package, 0)
	query := `select * from packages where name = $1 order by published_on`
	if err := sqlscan.Select(ctx, store.rdb, &packages, query, name); err != nil {
		return nil, err
	}
	return packages, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
