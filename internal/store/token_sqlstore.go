package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

func NewTokenSQLStore(rdb, rwdb *sql.DB) *TokenSQLStore {
	return &TokenSQLStore{rdb, rwdb}
}

type TokenSQLStore struct {
	rdb, rwdb *sql.DB
}

func (store *TokenSQLStore) CreateToken(
	ctx context.Context,
	id, description, secretHash string,
) (*Token, error) {
	t := new(Token)
	query := `
	insert into tokens (id, description, secret_hash, created_on)
	values ($1, $2, $3, $4)
	returning *`
	err := sqlscan.Get(ctx, store.rwdb, t, query, id, description, secretHash, time.Now().UTC())
	if err != nil {
		if IsUniqueConstraintError(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return t, nil
}

func (store *TokenSQLStore) ReadTokenByID(ctx context.Context, id string) (*Token, error) {
	t := new(Token)
	query := `select * from tokens where id = $1`
	if err := sqlscan.Get(ctx, store.rdb, t, query, id); err != nil {
		return nil, err
	}
	return t, nil
}

func (store *TokenSQLStore) ListTokens(ctx context.Context) ([]*Token, error) {
	tokens := make([]*Token, 0)
	query := `select * from tokens order by created_on`
	if err := sqlscan.Select(ctx, store.rdb, &tokens, query); err != nil {
		return nil, err
	}
	return tokens, nil
}

func (store *TokenSQLStore) RevokeToken(ctx context.Context, id string) error {
	query := `update tokens set revoked_on = $1 where id = $2 and revoked_on is null`
	res, err := store.rwdb.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (store *TokenSQLStore) TouchToken(ctx context.Context, id string, at time.Time) error {
	query := `update tokens set last_used_on = $1 where id = $2`
	_, err := store.rwdb.ExecContext(ctx, query, at.UTC(), id)
	return err
}
