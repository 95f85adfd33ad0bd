package store

import (
	"context"
	"database/sql"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/haatos/simple-release/internal/types"
)

func NewAttemptSQLStore(rdb, rwdb *sql.DB) *AttemptSQLStore {
	return &AttemptSQLStore{rdb, rwdb}
}

type AttemptSQLStore struct {
	rdb, rwdb *sql.DB
}

func (store *AttemptSQLStore) CreateAttempt(ctx context.Context, a *types.Attempt) error {
	r := newAttemptRecord(a)
	query := `
	insert into attempts (
		id, package, trigger_ref, version, state, outcome, dry_run, started_on
	)
	values ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := store.rwdb.ExecContext(
		ctx,
		query,
		r.ID,
		r.Package,
		r.TriggerRef,
		r.Version,
		r.State,
		r.Outcome,
		r.DryRun,
		r.StartedOn,
	)
	return err
}

func (store *AttemptSQLStore) UpdateAttempt(ctx context.Context, a *types.Attempt) error {
	r := newAttemptRecord(a)
	query := `
	update attempts set
		version = $1,
		artifact_path = $2,
		artifact_checksum = $3,
		artifact_size = $4,
		state = $5,
		outcome = $6,
		failed_stage = $7,
		failure_kind = $8,
		failure_reason = $9,
		receipt_location = $10,
		ended_on = $11
	where id = $12`
	res, err := store.rwdb.ExecContext(
		ctx,
		query,
		r.Version,
		r.ArtifactPath,
		r.ArtifactChecksum,
		r.ArtifactSize,
		r.State,
		r.Outcome,
		r.FailedStage,
		r.FailureKind,
		r.FailureReason,
		r.ReceiptLocation,
		r.EndedOn,
		r.ID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (store *AttemptSQLStore) ReadAttemptByID(ctx context.Context, id string) (*types.Attempt, error) {
	r := new(AttemptRecord)
	query := `select * from attempts where id = $1`
	if err := sqlscan.Get(ctx, store.rdb, r, query, id); err != nil {
		return nil, err
	}
	return r.Attempt(), nil
}

// ListAttempts returns the newest attempts first. An empty pkg lists all
// packages.
func (store *AttemptSQLStore) ListAttempts(ctx context.Context, pkg string, limit int) ([]*types.Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	records := make([]*AttemptRecord, 0)
	query := `
	select * from attempts
	where $1 = '' or package = $1
	order by started_on desc
	limit $2`
	if err := sqlscan.Select(ctx, store.rdb, &records, query, pkg, limit); err != nil {
		return nil, err
	}
	attempts := make([]*types.Attempt, 0, len(records))
	for _, r := range records {
		attempts = append(attempts, r.Attempt())
	}
	return attempts, nil
}
