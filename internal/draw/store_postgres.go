package draw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"fairdraw/pkg/platform/sentinel"
	txcontext "fairdraw/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists draw results in PostgreSQL. The campaign_id primary
// key makes a second insert for the same campaign fail, which is how the
// at-most-one-draw rule survives concurrent draws.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Save(ctx context.Context, r Result) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO draw_results (campaign_id, winners, seed, entry_count, drawn_at, drawn_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.CampaignID, pq.Array(r.Winners), r.Seed, r.EntryCount, r.DrawnAt, r.DrawnBy)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save draw result: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByCampaign(ctx context.Context, campaignID string) (Result, error) {
	var r Result
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT campaign_id, winners, seed, entry_count, drawn_at, drawn_by
		FROM draw_results
		WHERE campaign_id = $1
	`, campaignID).Scan(&r.CampaignID, pq.Array(&r.Winners), &r.Seed, &r.EntryCount, &r.DrawnAt, &r.DrawnBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, sentinel.ErrNotFound
		}
		return Result{}, fmt.Errorf("find draw result: %w", err)
	}
	return r, nil
}
