package campaign

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fairdraw/pkg/platform/sentinel"
	txcontext "fairdraw/pkg/platform/tx"
)

// PostgresStore persists campaigns in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const campaignColumns = `id, title, description, winner_count, opens_at, closes_at, status, announcement_ref`

func (s *PostgresStore) Create(ctx context.Context, c Campaign) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO campaigns (id, title, description, winner_count, opens_at, closes_at, status, announcement_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Title, c.Description, c.WinnerCount, c.OpensAt, c.ClosesAt, c.Status, c.AnnouncementRef)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (Campaign, error) {
	var c Campaign
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+campaignColumns+` FROM campaigns WHERE id = $1
	`, id).Scan(&c.ID, &c.Title, &c.Description, &c.WinnerCount, &c.OpensAt, &c.ClosesAt, &c.Status, &c.AnnouncementRef)
	if err != nil {
		if err == sql.ErrNoRows {
			return Campaign{}, sentinel.ErrNotFound
		}
		return Campaign{}, fmt.Errorf("find campaign: %w", err)
	}
	return c, nil
}

// Close uses a conditional update so two concurrent closes resolve to exactly
// one winner.
func (s *PostgresStore) Close(ctx context.Context, id string, at time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE campaigns SET status = $2 WHERE id = $1 AND status = $3
	`, id, StatusClosed, StatusOpen)
	if err != nil {
		return fmt.Errorf("close campaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close campaign: %w", err)
	}
	if n == 0 {
		if _, err := s.FindByID(ctx, id); err != nil {
			return err
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) ListOpen(ctx context.Context) ([]Campaign, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+campaignColumns+` FROM campaigns WHERE status = $1 ORDER BY closes_at
	`, StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("list open campaigns: %w", err)
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(&c.ID, &c.Title, &c.Description, &c.WinnerCount, &c.OpensAt, &c.ClosesAt, &c.Status, &c.AnnouncementRef); err != nil {
			return nil, fmt.Errorf("list open campaigns: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetAnnouncementRef(ctx context.Context, id, ref string) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE campaigns SET announcement_ref = $2 WHERE id = $1
	`, id, ref)
	if err != nil {
		return fmt.Errorf("set announcement ref: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set announcement ref: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
