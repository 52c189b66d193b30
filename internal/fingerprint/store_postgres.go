package fingerprint

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fairdraw/pkg/platform/sentinel"
	txcontext "fairdraw/pkg/platform/tx"
)

// PostgresStore persists the fingerprint index in two tables: fingerprints
// carries the counters, fingerprint_members the additive identity pairs.
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

func (s *PostgresStore) Record(ctx context.Context, identityID, fingerprint string, now time.Time) error {
	ex := s.execer(ctx)

	res, err := ex.ExecContext(ctx, `
		INSERT INTO fingerprint_members (fingerprint, identity_id, first_seen, last_seen)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (fingerprint, identity_id) DO UPDATE SET last_seen = EXCLUDED.last_seen
	`, fingerprint, identityID, now)
	if err != nil {
		return fmt.Errorf("record fingerprint member: %w", err)
	}
	// ON CONFLICT DO UPDATE reports one affected row either way, so recount
	// distinct members instead of guessing from RowsAffected.
	_ = res

	_, err = ex.ExecContext(ctx, `
		INSERT INTO fingerprints (fingerprint, member_count, first_seen, last_seen)
		VALUES ($1,
			(SELECT COUNT(*) FROM fingerprint_members WHERE fingerprint = $1),
			$2, $2)
		ON CONFLICT (fingerprint) DO UPDATE SET
			member_count = (SELECT COUNT(*) FROM fingerprint_members WHERE fingerprint = $1),
			last_seen = EXCLUDED.last_seen
	`, fingerprint, now)
	if err != nil {
		return fmt.Errorf("record fingerprint: %w", err)
	}
	return nil
}

func (s *PostgresStore) CurrentOf(ctx context.Context, identityID string) (string, error) {
	var fp string
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT fingerprint FROM fingerprint_members
		WHERE identity_id = $1
		ORDER BY last_seen DESC, fingerprint
		LIMIT 1
	`, identityID).Scan(&fp)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("current fingerprint: %w", err)
	}
	return fp, nil
}

func (s *PostgresStore) Members(ctx context.Context, fingerprint string) ([]string, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT identity_id FROM fingerprint_members WHERE fingerprint = $1 ORDER BY identity_id
	`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("fingerprint members: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("fingerprint members: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Suspicious(ctx context.Context, threshold int) ([]Fingerprint, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT fingerprint, member_count, first_seen, last_seen
		FROM fingerprints
		WHERE member_count >= $1
		ORDER BY member_count DESC, fingerprint
	`, threshold)
	if err != nil {
		return nil, fmt.Errorf("suspicious fingerprints: %w", err)
	}
	defer rows.Close()

	var out []Fingerprint
	for rows.Next() {
		var fp Fingerprint
		if err := rows.Scan(&fp.Value, &fp.MemberCount, &fp.FirstSeen, &fp.LastSeen); err != nil {
			return nil, fmt.Errorf("suspicious fingerprints: %w", err)
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}
