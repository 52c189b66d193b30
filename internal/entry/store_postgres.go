package entry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"fairdraw/pkg/platform/sentinel"
	txcontext "fairdraw/pkg/platform/tx"
)

// uniqueViolation is the Postgres error code for a violated unique
// constraint; the losing concurrent writer maps it to sentinel.ErrConflict.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

// PostgresStore persists entries in PostgreSQL. The (campaign_id,
// identity_id) primary key enforces the one-entry-per-identity constraint.
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

func (s *PostgresStore) Create(ctx context.Context, e Entry) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO entries (campaign_id, identity_id, joined_at, valid, referred_by, bonus_weight)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.CampaignID, e.IdentityID, e.JoinedAt, e.Valid, e.ReferredBy, e.BonusWeight)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, campaignID, identityID string) (Entry, error) {
	var e Entry
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT campaign_id, identity_id, joined_at, valid, referred_by, bonus_weight
		FROM entries WHERE campaign_id = $1 AND identity_id = $2
	`, campaignID, identityID).Scan(&e.CampaignID, &e.IdentityID, &e.JoinedAt, &e.Valid, &e.ReferredBy, &e.BonusWeight)
	if err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, sentinel.ErrNotFound
		}
		return Entry{}, fmt.Errorf("find entry: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) Revive(ctx context.Context, campaignID, identityID, referredBy string) error {
	query := `
		UPDATE entries SET valid = TRUE, joined_at = $3,
			referred_by = CASE WHEN $4 <> '' THEN $4 ELSE referred_by END
		WHERE campaign_id = $1 AND identity_id = $2 AND valid = FALSE
	`
	return s.affectOne(ctx, query, "revive entry", campaignID, identityID, time.Now(), referredBy)
}

func (s *PostgresStore) Invalidate(ctx context.Context, campaignID, identityID string) error {
	return s.affectOne(ctx, `
		UPDATE entries SET valid = FALSE
		WHERE campaign_id = $1 AND identity_id = $2 AND valid = TRUE
	`, "invalidate entry", campaignID, identityID)
}

func (s *PostgresStore) InvalidateByIdentity(ctx context.Context, identityID string) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE entries SET valid = FALSE WHERE identity_id = $1 AND valid = TRUE
	`, identityID)
	if err != nil {
		return 0, fmt.Errorf("invalidate entries by identity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("invalidate entries by identity: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) IncrementBonus(ctx context.Context, campaignID, identityID string) error {
	return s.affectOne(ctx, `
		UPDATE entries SET bonus_weight = bonus_weight + 1
		WHERE campaign_id = $1 AND identity_id = $2 AND valid = TRUE
	`, "increment bonus", campaignID, identityID)
}

func (s *PostgresStore) ListValid(ctx context.Context, campaignID string) ([]Entry, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT campaign_id, identity_id, joined_at, valid, referred_by, bonus_weight
		FROM entries WHERE campaign_id = $1 AND valid = TRUE
		ORDER BY identity_id
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list valid entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.CampaignID, &e.IdentityID, &e.JoinedAt, &e.Valid, &e.ReferredBy, &e.BonusWeight); err != nil {
			return nil, fmt.Errorf("list valid entries: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountValid(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM entries WHERE campaign_id = $1 AND valid = TRUE
	`, campaignID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count valid entries: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) affectOne(ctx context.Context, query, op string, args ...any) error {
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// PostgresReferralStore persists referral edges; the unique triple constraint
// backs double-credit prevention.
type PostgresReferralStore struct {
	db *sql.DB
}

func NewPostgresReferralStore(db *sql.DB) *PostgresReferralStore {
	return &PostgresReferralStore{db: db}
}

func (s *PostgresReferralStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresReferralStore) Create(ctx context.Context, edge ReferralEdge) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO referral_edges (referrer_id, referred_id, campaign_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, edge.ReferrerID, edge.ReferredID, edge.CampaignID, edge.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create referral edge: %w", err)
	}
	return nil
}

func (s *PostgresReferralStore) CountByReferrer(ctx context.Context, campaignID, referrerID string) (int, error) {
	var n int
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM referral_edges WHERE campaign_id = $1 AND referrer_id = $2
	`, campaignID, referrerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count referrals: %w", err)
	}
	return n, nil
}
