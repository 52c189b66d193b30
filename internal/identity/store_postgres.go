package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fairdraw/pkg/platform/sentinel"
	txcontext "fairdraw/pkg/platform/tx"
)

// PostgresStore persists identities in PostgreSQL. This store is pure I/O;
// all state-machine decisions belong in the service.
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

const identityColumns = `id, username, first_name, last_name, verified, verified_at,
	verification_method, verification_attempts, banned, ban_reason, banned_at,
	fingerprint, first_seen, last_seen`

func (s *PostgresStore) Upsert(ctx context.Context, p UpsertParams, now time.Time) (Identity, error) {
	query := `
		INSERT INTO identities (id, username, first_name, last_name, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			last_seen = EXCLUDED.last_seen
		RETURNING ` + identityColumns
	ident, err := scanIdentity(s.execer(ctx).QueryRowContext(ctx, query, p.ID, p.Username, p.FirstName, p.LastName, now))
	if err != nil {
		return Identity{}, fmt.Errorf("upsert identity: %w", err)
	}
	return ident, nil
}

func (s *PostgresStore) Touch(ctx context.Context, id string, at time.Time) error {
	if _, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE identities SET last_seen = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("touch identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	ident, err := scanIdentity(s.execer(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return Identity{}, sentinel.ErrNotFound
		}
		return Identity{}, fmt.Errorf("find identity: %w", err)
	}
	return ident, nil
}

// MarkVerified uses a conditional update so two concurrent verifications
// resolve to exactly one winner.
func (s *PostgresStore) MarkVerified(ctx context.Context, id, method string, at time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE identities
		SET verified = TRUE, verified_at = $2, verification_method = $3
		WHERE id = $1 AND verified = FALSE
	`, id, at, method)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if n == 0 {
		if _, err := s.FindByID(ctx, id); err != nil {
			return err
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) SetBanned(ctx context.Context, id, reason string, at time.Time) error {
	return s.touchOne(ctx, `
		UPDATE identities SET banned = TRUE, ban_reason = $2, banned_at = $3 WHERE id = $1
	`, "set banned", id, reason, at)
}

func (s *PostgresStore) ClearBan(ctx context.Context, id string) error {
	return s.touchOne(ctx, `
		UPDATE identities SET banned = FALSE, ban_reason = '', banned_at = NULL WHERE id = $1
	`, "clear ban", id)
}

func (s *PostgresStore) SetFingerprint(ctx context.Context, id, fingerprint string) error {
	return s.touchOne(ctx, `
		UPDATE identities SET fingerprint = $2 WHERE id = $1
	`, "set fingerprint", id, fingerprint)
}

func (s *PostgresStore) IncrementAttempts(ctx context.Context, id string) error {
	return s.touchOne(ctx, `
		UPDATE identities SET verification_attempts = verification_attempts + 1 WHERE id = $1
	`, "increment attempts", id)
}

func (s *PostgresStore) ListBanned(ctx context.Context) ([]Identity, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+identityColumns+` FROM identities WHERE banned = TRUE ORDER BY banned_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list banned: %w", err)
	}
	defer rows.Close()

	var out []Identity
	for rows.Next() {
		ident, err := scanIdentityRows(rows)
		if err != nil {
			return nil, fmt.Errorf("list banned: %w", err)
		}
		out = append(out, ident)
	}
	return out, rows.Err()
}

func (s *PostgresStore) touchOne(ctx context.Context, query, op string, args ...any) error {
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row *sql.Row) (Identity, error)       { return scanIdentityFrom(row) }
func scanIdentityRows(rows *sql.Rows) (Identity, error) { return scanIdentityFrom(rows) }

func scanIdentityFrom(r rowScanner) (Identity, error) {
	var (
		ident      Identity
		verifiedAt sql.NullTime
		bannedAt   sql.NullTime
		method     sql.NullString
		banReason  sql.NullString
	)
	err := r.Scan(
		&ident.ID, &ident.Username, &ident.FirstName, &ident.LastName,
		&ident.Verified, &verifiedAt, &method, &ident.VerificationAttempts,
		&ident.Banned, &banReason, &bannedAt,
		&ident.Fingerprint, &ident.FirstSeen, &ident.LastSeen,
	)
	if err != nil {
		return Identity{}, err
	}
	if verifiedAt.Valid {
		t := verifiedAt.Time
		ident.VerifiedAt = &t
	}
	if bannedAt.Valid {
		t := bannedAt.Time
		ident.BannedAt = &t
	}
	ident.VerificationMethod = method.String
	ident.BanReason = banReason.String
	return ident, nil
}

// PostgresBanStore is the append-only moderation ledger in PostgreSQL.
type PostgresBanStore struct {
	db *sql.DB
}

func NewPostgresBanStore(db *sql.DB) *PostgresBanStore {
	return &PostgresBanStore{db: db}
}

func (s *PostgresBanStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresBanStore) Append(ctx context.Context, record BanRecord) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO ban_records (id, identity_id, moderator_id, reason, banned_at, unban_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, record.ID, record.IdentityID, record.ModeratorID, record.Reason, record.BannedAt, record.UnbanAt)
	if err != nil {
		return fmt.Errorf("append ban record: %w", err)
	}
	return nil
}

func (s *PostgresBanStore) ListByIdentity(ctx context.Context, identityID string) ([]BanRecord, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, identity_id, moderator_id, reason, banned_at, unban_at
		FROM ban_records WHERE identity_id = $1 ORDER BY banned_at
	`, identityID)
	if err != nil {
		return nil, fmt.Errorf("list ban records: %w", err)
	}
	defer rows.Close()

	var out []BanRecord
	for rows.Next() {
		var r BanRecord
		if err := rows.Scan(&r.ID, &r.IdentityID, &r.ModeratorID, &r.Reason, &r.BannedAt, &r.UnbanAt); err != nil {
			return nil, fmt.Errorf("list ban records: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PostgresHistoryStore is the append-only verification journal in PostgreSQL.
type PostgresHistoryStore struct {
	db *sql.DB
}

func NewPostgresHistoryStore(db *sql.DB) *PostgresHistoryStore {
	return &PostgresHistoryStore{db: db}
}

func (s *PostgresHistoryStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresHistoryStore) Append(ctx context.Context, attempt VerificationAttempt) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO verification_history (identity_id, method, success, fingerprint, attempted_at)
		VALUES ($1, $2, $3, $4, $5)
	`, attempt.IdentityID, attempt.Method, attempt.Success, attempt.Fingerprint, attempt.At)
	if err != nil {
		return fmt.Errorf("append verification attempt: %w", err)
	}
	return nil
}

func (s *PostgresHistoryStore) ListByIdentity(ctx context.Context, identityID string, limit int) ([]VerificationAttempt, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT identity_id, method, success, fingerprint, attempted_at
		FROM verification_history
		WHERE identity_id = $1
		ORDER BY attempted_at DESC
		LIMIT $2
	`, identityID, limit)
	if err != nil {
		return nil, fmt.Errorf("list verification history: %w", err)
	}
	defer rows.Close()

	var out []VerificationAttempt
	for rows.Next() {
		var a VerificationAttempt
		if err := rows.Scan(&a.IdentityID, &a.Method, &a.Success, &a.Fingerprint, &a.At); err != nil {
			return nil, fmt.Errorf("list verification history: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
