package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS identities (
		id                    TEXT PRIMARY KEY,
		username              TEXT NOT NULL DEFAULT '',
		first_name            TEXT NOT NULL DEFAULT '',
		last_name             TEXT NOT NULL DEFAULT '',
		verified              BOOLEAN NOT NULL DEFAULT FALSE,
		verified_at           TIMESTAMPTZ,
		verification_method   TEXT NOT NULL DEFAULT '',
		verification_attempts INTEGER NOT NULL DEFAULT 0,
		banned                BOOLEAN NOT NULL DEFAULT FALSE,
		ban_reason            TEXT NOT NULL DEFAULT '',
		banned_at             TIMESTAMPTZ,
		fingerprint           TEXT NOT NULL DEFAULT '',
		first_seen            TIMESTAMPTZ NOT NULL,
		last_seen             TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS verification_history (
		id          BIGSERIAL PRIMARY KEY,
		identity_id TEXT NOT NULL,
		method      TEXT NOT NULL,
		success     BOOLEAN NOT NULL,
		fingerprint TEXT NOT NULL DEFAULT '',
		attempted_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_verification_history_identity
		ON verification_history (identity_id, attempted_at DESC)`,
	`CREATE TABLE IF NOT EXISTS ban_records (
		id           TEXT PRIMARY KEY,
		identity_id  TEXT NOT NULL,
		moderator_id TEXT NOT NULL,
		reason       TEXT NOT NULL,
		banned_at    TIMESTAMPTZ NOT NULL,
		unban_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ban_records_identity ON ban_records (identity_id)`,
	`CREATE TABLE IF NOT EXISTS fingerprints (
		fingerprint  TEXT PRIMARY KEY,
		member_count INTEGER NOT NULL DEFAULT 0,
		first_seen   TIMESTAMPTZ NOT NULL,
		last_seen    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS fingerprint_members (
		fingerprint TEXT NOT NULL,
		identity_id TEXT NOT NULL,
		first_seen  TIMESTAMPTZ NOT NULL,
		last_seen   TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (fingerprint, identity_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fingerprint_members_identity
		ON fingerprint_members (identity_id, last_seen DESC)`,
	`CREATE TABLE IF NOT EXISTS campaigns (
		id               TEXT PRIMARY KEY,
		title            TEXT NOT NULL,
		description      TEXT NOT NULL DEFAULT '',
		winner_count     INTEGER NOT NULL,
		opens_at         TIMESTAMPTZ NOT NULL,
		closes_at        TIMESTAMPTZ NOT NULL,
		status           TEXT NOT NULL,
		announcement_ref TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS entries (
		campaign_id  TEXT NOT NULL,
		identity_id  TEXT NOT NULL,
		joined_at    TIMESTAMPTZ NOT NULL,
		valid        BOOLEAN NOT NULL DEFAULT TRUE,
		referred_by  TEXT NOT NULL DEFAULT '',
		bonus_weight INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (campaign_id, identity_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entries_identity ON entries (identity_id)`,
	`CREATE TABLE IF NOT EXISTS referral_edges (
		referrer_id TEXT NOT NULL,
		referred_id TEXT NOT NULL,
		campaign_id TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (referrer_id, referred_id, campaign_id)
	)`,
	`CREATE TABLE IF NOT EXISTS draw_results (
		campaign_id TEXT PRIMARY KEY,
		winners     TEXT[] NOT NULL,
		seed        BIGINT NOT NULL,
		entry_count INTEGER NOT NULL,
		drawn_at    TIMESTAMPTZ NOT NULL,
		drawn_by    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id          TEXT PRIMARY KEY,
		action      TEXT NOT NULL,
		identity_id TEXT NOT NULL DEFAULT '',
		actor_id    TEXT NOT NULL DEFAULT '',
		campaign_id TEXT NOT NULL DEFAULT '',
		detail      TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_identity
		ON audit_events (identity_id, occurred_at DESC)`,
}

// Migrate applies the schema. Statements are idempotent so startup can run
// this unconditionally.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
