package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fairdraw/internal/audit"
	dErrors "fairdraw/pkg/domain-errors"
	"fairdraw/pkg/platform/sentinel"
	"fairdraw/pkg/platform/tx"
)

// EntryInvalidator soft-deletes every currently-valid entry owned by an
// identity. Implemented by the entry ledger; declared here so the two
// packages stay decoupled.
type EntryInvalidator interface {
	InvalidateByIdentity(ctx context.Context, identityID string) (int, error)
}

// Service owns identity lifecycle and the moderation ledger. All writes to an
// identity funnel through here; other components read via IsBanned and
// IsVerified and never mutate identity state directly.
type Service struct {
	store   Store
	bans    BanStore
	history HistoryStore
	entries EntryInvalidator
	txr     tx.Runner
	auditor audit.Emitter
	log     *slog.Logger

	defaultBanTTL time.Duration
}

func NewService(store Store, bans BanStore, history HistoryStore, txr tx.Runner, auditor audit.Emitter, log *slog.Logger, defaultBanTTL time.Duration) *Service {
	if defaultBanTTL <= 0 {
		defaultBanTTL = 30 * 24 * time.Hour
	}
	return &Service{
		store:         store,
		bans:          bans,
		history:       history,
		txr:           txr,
		auditor:       auditor,
		log:           log,
		defaultBanTTL: defaultBanTTL,
	}
}

// BindEntryInvalidator wires the entry ledger in after construction. The
// entry service needs this service to exist first, so the dependency is bound
// during wiring rather than in the constructor. Must be called before Ban.
func (s *Service) BindEntryInvalidator(inv EntryInvalidator) {
	s.entries = inv
}

// Upsert creates the identity on first sight and refreshes display fields and
// last_seen otherwise. It never fails on state; only storage errors surface.
func (s *Service) Upsert(ctx context.Context, p UpsertParams) (Identity, error) {
	if p.ID == "" {
		return Identity{}, dErrors.New(dErrors.CodeInvalidInput, "identity id is required")
	}
	ident, err := s.store.Upsert(ctx, p, time.Now())
	if err != nil {
		return Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "upsert identity")
	}
	return ident, nil
}

// Touch refreshes last_seen. Unknown identities are silently skipped; activity
// tracking must never fail a caller's main operation.
func (s *Service) Touch(ctx context.Context, id string) {
	if err := s.store.Touch(ctx, id, time.Now()); err != nil {
		s.log.Warn("touch identity failed", "identity_id", id, "error", err)
	}
}

// Get returns the identity or a NotFound domain error.
func (s *Service) Get(ctx context.Context, id string) (Identity, error) {
	ident, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Identity{}, dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", id)
		}
		return Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "find identity")
	}
	return ident, nil
}

// MarkVerified flips the identity to verified. Idempotent for callers: a
// second call reports a Conflict rather than corrupting state.
func (s *Service) MarkVerified(ctx context.Context, id, method string) error {
	err := s.txr.RunInTx(ctx, id, func(ctx context.Context) error {
		return s.store.MarkVerified(ctx, id, method, time.Now())
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeConflict, "identity already verified")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", id)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "mark verified")
	}
}

// IsBanned reports current ban state; unknown identities are not banned.
func (s *Service) IsBanned(ctx context.Context, id string) bool {
	ident, err := s.store.FindByID(ctx, id)
	return err == nil && ident.Banned
}

// IsVerified reports verification state; unknown identities are unverified.
func (s *Service) IsVerified(ctx context.Context, id string) bool {
	ident, err := s.store.FindByID(ctx, id)
	return err == nil && ident.Verified
}

// SetFingerprint attaches the current origin fingerprint to the identity.
func (s *Service) SetFingerprint(ctx context.Context, id, fingerprint string) error {
	if err := s.store.SetFingerprint(ctx, id, fingerprint); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", id)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "set fingerprint")
	}
	return nil
}

// Ban marks the identity banned, appends a ledger record and cascades a soft
// delete over every currently-valid entry the identity owns, in any campaign.
// The three writes commit as one unit.
func (s *Service) Ban(ctx context.Context, id, moderatorID, reason string, duration time.Duration) (BanRecord, error) {
	if reason == "" {
		reason = "rules violation"
	}
	if duration <= 0 {
		duration = s.defaultBanTTL
	}
	now := time.Now()
	record := BanRecord{
		ID:          uuid.NewString(),
		IdentityID:  id,
		ModeratorID: moderatorID,
		Reason:      reason,
		BannedAt:    now,
		UnbanAt:     now.Add(duration),
	}

	var invalidated int
	err := s.txr.RunInTx(ctx, id, func(ctx context.Context) error {
		if err := s.store.SetBanned(ctx, id, reason, now); err != nil {
			return err
		}
		if err := s.bans.Append(ctx, record); err != nil {
			return err
		}
		n, err := s.entries.InvalidateByIdentity(ctx, id)
		if err != nil {
			return err
		}
		invalidated = n
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return BanRecord{}, dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", id)
		}
		return BanRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "ban identity")
	}

	s.log.Info("identity banned",
		"identity_id", id,
		"moderator_id", moderatorID,
		"entries_invalidated", invalidated,
	)
	_ = s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionIdentityBanned,
		IdentityID: id,
		ActorID:    moderatorID,
		Detail:     fmt.Sprintf("%s (%d entries invalidated)", reason, invalidated),
	})
	return record, nil
}

// Unban clears the ban flag. Entries invalidated by the ban stay invalid;
// reinstatement is a separate, explicit moderator action.
func (s *Service) Unban(ctx context.Context, id, moderatorID string) error {
	if err := s.store.ClearBan(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "identity %s not found", id)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "unban identity")
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionIdentityUnbanned,
		IdentityID: id,
		ActorID:    moderatorID,
	})
	return nil
}

// Banned lists currently banned identities, newest bans first.
func (s *Service) Banned(ctx context.Context) ([]Identity, error) {
	out, err := s.store.ListBanned(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list banned")
	}
	return out, nil
}

// RecordAttempt journals a verification attempt and bumps the identity's
// attempt counter.
func (s *Service) RecordAttempt(ctx context.Context, attempt VerificationAttempt) error {
	if attempt.At.IsZero() {
		attempt.At = time.Now()
	}
	if err := s.history.Append(ctx, attempt); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "journal verification attempt")
	}
	if err := s.store.IncrementAttempts(ctx, attempt.IdentityID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "increment attempts")
	}
	return nil
}

// History returns the newest verification attempts for an identity.
func (s *Service) History(ctx context.Context, id string, limit int) ([]VerificationAttempt, error) {
	if limit <= 0 {
		limit = 10
	}
	out, err := s.history.ListByIdentity(ctx, id, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "verification history")
	}
	return out, nil
}

// BanHistory returns the append-only ledger for one identity, oldest first.
func (s *Service) BanHistory(ctx context.Context, id string) ([]BanRecord, error) {
	out, err := s.bans.ListByIdentity(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "ban history")
	}
	return out, nil
}
