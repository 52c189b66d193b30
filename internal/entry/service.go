package entry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fairdraw/internal/audit"
	"fairdraw/internal/campaign"
	dErrors "fairdraw/pkg/domain-errors"
	"fairdraw/pkg/platform/sentinel"
	"fairdraw/pkg/platform/tx"
)

// Join failure modes, exported so the gateway can map them to structured
// results without string matching.
var (
	ErrNotJoinable   = dErrors.New(dErrors.CodeConflict, "campaign is not accepting entries")
	ErrAlreadyJoined = dErrors.New(dErrors.CodeConflict, "identity already joined this campaign")
	ErrBanned        = dErrors.New(dErrors.CodeForbidden, "identity is banned")
	ErrNotVerified   = dErrors.New(dErrors.CodeForbidden, "identity is not verified")
)

// Campaigns is the slice of the campaign registry the ledger consults.
type Campaigns interface {
	Get(ctx context.Context, id string) (campaign.Campaign, error)
}

// IdentityChecker answers the two admission questions. Unknown identities are
// neither banned nor verified.
type IdentityChecker interface {
	IsBanned(ctx context.Context, id string) bool
	IsVerified(ctx context.Context, id string) bool
}

// JoinResult reports a successful join.
type JoinResult struct {
	Entry            Entry
	ReferralCredited bool
}

// Service owns the entry and referral ledgers. All mutations for one
// campaign serialize through the tx runner keyed by campaign id, so a join
// and the referral bonus it grants commit as one unit.
type Service struct {
	store     Store
	referrals ReferralStore
	campaigns Campaigns
	ids       IdentityChecker
	txr       tx.Runner
	auditor   audit.Emitter
	log       *slog.Logger
}

func NewService(store Store, referrals ReferralStore, campaigns Campaigns, ids IdentityChecker, txr tx.Runner, auditor audit.Emitter, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		referrals: referrals,
		campaigns: campaigns,
		ids:       ids,
		txr:       txr,
		auditor:   auditor,
		log:       log,
	}
}

var tracer = otel.Tracer("fairdraw/entry")

// Join admits the identity into the campaign. Preconditions, in order:
// campaign joinable, identity not banned, identity verified. A prior
// soft-deleted entry is revived rather than recreated. Referral credit is
// granted only when the referrer is someone else and holds a valid entry in
// the same campaign; duplicate referrals are silently ignored.
func (s *Service) Join(ctx context.Context, campaignID, identityID, referrerID string) (JoinResult, error) {
	ctx, span := tracer.Start(ctx, "entry.join")
	defer span.End()
	span.SetAttributes(
		attribute.String("campaign.id", campaignID),
		attribute.String("identity.id", identityID),
	)

	if campaignID == "" || identityID == "" {
		return JoinResult{}, dErrors.New(dErrors.CodeInvalidInput, "campaign id and identity id are required")
	}

	var result JoinResult
	err := s.txr.RunInTx(ctx, campaignID, func(ctx context.Context) error {
		c, err := s.campaigns.Get(ctx, campaignID)
		if err != nil {
			return err
		}
		if !c.Joinable(time.Now()) {
			return ErrNotJoinable
		}
		if s.ids.IsBanned(ctx, identityID) {
			return ErrBanned
		}
		if !s.ids.IsVerified(ctx, identityID) {
			return ErrNotVerified
		}

		e, err := s.upsertEntry(ctx, campaignID, identityID, referrerID)
		if err != nil {
			return err
		}
		result.Entry = e

		credited, err := s.creditReferral(ctx, campaignID, identityID, referrerID)
		if err != nil {
			return err
		}
		result.ReferralCredited = credited
		return nil
	})
	if err != nil {
		return JoinResult{}, err
	}

	_ = s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionEntryJoined,
		IdentityID: identityID,
		CampaignID: campaignID,
	})
	if result.ReferralCredited {
		span.AddEvent("referral.credited", trace.WithAttributes(
			attribute.String("referrer.id", referrerID),
		))
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:     audit.ActionReferralCredited,
			IdentityID: referrerID,
			CampaignID: campaignID,
			Detail:     "referred " + identityID,
		})
	}
	return result, nil
}

func (s *Service) upsertEntry(ctx context.Context, campaignID, identityID, referrerID string) (Entry, error) {
	existing, err := s.store.FindByKey(ctx, campaignID, identityID)
	switch {
	case err == nil && existing.Valid:
		return Entry{}, ErrAlreadyJoined

	case err == nil:
		// Rejoin after moderator removal: revive the soft-deleted record.
		if err := s.store.Revive(ctx, campaignID, identityID, referrerID); err != nil {
			return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "revive entry")
		}
		revived, err := s.store.FindByKey(ctx, campaignID, identityID)
		if err != nil {
			return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "reload entry")
		}
		return revived, nil

	case errors.Is(err, sentinel.ErrNotFound):
		e := Entry{
			CampaignID: campaignID,
			IdentityID: identityID,
			JoinedAt:   time.Now(),
			Valid:      true,
			ReferredBy: referrerID,
		}
		if err := s.store.Create(ctx, e); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// Lost the race to a concurrent join for the same key.
				return Entry{}, ErrAlreadyJoined
			}
			return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "create entry")
		}
		return e, nil

	default:
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "find entry")
	}
}

func (s *Service) creditReferral(ctx context.Context, campaignID, identityID, referrerID string) (bool, error) {
	if referrerID == "" || referrerID == identityID {
		// Self-referral earns nothing; it is dropped, not an error, so the
		// join itself still succeeds.
		return false, nil
	}

	refEntry, err := s.store.FindByKey(ctx, campaignID, referrerID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "find referrer entry")
	}
	if !refEntry.Valid {
		return false, nil
	}

	err = s.referrals.Create(ctx, ReferralEdge{
		ReferrerID: referrerID,
		ReferredID: identityID,
		CampaignID: campaignID,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Duplicate referral: edge exists, bonus was already granted.
			return false, nil
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "create referral edge")
	}

	if err := s.store.IncrementBonus(ctx, campaignID, referrerID); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "increment referral bonus")
	}
	return true, nil
}

// Remove soft-deletes an entry on moderator action. Referral edges and bonus
// already granted to others are left untouched.
func (s *Service) Remove(ctx context.Context, campaignID, identityID, moderatorID string) error {
	err := s.txr.RunInTx(ctx, campaignID, func(ctx context.Context) error {
		return s.store.Invalidate(ctx, campaignID, identityID)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "no valid entry for identity %s", identityID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "remove entry")
	}

	_ = s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionEntryRemoved,
		IdentityID: identityID,
		CampaignID: campaignID,
		ActorID:    moderatorID,
	})
	return nil
}

// InvalidateByIdentity soft-deletes every valid entry the identity owns. It
// implements the identity service's ban cascade port.
func (s *Service) InvalidateByIdentity(ctx context.Context, identityID string) (int, error) {
	return s.store.InvalidateByIdentity(ctx, identityID)
}

// EffectiveEntries is the only view the winner selector may use: valid
// entries whose owner is not banned, weighted 1 + bonus. The ban check
// re-queries the identity store so a ban that somehow missed the cascade is
// still excluded.
func (s *Service) EffectiveEntries(ctx context.Context, campaignID string) ([]WeightedEntry, error) {
	entries, err := s.store.ListValid(ctx, campaignID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list valid entries")
	}

	out := make([]WeightedEntry, 0, len(entries))
	for _, e := range entries {
		if s.ids.IsBanned(ctx, e.IdentityID) {
			continue
		}
		out = append(out, WeightedEntry{IdentityID: e.IdentityID, Weight: e.Weight()})
	}
	return out, nil
}

// CountValid reports how many valid entries a campaign holds.
func (s *Service) CountValid(ctx context.Context, campaignID string) (int, error) {
	n, err := s.store.CountValid(ctx, campaignID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count entries")
	}
	return n, nil
}

// ReferralCount reports how many people the referrer brought into the
// campaign.
func (s *Service) ReferralCount(ctx context.Context, campaignID, referrerID string) (int, error) {
	n, err := s.referrals.CountByReferrer(ctx, campaignID, referrerID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count referrals")
	}
	return n, nil
}

// BonusWeight reports the bonus accrued by an identity's entry, 0 when the
// identity holds no entry.
func (s *Service) BonusWeight(ctx context.Context, campaignID, identityID string) (int, error) {
	e, err := s.store.FindByKey(ctx, campaignID, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, nil
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "find entry")
	}
	return e.BonusWeight, nil
}
