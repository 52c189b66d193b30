package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fairdraw/internal/campaign"
	"fairdraw/internal/draw"
	"fairdraw/internal/entry"
	"fairdraw/internal/fingerprint"
	"fairdraw/internal/identity"
	"fairdraw/internal/platform/metrics"
	"fairdraw/internal/verification"
	dErrors "fairdraw/pkg/domain-errors"
)

// Service is the engine's front door. It composes the feature services into
// the operations callers actually perform and owns the business metrics.
type Service struct {
	ids     *identity.Service
	ver     *verification.Service
	camps   *campaign.Service
	entries *entry.Service
	draws   *draw.Service
	fps     *fingerprint.Service
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(ids *identity.Service, ver *verification.Service, camps *campaign.Service, entries *entry.Service, draws *draw.Service, fps *fingerprint.Service, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		ids:     ids,
		ver:     ver,
		camps:   camps,
		entries: entries,
		draws:   draws,
		fps:     fps,
		metrics: m,
		log:     log,
	}
}

// Register upserts the identity profile and records its current origin
// fingerprint. Safe to call on every contact.
func (s *Service) Register(ctx context.Context, p RegisterParams) (identity.Identity, error) {
	if p.ID == "" {
		return identity.Identity{}, dErrors.New(dErrors.CodeInvalidInput, "identity id is required")
	}

	id, err := s.ids.Upsert(ctx, identity.UpsertParams{
		ID:        p.ID,
		Username:  p.Username,
		FirstName: p.FirstName,
		LastName:  p.LastName,
	})
	if err != nil {
		return identity.Identity{}, err
	}
	s.metrics.IdentitiesUpserted.Inc()

	fp := fingerprint.Derive(p.Username, p.ClientHint)
	if err := s.fps.Record(ctx, p.ID, fp); err != nil {
		s.log.Warn("record fingerprint", "identity_id", p.ID, "error", err)
	} else if err := s.ids.SetFingerprint(ctx, p.ID, fp); err != nil {
		s.log.Warn("bind fingerprint", "identity_id", p.ID, "error", err)
	} else {
		id.Fingerprint = fp
	}
	return id, nil
}

// RequestChallenge issues a fresh verification puzzle for the identity.
func (s *Service) RequestChallenge(ctx context.Context, identityID string) (verification.Challenge, error) {
	id, err := s.ids.Get(ctx, identityID)
	if err != nil {
		return verification.Challenge{}, err
	}
	c, err := s.ver.Issue(ctx, identityID, id.Fingerprint)
	if err != nil {
		return verification.Challenge{}, err
	}
	s.ids.Touch(ctx, identityID)
	s.metrics.ChallengesIssued.Inc()
	return c, nil
}

// SubmitAnswer grades a challenge answer.
func (s *Service) SubmitAnswer(ctx context.Context, identityID string, answer int) (verification.SubmitResult, error) {
	res, err := s.ver.Submit(ctx, identityID, answer)
	if err != nil {
		return verification.SubmitResult{}, err
	}
	s.metrics.VerificationOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	return res, nil
}

// Join admits the identity into a campaign. A deep-link payload, when
// present, supplies both the campaign and the referrer.
func (s *Service) Join(ctx context.Context, p JoinParams) (JoinOutcome, error) {
	campaignID, referrerID := p.CampaignID, p.ReferrerID
	if p.DeepLink != "" {
		parsedCampaign, parsedReferrer, ok := ParseDeepLink(p.DeepLink)
		if !ok {
			return JoinOutcome{}, dErrors.New(dErrors.CodeInvalidInput, "malformed referral link")
		}
		campaignID, referrerID = parsedCampaign, parsedReferrer
	}

	res, err := s.entries.Join(ctx, campaignID, p.IdentityID, referrerID)
	if err != nil {
		s.metrics.JoinOutcomes.WithLabelValues(joinLabel(err)).Inc()
		return JoinOutcome{}, err
	}
	s.ids.Touch(ctx, p.IdentityID)
	s.metrics.JoinOutcomes.WithLabelValues("accepted").Inc()
	if res.ReferralCredited {
		s.metrics.ReferralsCredited.Inc()
	}

	return JoinOutcome{
		CampaignID:       campaignID,
		ReferralCredited: res.ReferralCredited,
		ShareLink:        DeepLink(campaignID, p.IdentityID),
	}, nil
}

func joinLabel(err error) string {
	switch {
	case errors.Is(err, entry.ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, entry.ErrNotJoinable):
		return "closed"
	case errors.Is(err, entry.ErrBanned):
		return "banned"
	case errors.Is(err, entry.ErrNotVerified):
		return "unverified"
	default:
		return "error"
	}
}

// Stats aggregates one campaign's state, fanning the independent reads out
// concurrently.
func (s *Service) Stats(ctx context.Context, campaignID string) (CampaignStats, error) {
	var stats CampaignStats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.camps.Get(gctx, campaignID)
		if err != nil {
			return err
		}
		stats.Campaign = c
		return nil
	})
	g.Go(func() error {
		n, err := s.entries.CountValid(gctx, campaignID)
		if err != nil {
			return err
		}
		stats.EntryCount = n
		return nil
	})
	g.Go(func() error {
		r, err := s.draws.Result(gctx, campaignID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return nil
			}
			return err
		}
		stats.Drawn = true
		stats.Winners = r.Winners
		stats.DrawnAt = &r.DrawnAt
		return nil
	})
	if err := g.Wait(); err != nil {
		return CampaignStats{}, err
	}
	return stats, nil
}

// MyStats reports one entrant's standing in a campaign: how many referrals
// they brought and the bonus weight those earned.
func (s *Service) MyStats(ctx context.Context, campaignID, identityID string) (referrals, bonus int, err error) {
	if referrals, err = s.entries.ReferralCount(ctx, campaignID, identityID); err != nil {
		return 0, 0, err
	}
	if bonus, err = s.entries.BonusWeight(ctx, campaignID, identityID); err != nil {
		return 0, 0, err
	}
	return referrals, bonus, nil
}

// RunDraw draws winners for the campaign. A repeated draw is not an error at
// this layer: the recorded result comes back flagged AlreadyDrawn.
func (s *Service) RunDraw(ctx context.Context, campaignID, moderatorID string) (DrawOutcome, error) {
	start := time.Now()
	r, err := s.draws.Draw(ctx, campaignID, moderatorID)
	if err != nil {
		if errors.Is(err, draw.ErrAlreadyDrawn) {
			prior, lookupErr := s.draws.Result(ctx, campaignID)
			if lookupErr != nil {
				return DrawOutcome{}, lookupErr
			}
			return DrawOutcome{
				CampaignID:   prior.CampaignID,
				Winners:      prior.Winners,
				EntryCount:   prior.EntryCount,
				DrawnAt:      prior.DrawnAt,
				AlreadyDrawn: true,
			}, nil
		}
		return DrawOutcome{}, err
	}

	s.metrics.DrawsTotal.Inc()
	s.metrics.DrawDuration.Observe(time.Since(start).Seconds())
	return DrawOutcome{
		CampaignID: r.CampaignID,
		Winners:    r.Winners,
		EntryCount: r.EntryCount,
		DrawnAt:    r.DrawnAt,
	}, nil
}

// Ban applies a moderator ban and reports how many entries it invalidated.
func (s *Service) Ban(ctx context.Context, identityID, moderatorID, reason string, duration time.Duration) (identity.BanRecord, error) {
	rec, err := s.ids.Ban(ctx, identityID, moderatorID, reason, duration)
	if err != nil {
		return identity.BanRecord{}, err
	}
	s.metrics.BansTotal.Inc()
	return rec, nil
}

// Info assembles the moderator view of one identity.
func (s *Service) Info(ctx context.Context, identityID string) (VerificationInfo, error) {
	id, err := s.ids.Get(ctx, identityID)
	if err != nil {
		return VerificationInfo{}, err
	}

	info := VerificationInfo{Identity: id}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h, err := s.ids.History(gctx, identityID, 0)
		if err != nil {
			return err
		}
		info.History = h
		return nil
	})
	g.Go(func() error {
		sib, err := s.fps.SiblingsOf(gctx, identityID)
		if err != nil {
			return err
		}
		info.Siblings = sib
		return nil
	})
	g.Go(func() error {
		bans, err := s.ids.BanHistory(gctx, identityID)
		if err != nil {
			return err
		}
		info.Bans = bans
		return nil
	})
	if err := g.Wait(); err != nil {
		return VerificationInfo{}, err
	}
	return info, nil
}
