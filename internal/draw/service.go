package draw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"fairdraw/internal/audit"
	"fairdraw/internal/campaign"
	"fairdraw/internal/entry"
	dErrors "fairdraw/pkg/domain-errors"
	"fairdraw/pkg/platform/sentinel"
	"fairdraw/pkg/platform/tx"
)

// ErrAlreadyDrawn marks a repeated draw; the recorded result is still
// readable through Result.
var ErrAlreadyDrawn = dErrors.New(dErrors.CodeConflict, "campaign already drawn")

// ErrNoEligibleEntrants marks a draw over an empty effective pool.
var ErrNoEligibleEntrants = dErrors.New(dErrors.CodeConflict, "no eligible entrants")

// EntrySource supplies the effective pool: valid entries of non-banned
// identities with their weights.
type EntrySource interface {
	EffectiveEntries(ctx context.Context, campaignID string) ([]entry.WeightedEntry, error)
}

// Campaigns is the slice of the campaign registry the draw consults.
type Campaigns interface {
	Get(ctx context.Context, id string) (campaign.Campaign, error)
	Close(ctx context.Context, id, moderatorID string) error
}

// Service runs and records draws. A campaign is drawn at most once; the
// recorded result, including the seed, is permanent.
type Service struct {
	store     Store
	entries   EntrySource
	campaigns Campaigns
	txr       tx.Runner
	auditor   audit.Emitter
	log       *slog.Logger
	seedFn    func() int64
}

func NewService(store Store, entries EntrySource, campaigns Campaigns, txr tx.Runner, auditor audit.Emitter, log *slog.Logger) *Service {
	return &Service{
		store:     store,
		entries:   entries,
		campaigns: campaigns,
		txr:       txr,
		auditor:   auditor,
		log:       log,
		seedFn:    func() int64 { return time.Now().UnixNano() },
	}
}

// Draw closes the campaign if still open, samples min(winnerCount, pool size)
// distinct winners weighted by effective entry weight, and records the result.
// A second call returns ErrAlreadyDrawn.
func (s *Service) Draw(ctx context.Context, campaignID, moderatorID string) (Result, error) {
	var result Result
	start := time.Now()

	c, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return Result{}, err
	}
	if c.Status == campaign.StatusOpen {
		// Drawing ends the campaign. Close runs its own transaction on the
		// same key, so it has to happen before the draw transaction starts.
		if err := s.campaigns.Close(ctx, campaignID, moderatorID); err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
			return Result{}, err
		}
	}

	err = s.txr.RunInTx(ctx, campaignID, func(ctx context.Context) error {
		if _, err := s.store.FindByCampaign(ctx, campaignID); err == nil {
			return ErrAlreadyDrawn
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "check prior draw")
		}

		pool, err := s.entries.EffectiveEntries(ctx, campaignID)
		if err != nil {
			return err
		}
		if len(pool) == 0 {
			return ErrNoEligibleEntrants
		}

		seed := s.seedFn()
		rng := rand.New(rand.NewPCG(uint64(seed), 0))
		winners := selectWinners(pool, c.WinnerCount, rng)

		result = Result{
			CampaignID: campaignID,
			Winners:    winners,
			Seed:       seed,
			EntryCount: len(pool),
			DrawnAt:    time.Now(),
			DrawnBy:    moderatorID,
		}
		if err := s.store.Save(ctx, result); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return ErrAlreadyDrawn
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "save draw result")
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.log.Info("draw recorded",
		"campaign_id", campaignID,
		"winners", len(result.Winners),
		"pool", result.EntryCount,
		"elapsed", time.Since(start))
	_ = s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionDrawRecorded,
		ActorID:    moderatorID,
		CampaignID: campaignID,
		Detail:     fmt.Sprintf("winners: %s", strings.Join(result.Winners, ", ")),
	})
	return result, nil
}

// Result returns the recorded draw for the campaign, sentinel-mapped NotFound
// when no draw has happened.
func (s *Service) Result(ctx context.Context, campaignID string) (Result, error) {
	r, err := s.store.FindByCampaign(ctx, campaignID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Result{}, dErrors.Newf(dErrors.CodeNotFound, "campaign %s has not been drawn", campaignID)
		}
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "load draw result")
	}
	return r, nil
}
