package draw_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fairdraw/internal/audit"
	"fairdraw/internal/campaign"
	"fairdraw/internal/draw"
	"fairdraw/internal/entry"
	"fairdraw/internal/identity"
	dErrors "fairdraw/pkg/domain-errors"
	"fairdraw/pkg/platform/tx"
)

type DrawServiceSuite struct {
	suite.Suite
	ids     *identity.Service
	camps   *campaign.Service
	entries *entry.Service
	svc     *draw.Service
	ctx     context.Context
}

func TestDrawServiceSuite(t *testing.T) {
	suite.Run(t, new(DrawServiceSuite))
}

func (s *DrawServiceSuite) SetupTest() {
	s.ctx = context.Background()
	log := slog.New(slog.DiscardHandler)
	txr := &tx.ShardedRunner{}

	s.ids = identity.NewService(
		identity.NewMemoryStore(),
		identity.NewMemoryBanStore(),
		identity.NewMemoryHistoryStore(),
		txr, audit.Noop{}, log, time.Hour,
	)
	s.camps = campaign.NewService(campaign.NewMemoryStore(), txr, audit.Noop{})
	s.entries = entry.NewService(
		entry.NewMemoryStore(),
		entry.NewMemoryReferralStore(),
		s.camps, s.ids, txr, audit.Noop{}, log,
	)
	s.ids.BindEntryInvalidator(s.entries)
	s.svc = draw.NewService(draw.NewMemoryStore(), s.entries, s.camps, txr, audit.Noop{}, log)
}

func (s *DrawServiceSuite) campaignWithEntrants(winnerCount, entrants int) campaign.Campaign {
	c, err := s.camps.Create(s.ctx, campaign.CreateParams{
		Title:       "Drawing",
		WinnerCount: winnerCount,
		ModeratorID: "mod-1",
	})
	s.Require().NoError(err)
	for i := 0; i < entrants; i++ {
		id := fmt.Sprintf("p%d", i)
		_, err := s.ids.Upsert(s.ctx, identity.UpsertParams{ID: id})
		s.Require().NoError(err)
		// Entrants recur across subtests; tolerate a repeat verification.
		if err := s.ids.MarkVerified(s.ctx, id, "puzzle"); err != nil {
			s.Require().True(dErrors.HasCode(err, dErrors.CodeConflict))
		}
		_, err = s.entries.Join(s.ctx, c.ID, id, "")
		s.Require().NoError(err)
	}
	return c
}

func (s *DrawServiceSuite) TestDraw() {
	s.Run("draws the requested number of distinct winners", func() {
		c := s.campaignWithEntrants(3, 10)
		res, err := s.svc.Draw(s.ctx, c.ID, "mod-1")
		s.Require().NoError(err)
		s.Len(res.Winners, 3)
		s.Equal(10, res.EntryCount)
		s.Equal("mod-1", res.DrawnBy)

		seen := map[string]bool{}
		for _, w := range res.Winners {
			s.False(seen[w])
			seen[w] = true
		}
	})

	s.Run("winner count caps at the pool size", func() {
		c := s.campaignWithEntrants(5, 2)
		res, err := s.svc.Draw(s.ctx, c.ID, "mod-1")
		s.Require().NoError(err)
		s.Len(res.Winners, 2)
	})

	s.Run("drawing closes an open campaign", func() {
		c := s.campaignWithEntrants(1, 3)
		_, err := s.svc.Draw(s.ctx, c.ID, "mod-1")
		s.Require().NoError(err)

		got, err := s.camps.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(campaign.StatusClosed, got.Status)
	})

	s.Run("second draw is a conflict, the record survives", func() {
		c := s.campaignWithEntrants(2, 5)
		first, err := s.svc.Draw(s.ctx, c.ID, "mod-1")
		s.Require().NoError(err)

		_, err = s.svc.Draw(s.ctx, c.ID, "mod-2")
		s.Require().ErrorIs(err, draw.ErrAlreadyDrawn)

		stored, err := s.svc.Result(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(first.Winners, stored.Winners)
		s.Equal(first.Seed, stored.Seed)
	})

	s.Run("empty pool refuses to draw", func() {
		c := s.campaignWithEntrants(1, 0)
		_, err := s.svc.Draw(s.ctx, c.ID, "mod-1")
		s.Require().ErrorIs(err, draw.ErrNoEligibleEntrants)

		_, err = s.svc.Result(s.ctx, c.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "a refused draw records nothing")
	})

	s.Run("banned entrants never win", func() {
		c := s.campaignWithEntrants(3, 3)
		_, err := s.ids.Ban(s.ctx, "p0", "mod-1", "spam", time.Hour)
		s.Require().NoError(err)

		res, err := s.svc.Draw(s.ctx, c.ID, "mod-1")
		s.Require().NoError(err)
		s.Len(res.Winners, 2)
		s.NotContains(res.Winners, "p0")
	})

	s.Run("unknown campaign is not found", func() {
		_, err := s.svc.Draw(s.ctx, "missing", "mod-1")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *DrawServiceSuite) TestResult() {
	c := s.campaignWithEntrants(1, 1)
	_, err := s.svc.Result(s.ctx, c.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.Draw(s.ctx, c.ID, "mod-1")
	s.Require().NoError(err)

	res, err := s.svc.Result(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.ID, res.CampaignID)
	s.False(res.DrawnAt.IsZero())
}
