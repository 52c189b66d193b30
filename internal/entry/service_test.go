package entry_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fairdraw/internal/audit"
	"fairdraw/internal/campaign"
	"fairdraw/internal/entry"
	"fairdraw/internal/identity"
	dErrors "fairdraw/pkg/domain-errors"
	"fairdraw/pkg/platform/tx"
)

type EntryServiceSuite struct {
	suite.Suite
	ids   *identity.Service
	camps *campaign.Service
	svc   *entry.Service
	ctx   context.Context
}

func TestEntryServiceSuite(t *testing.T) {
	suite.Run(t, new(EntryServiceSuite))
}

func (s *EntryServiceSuite) SetupTest() {
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
	s.svc = entry.NewService(
		entry.NewMemoryStore(),
		entry.NewMemoryReferralStore(),
		s.camps, s.ids, txr, audit.Noop{}, log,
	)
	s.ids.BindEntryInvalidator(s.svc)
}

func (s *EntryServiceSuite) verified(id string) string {
	_, err := s.ids.Upsert(s.ctx, identity.UpsertParams{ID: id, Username: "user_" + id})
	s.Require().NoError(err)
	s.Require().NoError(s.ids.MarkVerified(s.ctx, id, "puzzle"))
	return id
}

func (s *EntryServiceSuite) openCampaign() campaign.Campaign {
	c, err := s.camps.Create(s.ctx, campaign.CreateParams{
		Title:       "Drawing",
		WinnerCount: 1,
		ModeratorID: "mod-1",
	})
	s.Require().NoError(err)
	return c
}

func (s *EntryServiceSuite) TestJoinPreconditions() {
	s.Run("verified identity joins an open campaign", func() {
		c := s.openCampaign()
		id := s.verified("p1")

		res, err := s.svc.Join(s.ctx, c.ID, id, "")
		s.Require().NoError(err)
		s.Equal(1, res.Entry.Weight())
		s.False(res.ReferralCredited)
	})

	s.Run("second join is rejected", func() {
		c := s.openCampaign()
		id := s.verified("p2")
		_, err := s.svc.Join(s.ctx, c.ID, id, "")
		s.Require().NoError(err)

		_, err = s.svc.Join(s.ctx, c.ID, id, "")
		s.Require().ErrorIs(err, entry.ErrAlreadyJoined)
	})

	s.Run("closed campaign rejects joins", func() {
		c := s.openCampaign()
		s.Require().NoError(s.camps.Close(s.ctx, c.ID, "mod-1"))

		_, err := s.svc.Join(s.ctx, c.ID, s.verified("p3"), "")
		s.Require().ErrorIs(err, entry.ErrNotJoinable)
	})

	s.Run("unverified identity is rejected", func() {
		c := s.openCampaign()
		_, err := s.ids.Upsert(s.ctx, identity.UpsertParams{ID: "raw"})
		s.Require().NoError(err)

		_, err = s.svc.Join(s.ctx, c.ID, "raw", "")
		s.Require().ErrorIs(err, entry.ErrNotVerified)
	})

	s.Run("banned identity is rejected even when verified", func() {
		c := s.openCampaign()
		id := s.verified("outlaw")
		_, err := s.ids.Ban(s.ctx, id, "mod-1", "spam", time.Hour)
		s.Require().NoError(err)

		_, err = s.svc.Join(s.ctx, c.ID, id, "")
		s.Require().ErrorIs(err, entry.ErrBanned)
	})

	s.Run("unknown campaign is not found", func() {
		_, err := s.svc.Join(s.ctx, "missing", s.verified("p4"), "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EntryServiceSuite) TestReferrals() {
	s.Run("a valid referrer earns one bonus per distinct referral", func() {
		c := s.openCampaign()
		ref := s.verified("ref")
		_, err := s.svc.Join(s.ctx, c.ID, ref, "")
		s.Require().NoError(err)

		res, err := s.svc.Join(s.ctx, c.ID, s.verified("friend1"), ref)
		s.Require().NoError(err)
		s.True(res.ReferralCredited)

		res, err = s.svc.Join(s.ctx, c.ID, s.verified("friend2"), ref)
		s.Require().NoError(err)
		s.True(res.ReferralCredited)

		bonus, err := s.svc.BonusWeight(s.ctx, c.ID, ref)
		s.Require().NoError(err)
		s.Equal(2, bonus)

		n, err := s.svc.ReferralCount(s.ctx, c.ID, ref)
		s.Require().NoError(err)
		s.Equal(2, n)
	})

	s.Run("self-referral is dropped, join still succeeds", func() {
		c := s.openCampaign()
		id := s.verified("selfish")

		res, err := s.svc.Join(s.ctx, c.ID, id, id)
		s.Require().NoError(err)
		s.False(res.ReferralCredited)

		bonus, err := s.svc.BonusWeight(s.ctx, c.ID, id)
		s.Require().NoError(err)
		s.Zero(bonus)
	})

	s.Run("referrer without an entry earns nothing", func() {
		c := s.openCampaign()
		outsider := s.verified("outsider")

		res, err := s.svc.Join(s.ctx, c.ID, s.verified("friend3"), outsider)
		s.Require().NoError(err)
		s.False(res.ReferralCredited)
	})

	s.Run("rejoin after removal cannot double-credit the referrer", func() {
		c := s.openCampaign()
		ref := s.verified("anchor")
		_, err := s.svc.Join(s.ctx, c.ID, ref, "")
		s.Require().NoError(err)

		bouncer := s.verified("bouncer")
		_, err = s.svc.Join(s.ctx, c.ID, bouncer, ref)
		s.Require().NoError(err)
		s.Require().NoError(s.svc.Remove(s.ctx, c.ID, bouncer, "mod-1"))

		res, err := s.svc.Join(s.ctx, c.ID, bouncer, ref)
		s.Require().NoError(err)
		s.False(res.ReferralCredited, "the referral edge already exists")

		bonus, err := s.svc.BonusWeight(s.ctx, c.ID, ref)
		s.Require().NoError(err)
		s.Equal(1, bonus)
	})
}

func (s *EntryServiceSuite) TestRemoveAndRevive() {
	s.Run("removal soft-deletes and a rejoin revives", func() {
		c := s.openCampaign()
		id := s.verified("yo-yo")
		_, err := s.svc.Join(s.ctx, c.ID, id, "")
		s.Require().NoError(err)

		s.Require().NoError(s.svc.Remove(s.ctx, c.ID, id, "mod-1"))
		n, err := s.svc.CountValid(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Zero(n)

		res, err := s.svc.Join(s.ctx, c.ID, id, "")
		s.Require().NoError(err)
		s.True(res.Entry.Valid)
		n, err = s.svc.CountValid(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(1, n)
	})

	s.Run("removing a missing entry is not found", func() {
		c := s.openCampaign()
		err := s.svc.Remove(s.ctx, c.ID, "nobody", "mod-1")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *EntryServiceSuite) TestBanCascade() {
	s.Run("a ban invalidates entries across all campaigns", func() {
		c1 := s.openCampaign()
		c2 := s.openCampaign()
		id := s.verified("cheater")
		_, err := s.svc.Join(s.ctx, c1.ID, id, "")
		s.Require().NoError(err)
		_, err = s.svc.Join(s.ctx, c2.ID, id, "")
		s.Require().NoError(err)

		_, err = s.ids.Ban(s.ctx, id, "mod-1", "multi-accounting", time.Hour)
		s.Require().NoError(err)

		for _, cid := range []string{c1.ID, c2.ID} {
			n, err := s.svc.CountValid(s.ctx, cid)
			s.Require().NoError(err)
			s.Zero(n)
		}
	})

	s.Run("unban does not resurrect invalidated entries", func() {
		c := s.openCampaign()
		id := s.verified("pardoned")
		_, err := s.svc.Join(s.ctx, c.ID, id, "")
		s.Require().NoError(err)

		_, err = s.ids.Ban(s.ctx, id, "mod-1", "spam", time.Hour)
		s.Require().NoError(err)
		s.Require().NoError(s.ids.Unban(s.ctx, id, "mod-1"))

		pool, err := s.svc.EffectiveEntries(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Empty(pool)
	})
}

func (s *EntryServiceSuite) TestEffectiveEntries() {
	s.Run("weights follow one plus bonus", func() {
		c := s.openCampaign()
		ref := s.verified("heavy")
		_, err := s.svc.Join(s.ctx, c.ID, ref, "")
		s.Require().NoError(err)
		_, err = s.svc.Join(s.ctx, c.ID, s.verified("light"), ref)
		s.Require().NoError(err)

		pool, err := s.svc.EffectiveEntries(s.ctx, c.ID)
		s.Require().NoError(err)
		weights := map[string]int{}
		for _, w := range pool {
			weights[w.IdentityID] = w.Weight
		}
		s.Equal(map[string]int{"heavy": 2, "light": 1}, weights)
	})

	s.Run("a banned owner is excluded even when the cascade missed", func() {
		// Bind a no-op invalidator so the ban leaves the entry valid,
		// simulating a cascade that raced the join.
		log := slog.New(slog.DiscardHandler)
		txr := &tx.ShardedRunner{}
		ids := identity.NewService(
			identity.NewMemoryStore(),
			identity.NewMemoryBanStore(),
			identity.NewMemoryHistoryStore(),
			txr, audit.Noop{}, log, time.Hour,
		)
		ids.BindEntryInvalidator(noopInvalidator{})
		svc := entry.NewService(
			entry.NewMemoryStore(),
			entry.NewMemoryReferralStore(),
			s.camps, ids, txr, audit.Noop{}, log,
		)

		c := s.openCampaign()
		_, err := ids.Upsert(s.ctx, identity.UpsertParams{ID: "sneaky"})
		s.Require().NoError(err)
		s.Require().NoError(ids.MarkVerified(s.ctx, "sneaky", "puzzle"))
		_, err = svc.Join(s.ctx, c.ID, "sneaky", "")
		s.Require().NoError(err)

		_, err = ids.Ban(s.ctx, "sneaky", "mod-1", "spam", time.Hour)
		s.Require().NoError(err)

		n, err := svc.CountValid(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(1, n, "the entry itself is still valid")

		pool, err := svc.EffectiveEntries(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Empty(pool)
	})
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateByIdentity(context.Context, string) (int, error) { return 0, nil }

func (s *EntryServiceSuite) TestConcurrentJoins() {
	c := s.openCampaign()
	id := s.verified("racer")

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.svc.Join(s.ctx, c.ID, id, ""); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded, "exactly one concurrent join wins")
	n, err := s.svc.CountValid(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *EntryServiceSuite) TestConcurrentReferrals() {
	c := s.openCampaign()
	ref := s.verified("magnet")
	_, err := s.svc.Join(s.ctx, c.ID, ref, "")
	s.Require().NoError(err)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := s.verified(fmt.Sprintf("fan-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.Join(s.ctx, c.ID, id, ref)
			s.NoError(err)
		}()
	}
	wg.Wait()

	bonus, err := s.svc.BonusWeight(s.ctx, c.ID, ref)
	s.Require().NoError(err)
	s.Equal(n, bonus)
}
