//go:build integration

package entry_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"fairdraw/internal/entry"
	"fairdraw/pkg/platform/sentinel"
	"fairdraw/pkg/testutil/containers"
)

type PostgresEntryStoreSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	store     *entry.PostgresStore
	referrals *entry.PostgresReferralStore
	ctx       context.Context
}

func TestPostgresEntryStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresEntryStoreSuite))
}

func (s *PostgresEntryStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = entry.NewPostgres(s.postgres.DB)
	s.referrals = entry.NewPostgresReferralStore(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresEntryStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "entries", "referral_edges"))
}

func (s *PostgresEntryStoreSuite) newEntry(campaignID, identityID string) entry.Entry {
	return entry.Entry{
		CampaignID: campaignID,
		IdentityID: identityID,
		JoinedAt:   time.Now(),
		Valid:      true,
	}
}

func (s *PostgresEntryStoreSuite) TestCreateAndUniqueness() {
	c := uuid.NewString()
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry(c, "u1")))

	err := s.store.Create(s.ctx, s.newEntry(c, "u1"))
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	// Same identity, different campaign is a distinct key.
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry(uuid.NewString(), "u1")))
}

func (s *PostgresEntryStoreSuite) TestReviveAfterInvalidate() {
	c := uuid.NewString()
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry(c, "u1")))
	s.Require().NoError(s.store.Invalidate(s.ctx, c, "u1"))

	e, err := s.store.FindByKey(s.ctx, c, "u1")
	s.Require().NoError(err)
	s.False(e.Valid)

	s.Require().NoError(s.store.Revive(s.ctx, c, "u1", "ref-1"))
	e, err = s.store.FindByKey(s.ctx, c, "u1")
	s.Require().NoError(err)
	s.True(e.Valid)
	s.Equal("ref-1", e.ReferredBy)
}

func (s *PostgresEntryStoreSuite) TestInvalidateByIdentity() {
	c1, c2 := uuid.NewString(), uuid.NewString()
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry(c1, "u1")))
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry(c2, "u1")))
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry(c1, "u2")))

	n, err := s.store.InvalidateByIdentity(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(2, n)

	count, err := s.store.CountValid(s.ctx, c1)
	s.Require().NoError(err)
	s.Equal(1, count)

	// Repeat sweep finds nothing left to invalidate.
	n, err = s.store.InvalidateByIdentity(s.ctx, "u1")
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *PostgresEntryStoreSuite) TestBonusOnlyForValidEntries() {
	c := uuid.NewString()
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry(c, "u1")))
	s.Require().NoError(s.store.IncrementBonus(s.ctx, c, "u1"))

	e, err := s.store.FindByKey(s.ctx, c, "u1")
	s.Require().NoError(err)
	s.Equal(1, e.BonusWeight)
	s.Equal(2, e.Weight())

	s.Require().NoError(s.store.Invalidate(s.ctx, c, "u1"))
	err = s.store.IncrementBonus(s.ctx, c, "u1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresEntryStoreSuite) TestReferralEdgeUniqueness() {
	c := uuid.NewString()
	edge := entry.ReferralEdge{ReferrerID: "r1", ReferredID: "u1", CampaignID: c, CreatedAt: time.Now()}
	s.Require().NoError(s.referrals.Create(s.ctx, edge))
	s.Require().ErrorIs(s.referrals.Create(s.ctx, edge), sentinel.ErrConflict)

	n, err := s.referrals.CountByReferrer(s.ctx, c, "r1")
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *PostgresEntryStoreSuite) TestListValid() {
	c := uuid.NewString()
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry(c, "u1")))
	s.Require().NoError(s.store.Create(s.ctx, s.newEntry(c, "u2")))
	s.Require().NoError(s.store.Invalidate(s.ctx, c, "u2"))

	entries, err := s.store.ListValid(s.ctx, c)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("u1", entries[0].IdentityID)
}
