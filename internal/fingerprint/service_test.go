package fingerprint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	dErrors "fairdraw/pkg/domain-errors"
)

func TestDerive(t *testing.T) {
	t.Run("is stable for identical inputs", func(t *testing.T) {
		a := Derive("alice", "Mozilla/5.0 (X11; Linux x86_64) Firefox/120.0")
		b := Derive("alice", "Mozilla/5.0 (X11; Linux x86_64) Firefox/120.0")
		assert.Equal(t, a, b)
		assert.Len(t, a, 32)
	})

	t.Run("username case does not split clusters", func(t *testing.T) {
		assert.Equal(t, Derive("Alice", ""), Derive("alice", ""))
	})

	t.Run("browser version churn does not split clusters", func(t *testing.T) {
		v1 := Derive("alice", "Mozilla/5.0 (X11; Linux x86_64) Firefox/120.0")
		v2 := Derive("alice", "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0")
		assert.Equal(t, v1, v2)
	})

	t.Run("different usernames diverge", func(t *testing.T) {
		assert.NotEqual(t, Derive("alice", ""), Derive("bob", ""))
	})
}

type FingerprintServiceSuite struct {
	suite.Suite
	svc *Service
	ctx context.Context
}

func TestFingerprintServiceSuite(t *testing.T) {
	suite.Run(t, new(FingerprintServiceSuite))
}

func (s *FingerprintServiceSuite) SetupTest() {
	s.svc = NewService(NewMemoryStore())
	s.ctx = context.Background()
}

func (s *FingerprintServiceSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *FingerprintServiceSuite) TestSiblings() {
	s.Run("identities sharing a fingerprint see each other", func() {
		s.Require().NoError(s.svc.Record(s.ctx, "a", "fp-1"))
		s.Require().NoError(s.svc.Record(s.ctx, "b", "fp-1"))
		s.Require().NoError(s.svc.Record(s.ctx, "c", "fp-2"))

		siblings, err := s.svc.SiblingsOf(s.ctx, "a")
		s.Require().NoError(err)
		s.Equal([]string{"b"}, siblings)

		siblings, err = s.svc.SiblingsOf(s.ctx, "c")
		s.Require().NoError(err)
		s.Empty(siblings)
	})

	s.Run("unknown identity has no siblings", func() {
		siblings, err := s.svc.SiblingsOf(s.ctx, "ghost")
		s.Require().NoError(err)
		s.Nil(siblings)
	})

	s.Run("a fingerprint change keeps the old membership", func() {
		s.Require().NoError(s.svc.Record(s.ctx, "mover", "fp-old"))
		s.Require().NoError(s.svc.Record(s.ctx, "stay", "fp-old"))
		s.Require().NoError(s.svc.Record(s.ctx, "mover", "fp-new"))

		// The stay-behind identity still clusters with the mover's past.
		siblings, err := s.svc.SiblingsOf(s.ctx, "stay")
		s.Require().NoError(err)
		s.Equal([]string{"mover"}, siblings)
	})
}

func (s *FingerprintServiceSuite) TestSuspicious() {
	s.Run("reports clusters at or above the threshold", func() {
		for _, id := range []string{"a", "b", "c"} {
			s.Require().NoError(s.svc.Record(s.ctx, id, "crowded"))
		}
		s.Require().NoError(s.svc.Record(s.ctx, "d", "lonely"))

		clusters, err := s.svc.Suspicious(s.ctx, 3)
		s.Require().NoError(err)
		s.Require().Len(clusters, 1)
		s.Equal("crowded", clusters[0].Fingerprint.Value)
		s.Equal(3, clusters[0].Fingerprint.MemberCount)
		s.ElementsMatch([]string{"a", "b", "c"}, clusters[0].Members)
	})

	s.Run("threshold floor is two", func() {
		s.Require().NoError(s.svc.Record(s.ctx, "solo", "single"))

		clusters, err := s.svc.Suspicious(s.ctx, 0)
		s.Require().NoError(err)
		s.Empty(clusters)
	})
}

func (s *FingerprintServiceSuite) TestRecordValidation() {
	err := s.svc.Record(s.ctx, "", "fp")
	require.Error(s.T(), err)
	assert.True(s.T(), dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
