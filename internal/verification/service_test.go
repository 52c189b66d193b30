package verification

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fairdraw/internal/audit"
	"fairdraw/internal/fingerprint"
	"fairdraw/internal/identity"
	dErrors "fairdraw/pkg/domain-errors"
	"fairdraw/pkg/platform/tx"
)

type noopInvalidator struct{}

func (noopInvalidator) InvalidateByIdentity(context.Context, string) (int, error) { return 0, nil }

type VerificationServiceSuite struct {
	suite.Suite
	svc   *Service
	store *MemoryStore
	ids   *identity.Service
	fps   *fingerprint.Service
	ctx   context.Context
}

func TestVerificationServiceSuite(t *testing.T) {
	suite.Run(t, new(VerificationServiceSuite))
}

func (s *VerificationServiceSuite) SetupTest() {
	s.ctx = context.Background()
	log := slog.New(slog.DiscardHandler)
	txr := &tx.ShardedRunner{}

	s.ids = identity.NewService(
		identity.NewMemoryStore(),
		identity.NewMemoryBanStore(),
		identity.NewMemoryHistoryStore(),
		txr, audit.Noop{}, log, time.Hour,
	)
	s.ids.BindEntryInvalidator(noopInvalidator{})
	s.fps = fingerprint.NewService(fingerprint.NewMemoryStore())

	s.store = NewMemoryStore()
	s.svc = NewService(s.store, s.ids, s.fps, txr, audit.Noop{}, log, 5*time.Minute, 3)
}

func (s *VerificationServiceSuite) register(id string) {
	_, err := s.ids.Upsert(s.ctx, identity.UpsertParams{ID: id, Username: "user_" + id})
	s.Require().NoError(err)
}

// backdate shifts the live challenge's issue time so expiry can be exercised
// without sleeping.
func (s *VerificationServiceSuite) backdate(identityID string, by time.Duration) {
	ch, err := s.store.Get(s.ctx, identityID)
	s.Require().NoError(err)
	ch.IssuedAt = ch.IssuedAt.Add(-by)
	s.Require().NoError(s.store.Put(s.ctx, ch))
}

func (s *VerificationServiceSuite) TestIssue() {
	s.Run("issues a solvable puzzle", func() {
		s.register("a")
		ch, err := s.svc.Issue(s.ctx, "a", "fp-a")
		s.Require().NoError(err)
		s.Equal("a", ch.IdentityID)
		s.NotEmpty(ch.Question)
		s.Zero(ch.Attempts)
	})

	s.Run("re-issue replaces the live challenge", func() {
		s.register("b")
		_, err := s.svc.Issue(s.ctx, "b", "")
		s.Require().NoError(err)
		_, err = s.svc.Submit(s.ctx, "b", -999)
		s.Require().NoError(err)

		fresh, err := s.svc.Issue(s.ctx, "b", "")
		s.Require().NoError(err)

		// The burned attempt belonged to the old generation.
		stored, err := s.store.Get(s.ctx, "b")
		s.Require().NoError(err)
		s.Zero(stored.Attempts)
		s.Equal(fresh.Question, stored.Question)
	})

	s.Run("banned identity is refused", func() {
		s.register("c")
		_, err := s.ids.Ban(s.ctx, "c", "mod-1", "spam", time.Hour)
		s.Require().NoError(err)

		_, err = s.svc.Issue(s.ctx, "c", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("already verified identity is refused", func() {
		s.register("d")
		ch, err := s.svc.Issue(s.ctx, "d", "")
		s.Require().NoError(err)
		res, err := s.svc.Submit(s.ctx, "d", ch.Answer)
		s.Require().NoError(err)
		s.Require().Equal(OutcomeCorrect, res.Outcome)

		_, err = s.svc.Issue(s.ctx, "d", "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *VerificationServiceSuite) TestSubmit() {
	s.Run("correct answer verifies and journals", func() {
		s.register("ok")
		ch, err := s.svc.Issue(s.ctx, "ok", "fp-ok")
		s.Require().NoError(err)

		res, err := s.svc.Submit(s.ctx, "ok", ch.Answer)
		s.Require().NoError(err)
		s.Equal(OutcomeCorrect, res.Outcome)
		s.True(s.ids.IsVerified(s.ctx, "ok"))

		history, err := s.ids.History(s.ctx, "ok", 10)
		s.Require().NoError(err)
		s.Require().Len(history, 1)
		s.True(history[0].Success)
	})

	s.Run("wrong answers burn attempts until exhaustion", func() {
		s.register("wrong")
		ch, err := s.svc.Issue(s.ctx, "wrong", "")
		s.Require().NoError(err)
		bad := ch.Answer + 1

		res, err := s.svc.Submit(s.ctx, "wrong", bad)
		s.Require().NoError(err)
		s.Equal(OutcomeIncorrect, res.Outcome)
		s.Equal(2, res.AttemptsLeft)

		res, err = s.svc.Submit(s.ctx, "wrong", bad)
		s.Require().NoError(err)
		s.Equal(1, res.AttemptsLeft)

		res, err = s.svc.Submit(s.ctx, "wrong", bad)
		s.Require().NoError(err)
		s.Equal(OutcomeIncorrect, res.Outcome)
		s.Zero(res.AttemptsLeft)

		// Challenge is consumed; a fourth answer has nothing to resolve.
		res, err = s.svc.Submit(s.ctx, "wrong", ch.Answer)
		s.Require().NoError(err)
		s.Equal(OutcomeNoChallenge, res.Outcome)
		s.False(s.ids.IsVerified(s.ctx, "wrong"))
	})

	s.Run("recovers on a correct answer before exhaustion", func() {
		s.register("late")
		ch, err := s.svc.Issue(s.ctx, "late", "")
		s.Require().NoError(err)

		_, err = s.svc.Submit(s.ctx, "late", ch.Answer+1)
		s.Require().NoError(err)

		res, err := s.svc.Submit(s.ctx, "late", ch.Answer)
		s.Require().NoError(err)
		s.Equal(OutcomeCorrect, res.Outcome)
	})

	s.Run("stale challenge expires even with a correct answer", func() {
		s.register("slow")
		ch, err := s.svc.Issue(s.ctx, "slow", "")
		s.Require().NoError(err)
		s.backdate("slow", 6*time.Minute)

		res, err := s.svc.Submit(s.ctx, "slow", ch.Answer)
		s.Require().NoError(err)
		s.Equal(OutcomeExpired, res.Outcome)
		s.False(s.ids.IsVerified(s.ctx, "slow"))

		// Expiry consumes the challenge.
		res, err = s.svc.Submit(s.ctx, "slow", ch.Answer)
		s.Require().NoError(err)
		s.Equal(OutcomeNoChallenge, res.Outcome)
	})

	s.Run("challenge within the window still resolves", func() {
		s.register("fast")
		ch, err := s.svc.Issue(s.ctx, "fast", "")
		s.Require().NoError(err)
		s.backdate("fast", 4*time.Minute)

		res, err := s.svc.Submit(s.ctx, "fast", ch.Answer)
		s.Require().NoError(err)
		s.Equal(OutcomeCorrect, res.Outcome)
	})

	s.Run("no live challenge reports no_active_challenge", func() {
		s.register("idle")
		res, err := s.svc.Submit(s.ctx, "idle", 7)
		s.Require().NoError(err)
		s.Equal(OutcomeNoChallenge, res.Outcome)
	})
}

func (s *VerificationServiceSuite) TestSiblingAdvisory() {
	s.Run("success surfaces identities sharing the fingerprint", func() {
		s.register("x")
		s.register("y")
		s.Require().NoError(s.fps.Record(s.ctx, "x", "shared-fp"))
		s.Require().NoError(s.fps.Record(s.ctx, "y", "shared-fp"))

		ch, err := s.svc.Issue(s.ctx, "x", "shared-fp")
		s.Require().NoError(err)

		res, err := s.svc.Submit(s.ctx, "x", ch.Answer)
		s.Require().NoError(err)
		s.Equal(OutcomeCorrect, res.Outcome)
		s.Equal([]string{"y"}, res.Siblings)
		s.True(s.ids.IsVerified(s.ctx, "x"), "duplicate origin never blocks verification")
	})
}

func TestGeneratePuzzle(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, nil, &tx.ShardedRunner{}, audit.Noop{}, slog.New(slog.DiscardHandler), time.Minute, 3)
	for i := 0; i < 200; i++ {
		question, answer := generatePuzzle(svc.rng)
		if question == "" {
			t.Fatal("empty question")
		}
		// Operands stay in 1..10, so every answer falls in [-9, 100].
		if answer < -9 || answer > 100 {
			t.Fatalf("answer %d out of range for %q", answer, question)
		}
	}
}
