package verification

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"fairdraw/internal/audit"
	"fairdraw/internal/identity"
	dErrors "fairdraw/pkg/domain-errors"
	"fairdraw/pkg/platform/sentinel"
	"fairdraw/pkg/platform/tx"
)

// MethodPuzzle is the verification method recorded for arithmetic challenges.
const MethodPuzzle = "puzzle"

// IdentityGate is the slice of the identity service the challenge manager
// needs.
type IdentityGate interface {
	IsVerified(ctx context.Context, id string) bool
	IsBanned(ctx context.Context, id string) bool
	MarkVerified(ctx context.Context, id, method string) error
	RecordAttempt(ctx context.Context, attempt identity.VerificationAttempt) error
}

// SiblingResolver surfaces duplicate-origin identities after a successful
// verification. Implemented by the fingerprint service.
type SiblingResolver interface {
	SiblingsOf(ctx context.Context, identityID string) ([]string, error)
}

// Service runs the per-identity challenge state machine:
// NoChallenge -> Issued -> {Resolved, Expired}. Issue and Submit for the same
// identity serialize through the tx runner, so a Submit racing a fresh Issue
// resolves against exactly one challenge generation (last-issued-wins).
type Service struct {
	store    ChallengeStore
	ids      IdentityGate
	siblings SiblingResolver
	txr      tx.Runner
	auditor  audit.Emitter
	log      *slog.Logger

	ttl         time.Duration
	maxAttempts int

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewService(store ChallengeStore, ids IdentityGate, siblings SiblingResolver, txr tx.Runner, auditor audit.Emitter, log *slog.Logger, ttl time.Duration, maxAttempts int) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Service{
		store:       store,
		ids:         ids,
		siblings:    siblings,
		txr:         txr,
		auditor:     auditor,
		log:         log,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Issue creates a fresh challenge for the identity, replacing any live one.
func (s *Service) Issue(ctx context.Context, identityID, fp string) (Challenge, error) {
	if identityID == "" {
		return Challenge{}, dErrors.New(dErrors.CodeInvalidInput, "identity id is required")
	}
	if s.ids.IsBanned(ctx, identityID) {
		return Challenge{}, dErrors.New(dErrors.CodeForbidden, "identity is banned")
	}
	if s.ids.IsVerified(ctx, identityID) {
		return Challenge{}, dErrors.New(dErrors.CodeConflict, "identity already verified")
	}

	s.rngMu.Lock()
	question, answer := generatePuzzle(s.rng)
	s.rngMu.Unlock()

	ch := Challenge{
		IdentityID:  identityID,
		Question:    question,
		Answer:      answer,
		IssuedAt:    time.Now(),
		Fingerprint: fp,
	}

	err := s.txr.RunInTx(ctx, identityID, func(ctx context.Context) error {
		return s.store.Put(ctx, ch)
	})
	if err != nil {
		return Challenge{}, dErrors.Wrap(err, dErrors.CodeInternal, "store challenge")
	}

	_ = s.auditor.Emit(ctx, audit.Event{
		Action:     audit.ActionChallengeIssued,
		IdentityID: identityID,
	})
	return ch, nil
}

// Submit resolves an answer against the live challenge. Every terminal
// outcome (success, expiry, attempt exhaustion) consumes the challenge and is
// journaled; only a non-final incorrect answer keeps it alive.
func (s *Service) Submit(ctx context.Context, identityID string, answer int) (SubmitResult, error) {
	if identityID == "" {
		return SubmitResult{}, dErrors.New(dErrors.CodeInvalidInput, "identity id is required")
	}

	var (
		result SubmitResult
		ch     Challenge
	)
	err := s.txr.RunInTx(ctx, identityID, func(ctx context.Context) error {
		var err error
		ch, err = s.store.Get(ctx, identityID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				result = SubmitResult{Outcome: OutcomeNoChallenge}
				return nil
			}
			return err
		}

		switch {
		case time.Since(ch.IssuedAt) > s.ttl:
			result = SubmitResult{Outcome: OutcomeExpired}
			return s.store.Delete(ctx, identityID)

		case answer == ch.Answer:
			result = SubmitResult{Outcome: OutcomeCorrect}
			return s.store.Delete(ctx, identityID)

		default:
			ch.Attempts++
			if ch.Attempts >= s.maxAttempts {
				result = SubmitResult{Outcome: OutcomeIncorrect, AttemptsLeft: 0}
				return s.store.Delete(ctx, identityID)
			}
			result = SubmitResult{Outcome: OutcomeIncorrect, AttemptsLeft: s.maxAttempts - ch.Attempts}
			return s.store.Put(ctx, ch)
		}
	})
	if err != nil {
		return SubmitResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "submit challenge")
	}

	switch result.Outcome {
	case OutcomeNoChallenge:
		return result, nil

	case OutcomeCorrect:
		if err := s.ids.MarkVerified(ctx, identityID, MethodPuzzle); err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
			return SubmitResult{}, err
		}
		s.journal(ctx, identityID, ch.Fingerprint, true)
		siblings, err := s.siblings.SiblingsOf(ctx, identityID)
		if err != nil {
			// Advisory lookup; a failure here must not undo verification.
			s.log.Warn("sibling lookup failed", "identity_id", identityID, "error", err)
		}
		result.Siblings = siblings
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:     audit.ActionVerificationPassed,
			IdentityID: identityID,
		})
		return result, nil

	default:
		s.journal(ctx, identityID, ch.Fingerprint, false)
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:     audit.ActionVerificationFailed,
			IdentityID: identityID,
			Detail:     string(result.Outcome),
		})
		return result, nil
	}
}

func (s *Service) journal(ctx context.Context, identityID, fp string, success bool) {
	err := s.ids.RecordAttempt(ctx, identity.VerificationAttempt{
		IdentityID:  identityID,
		Method:      MethodPuzzle,
		Success:     success,
		Fingerprint: fp,
		At:          time.Now(),
	})
	if err != nil {
		s.log.Error("journal verification attempt", "identity_id", identityID, "error", err)
	}
}
