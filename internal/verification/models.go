package verification

import "time"

// Challenge is the ephemeral human-verification puzzle for one identity. At
// most one live challenge exists per identity; issuing a new one replaces any
// prior generation.
type Challenge struct {
	IdentityID  string    `json:"identity_id"`
	Question    string    `json:"question"`
	Answer      int       `json:"answer"`
	Attempts    int       `json:"attempts"`
	IssuedAt    time.Time `json:"issued_at"`
	Fingerprint string    `json:"fingerprint"`
}

// Outcome of a challenge submission.
type Outcome string

const (
	OutcomeCorrect     Outcome = "correct"
	OutcomeIncorrect   Outcome = "incorrect"
	OutcomeExpired     Outcome = "expired"
	OutcomeNoChallenge Outcome = "no_active_challenge"
)

// SubmitResult is what the gateway renders after a submission. Siblings is
// populated on success so callers can surface a duplicate-origin notice; it
// never blocks verification.
type SubmitResult struct {
	Outcome      Outcome  `json:"outcome"`
	AttemptsLeft int      `json:"attempts_left"`
	Siblings     []string `json:"siblings,omitempty"`
}
