package app

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"quizmint-service/internal/domain"
)

// AttemptWindow is the rolling rate-limit window: one submission per
// (quiz, wallet) per trailing 24 hours, not per calendar day.
const AttemptWindow = 24 * time.Hour

// SubmissionRepository stores accepted attempts and answers the gate's
// history queries. RecordAttempt must re-run the window and perfect-score
// checks and the insert inside a single transaction so two concurrent
// submissions from the same wallet cannot both land.
type SubmissionRepository interface {
	ListAttempts(ctx context.Context, quizID, wallet string) ([]domain.SubmissionAttempt, error)
	RecordAttempt(ctx context.Context, attempt domain.SubmissionAttempt, windowStart time.Time, perfectScore int) error
	Completers(ctx context.Context, quizID string, perfectScore int) ([]string, error)
}

// SubmissionGate enforces the admission policy for submission attempts:
// a verifiable wallet signature, at most one attempt per rolling day, and at
// most one perfect completion ever.
type SubmissionGate struct {
	attempts SubmissionRepository
	window   time.Duration
	now      func() time.Time
}

func NewSubmissionGate(attempts SubmissionRepository) *SubmissionGate {
	return &SubmissionGate{attempts: attempts, window: AttemptWindow, now: time.Now}
}

// NewSubmissionGateWithClock is test-only for deterministic window checks.
func NewSubmissionGateWithClock(attempts SubmissionRepository, now func() time.Time) *SubmissionGate {
	return &SubmissionGate{attempts: attempts, window: AttemptWindow, now: now}
}

// Admit evaluates the policy in order: signature, rolling window, duplicate
// perfect. It performs no writes; the caller persists via RecordAttempt after
// the score check passes.
func (g *SubmissionGate) Admit(ctx context.Context, quiz domain.Quiz, wallet, message, signature string) error {
	if err := VerifyWalletSignature(wallet, message, signature); err != nil {
		return err
	}

	history, err := g.attempts.ListAttempts(ctx, quiz.ID, wallet)
	if err != nil {
		return err
	}

	windowStart := g.now().Add(-g.window)
	for _, attempt := range history {
		// An attempt exactly one window old still blocks; only strictly older
		// history admits a retry.
		if !attempt.SubmittedAt.Before(windowStart) {
			return domain.ErrAttemptWindow
		}
	}
	for _, attempt := range history {
		if attempt.IsPerfect(len(quiz.Questions)) {
			return domain.ErrAlreadyPerfect
		}
	}
	return nil
}

// WindowStart returns the cutoff instant for the rolling window as of now.
func (g *SubmissionGate) WindowStart() time.Time {
	return g.now().Add(-g.window)
}

// VerifyWalletSignature checks that signature over the plain message (signed
// with the personal_sign prefix) recovers to wallet. Recovery failure and
// address mismatch are reported as distinct errors.
func VerifyWalletSignature(wallet, message, signature string) error {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return domain.ErrInvalidSignature
	}
	// Normalize V from the wallet's {27,28} to the recovery id {0,1}.
	sig = append([]byte(nil), sig...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return domain.ErrInvalidSignature
	}
	if !common.IsHexAddress(wallet) || crypto.PubkeyToAddress(*pub) != common.HexToAddress(wallet) {
		return domain.ErrWalletMismatch
	}
	return nil
}
