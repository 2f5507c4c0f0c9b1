package memory

import (
	"context"
	"sync"
	"time"

	"quizmint-service/internal/domain"
)

// SubmissionRepository keeps attempts in memory. The single mutex gives the
// same admit-or-reject atomicity the postgres implementation gets from its
// serializable transaction.
type SubmissionRepository struct {
	mu       sync.Mutex
	attempts []domain.SubmissionAttempt
}

func NewSubmissionRepository() *SubmissionRepository {
	return &SubmissionRepository{}
}

func (r *SubmissionRepository) ListAttempts(_ context.Context, quizID, wallet string) ([]domain.SubmissionAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SubmissionAttempt
	for _, attempt := range r.attempts {
		if attempt.QuizID == quizID && attempt.WalletAddress == wallet {
			out = append(out, attempt)
		}
	}
	return out, nil
}

func (r *SubmissionRepository) RecordAttempt(_ context.Context, attempt domain.SubmissionAttempt, windowStart time.Time, perfectScore int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, prior := range r.attempts {
		if prior.QuizID != attempt.QuizID || prior.WalletAddress != attempt.WalletAddress {
			continue
		}
		if !prior.SubmittedAt.Before(windowStart) {
			return domain.ErrAttemptWindow
		}
	}
	for _, prior := range r.attempts {
		if prior.QuizID == attempt.QuizID && prior.WalletAddress == attempt.WalletAddress && prior.Score == perfectScore {
			return domain.ErrAlreadyPerfect
		}
	}
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *SubmissionRepository) Completers(_ context.Context, quizID string, perfectScore int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{})
	var wallets []string
	for _, attempt := range r.attempts {
		if attempt.QuizID != quizID || attempt.Score != perfectScore {
			continue
		}
		if _, dup := seen[attempt.WalletAddress]; dup {
			continue
		}
		seen[attempt.WalletAddress] = struct{}{}
		wallets = append(wallets, attempt.WalletAddress)
	}
	return wallets, nil
}
