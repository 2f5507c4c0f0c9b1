package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizmint-service/internal/domain"
)

// SubmissionRepository is the append-only quiz_submissions store.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

func (r *SubmissionRepository) ListAttempts(ctx context.Context, quizID, wallet string) ([]domain.SubmissionAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT quiz_id, wallet_address, answers, signature, score, submitted_at
		 FROM quiz_submissions
		 WHERE quiz_id=$1 AND wallet_address=$2
		 ORDER BY submitted_at DESC`,
		quizID, wallet)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.SubmissionAttempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// RecordAttempt re-runs the window and perfect-score checks and the insert
// inside one serializable transaction. This is the single place that closes
// the race between two concurrent submissions from the same wallet.
func (r *SubmissionRepository) RecordAttempt(ctx context.Context, attempt domain.SubmissionAttempt, windowStart time.Time, perfectScore int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin submission tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var inWindow int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_submissions
		 WHERE quiz_id=$1 AND wallet_address=$2 AND submitted_at >= $3`,
		attempt.QuizID, attempt.WalletAddress, windowStart).Scan(&inWindow)
	if err != nil {
		return fmt.Errorf("window check: %w", err)
	}
	if inWindow > 0 {
		return domain.ErrAttemptWindow
	}

	var perfect int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_submissions
		 WHERE quiz_id=$1 AND wallet_address=$2 AND score=$3`,
		attempt.QuizID, attempt.WalletAddress, perfectScore).Scan(&perfect)
	if err != nil {
		return fmt.Errorf("perfect-score check: %w", err)
	}
	if perfect > 0 {
		return domain.ErrAlreadyPerfect
	}

	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO quiz_submissions (quiz_id, wallet_address, answers, signature, score, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		attempt.QuizID, attempt.WalletAddress, answers, attempt.Signature, attempt.Score, attempt.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *SubmissionRepository) Completers(ctx context.Context, quizID string, perfectScore int) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT wallet_address FROM quiz_submissions
		 WHERE quiz_id=$1 AND score=$2`,
		quizID, perfectScore)
	if err != nil {
		return nil, fmt.Errorf("list completers: %w", err)
	}
	defer rows.Close()

	var wallets []string
	for rows.Next() {
		var wallet string
		if err := rows.Scan(&wallet); err != nil {
			return nil, fmt.Errorf("scan completer: %w", err)
		}
		wallets = append(wallets, wallet)
	}
	return wallets, rows.Err()
}

func scanAttempt(rows pgx.Rows) (domain.SubmissionAttempt, error) {
	var (
		attempt domain.SubmissionAttempt
		answers []byte
	)
	if err := rows.Scan(&attempt.QuizID, &attempt.WalletAddress, &answers, &attempt.Signature, &attempt.Score, &attempt.SubmittedAt); err != nil {
		return domain.SubmissionAttempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	if err := json.Unmarshal(answers, &attempt.Answers); err != nil {
		return domain.SubmissionAttempt{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	return attempt, nil
}
