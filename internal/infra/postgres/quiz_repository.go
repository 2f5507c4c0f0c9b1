package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizmint-service/internal/domain"
)

// QuizRepository stores quiz definitions as JSONB rows, mirroring the
// original persistence shape. The datastore owns quiz identifiers.
type QuizRepository struct {
	pool *pgxpool.Pool
}

func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var (
		raw      []byte
		archived bool
	)
	err := r.pool.QueryRow(ctx, `SELECT data, archived FROM quizzes WHERE id=$1`, quizID).Scan(&raw, &archived)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("unmarshal quiz: %w", err)
	}
	quiz.ID = quizID
	quiz.Archived = archived
	return quiz, nil
}

func (r *QuizRepository) SaveQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	quiz.ID = uuid.NewString()
	data, err := json.Marshal(quiz)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("marshal quiz: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO quizzes (id, data, wallet_address, quiz_name, created_at, archived)
		 VALUES ($1, $2, $3, $4, $5, FALSE)`,
		quiz.ID, data, quiz.CreatorWallet, quiz.Name, quiz.CreatedAt)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("insert quiz: %w", err)
	}
	return quiz, nil
}

func (r *QuizRepository) ListQuizzes(ctx context.Context, includeArchived bool) ([]domain.Quiz, error) {
	query := `SELECT id, data, archived FROM quizzes ORDER BY created_at DESC`
	if !includeArchived {
		query = `SELECT id, data, archived FROM quizzes WHERE NOT archived ORDER BY created_at DESC`
	}

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	var quizzes []domain.Quiz
	for rows.Next() {
		var (
			id       string
			raw      []byte
			archived bool
		)
		if err := rows.Scan(&id, &raw, &archived); err != nil {
			return nil, fmt.Errorf("scan quiz: %w", err)
		}
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err != nil {
			return nil, fmt.Errorf("unmarshal quiz %s: %w", id, err)
		}
		quiz.ID = id
		quiz.Archived = archived
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

func (r *QuizRepository) ArchiveQuiz(ctx context.Context, quizID string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE quizzes SET archived=TRUE WHERE id=$1`, quizID)
	if err != nil {
		return fmt.Errorf("archive quiz: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuizNotFound
	}
	return nil
}
