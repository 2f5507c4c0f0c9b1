package memory

import (
	"context"
	"fmt"
	"sync"

	"quizmint-service/internal/domain"
)

// QuizRepository is a map-backed quiz store for tests and demo mode.
type QuizRepository struct {
	mu      sync.RWMutex
	quizzes map[string]domain.Quiz
	nextID  int
}

// NewQuizRepository seeds the store; seed may be nil.
func NewQuizRepository(seed map[string]domain.Quiz) *QuizRepository {
	quizzes := make(map[string]domain.Quiz, len(seed))
	for id, quiz := range seed {
		quiz.ID = id
		quizzes[id] = quiz
	}
	return &QuizRepository{quizzes: quizzes}
}

func (r *QuizRepository) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	quiz, ok := r.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (r *QuizRepository) SaveQuiz(_ context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	quiz.ID = fmt.Sprintf("quiz-%d", r.nextID)
	r.quizzes[quiz.ID] = quiz
	return quiz, nil
}

func (r *QuizRepository) ListQuizzes(_ context.Context, includeArchived bool) ([]domain.Quiz, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	quizzes := make([]domain.Quiz, 0, len(r.quizzes))
	for _, quiz := range r.quizzes {
		if quiz.Archived && !includeArchived {
			continue
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, nil
}

func (r *QuizRepository) ArchiveQuiz(_ context.Context, quizID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	quiz, ok := r.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	quiz.Archived = true
	r.quizzes[quizID] = quiz
	return nil
}
