package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quizmint-service/internal/app"
	"quizmint-service/internal/domain"
)

// QuizRepository caches quiz definitions in Redis in front of a backing
// store (the postgres repository). Definitions are stored as one JSON blob
// per quiz: SET quiz:{quizID}:def {json} EX ttl. Writes pass through and
// invalidate the cached entry.
type QuizRepository struct {
	client *redis.Client
	inner  app.QuizRepository
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizRepository(client *redis.Client, inner app.QuizRepository, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		inner:  inner,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	key := r.key(quizID)

	if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var quiz domain.Quiz
		if err := json.Unmarshal(raw, &quiz); err == nil {
			return quiz, nil
		}
		// Corrupt cache entry, fall through to the loader.
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := r.client.Get(ctx, key).Bytes(); err == nil {
			var quiz domain.Quiz
			if err := json.Unmarshal(raw, &quiz); err == nil {
				return quiz, nil
			}
		}

		quiz, err := r.inner.GetQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if raw, err := json.Marshal(quiz); err == nil {
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) SaveQuiz(ctx context.Context, quiz domain.Quiz) (domain.Quiz, error) {
	saved, err := r.inner.SaveQuiz(ctx, quiz)
	if err != nil {
		return domain.Quiz{}, err
	}
	_ = r.client.Del(ctx, r.key(saved.ID)).Err()
	return saved, nil
}

func (r *QuizRepository) ListQuizzes(ctx context.Context, includeArchived bool) ([]domain.Quiz, error) {
	return r.inner.ListQuizzes(ctx, includeArchived)
}

func (r *QuizRepository) ArchiveQuiz(ctx context.Context, quizID string) error {
	if err := r.inner.ArchiveQuiz(ctx, quizID); err != nil {
		return err
	}
	return r.client.Del(ctx, r.key(quizID)).Err()
}

func (r *QuizRepository) key(quizID string) string {
	return "quiz:" + quizID + ":def"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
