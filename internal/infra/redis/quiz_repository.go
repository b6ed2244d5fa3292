package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"github.com/mrkazawa/quiz-quest-app-sub000/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz content from a backing store (e.g., Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches quiz content in Redis and falls back to a loader on
// cache miss. Each question is stored as JSON in a hash keyed by its position
// in the quiz, since question IDs carry no ordering guarantee:
//
//	HSET quiz:{quizID}:questions {position} {question JSON}
//	SET  quiz:{quizID}:name      {quiz name}
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.fromCache(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.fromCache(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for i, q := range quiz.Questions {
			raw, err := json.Marshal(q)
			if err != nil {
				continue
			}
			pipe.HSet(ctx, r.questionsKey(quizID), i, raw)
		}
		pipe.Set(ctx, r.nameKey(quizID), quiz.Name, ttl)
		if ttl > 0 {
			pipe.Expire(ctx, r.questionsKey(quizID), ttl)
		}
		_, _ = pipe.Exec(ctx)

		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) fromCache(ctx context.Context, quizID string) (domain.Quiz, bool) {
	raw, err := r.client.HGetAll(ctx, r.questionsKey(quizID)).Result()
	if err != nil || len(raw) == 0 {
		return domain.Quiz{}, false
	}

	// Hash iteration order is arbitrary; the position fields put the authored
	// order back.
	questions := make([]domain.Question, len(raw))
	for field, data := range raw {
		pos, err := strconv.Atoi(field)
		if err != nil || pos < 0 || pos >= len(questions) {
			return domain.Quiz{}, false
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(data), &q); err != nil {
			return domain.Quiz{}, false
		}
		questions[pos] = q
	}

	name, _ := r.client.Get(ctx, r.nameKey(quizID)).Result()
	return domain.Quiz{ID: quizID, Name: name, Questions: questions}, true
}

func (r *QuizRepository) questionsKey(quizID string) string {
	return "quiz:" + quizID + ":questions"
}

func (r *QuizRepository) nameKey(quizID string) string {
	return "quiz:" + quizID + ":name"
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
