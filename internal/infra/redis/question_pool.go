package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-duel/internal/app"
	"trivia-duel/internal/domain"
)

// QuestionLoader fetches every question of a type from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, qtype domain.QuestionType) ([]domain.Question, error)
}

// QuestionPool caches the question bank in Redis (hash per type) and falls
// back to a loader on cache miss.
// Questions are stored as: HSET duel:questions:{type} {questionID} {json}
type QuestionPool struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionPool(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionPool {
	return &QuestionPool{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *QuestionPool) RequestBatch(ctx context.Context, qtype domain.QuestionType, count int) ([]domain.Question, error) {
	pool, err := p.load(ctx, qtype)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, domain.ErrNoQuestions
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return app.PickBatch(p.rnd, pool, count), nil
}

func (p *QuestionPool) RequestOne(ctx context.Context, qtype domain.QuestionType, exclude []string) (domain.Question, error) {
	pool, err := p.load(ctx, qtype)
	if err != nil {
		return domain.Question{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return app.PickOne(p.rnd, pool, exclude)
}

func (p *QuestionPool) load(ctx context.Context, qtype domain.QuestionType) ([]domain.Question, error) {
	key := p.key(qtype)

	cached, err := p.client.HGetAll(ctx, key).Result()
	if err == nil && len(cached) > 0 {
		return decodeQuestions(cached)
	}

	result, err, _ := p.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		cached, err := p.client.HGetAll(ctx, key).Result()
		if err == nil && len(cached) > 0 {
			return decodeQuestions(cached)
		}

		questions, err := p.loader.LoadQuestions(ctx, qtype)
		if err != nil {
			return nil, err
		}

		pipe := p.client.Pipeline()
		for _, q := range questions {
			raw, err := json.Marshal(q)
			if err != nil {
				return nil, fmt.Errorf("encode question %s: %w", q.ID, err)
			}
			pipe.HSet(ctx, key, q.ID, raw)
		}
		if ttl := p.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("[questions] cache fill for %s: %v", qtype, err)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (p *QuestionPool) key(qtype domain.QuestionType) string {
	return "duel:questions:" + string(qtype)
}

func decodeQuestions(cached map[string]string) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(cached))
	for id, raw := range cached {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("decode question %s: %w", id, err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func (p *QuestionPool) ttlWithJitter() time.Duration {
	if p.ttl <= 0 {
		return 0
	}
	jitterMax := int64(p.ttl) / 10
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ttl + time.Duration(p.rnd.Int63n(jitterMax+1))
}
