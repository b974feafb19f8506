package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-duel/internal/app"
	"trivia-duel/internal/domain"
)

// QuestionLoader fetches every question of a type from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, qtype domain.QuestionType) ([]domain.Question, error)
}

// QuestionPool caches questions per type with a TTL to avoid repeated DB hits
// and samples batches from the cached pool.
type QuestionPool struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[domain.QuestionType]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionPool(loader QuestionLoader, ttl time.Duration) *QuestionPool {
	return &QuestionPool{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.QuestionType]cachedPool),
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
	p.rndMu.Lock()
	defer p.rndMu.Unlock()
	return app.PickBatch(p.rnd, pool, count), nil
}

func (p *QuestionPool) RequestOne(ctx context.Context, qtype domain.QuestionType, exclude []string) (domain.Question, error) {
	pool, err := p.load(ctx, qtype)
	if err != nil {
		return domain.Question{}, err
	}
	p.rndMu.Lock()
	defer p.rndMu.Unlock()
	return app.PickOne(p.rnd, pool, exclude)
}

func (p *QuestionPool) load(ctx context.Context, qtype domain.QuestionType) ([]domain.Question, error) {
	now := p.clock()

	p.mu.RLock()
	if entry, ok := p.cache[qtype]; ok && entry.expiresAt.After(now) {
		p.mu.RUnlock()
		return entry.questions, nil
	}
	p.mu.RUnlock()

	result, err, _ := p.sf.Do(string(qtype), func() (interface{}, error) {
		now := p.clock()
		p.mu.RLock()
		if entry, ok := p.cache[qtype]; ok && entry.expiresAt.After(now) {
			p.mu.RUnlock()
			return entry.questions, nil
		}
		p.mu.RUnlock()

		questions, err := p.loader.LoadQuestions(ctx, qtype)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		p.cache[qtype] = cachedPool{
			questions: questions,
			expiresAt: now.Add(p.ttlWithJitter()),
		}
		p.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (p *QuestionPool) ttlWithJitter() time.Duration {
	if p.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(p.ttl) / 10
	p.rndMu.Lock()
	defer p.rndMu.Unlock()
	return p.ttl + time.Duration(p.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a loader backed by an in-memory slice (useful for tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, qtype domain.QuestionType) ([]domain.Question, error) {
	var out []domain.Question
	for _, q := range l.questions {
		if q.Type == qtype {
			out = append(out, q)
		}
	}
	if len(out) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return out, nil
}
