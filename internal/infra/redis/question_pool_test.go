package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"trivia-duel/internal/domain"
	"trivia-duel/internal/infra/memory"
)

func TestQuestionPoolCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(sampleQuestions()),
	}
	pool := NewQuestionPool(client, loader, time.Minute)

	batch, err := pool.RequestBatch(context.Background(), domain.QuestionInteger, 5)
	if err != nil {
		t.Fatalf("request batch: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 integer questions, got %d", len(batch))
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("duel:questions:integer") {
		t.Fatalf("expected question hash to be cached")
	}

	// Second call should hit cache, loader not incremented.
	q, err := pool.RequestOne(context.Background(), domain.QuestionInteger, []string{"i1"})
	if err != nil {
		t.Fatalf("request one: %v", err)
	}
	if q.ID != "i2" || q.CorrectValue != 206 {
		t.Fatalf("expected cached question i2 intact, got %+v", q)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, qtype domain.QuestionType) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, qtype)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "c1", Type: domain.QuestionChoice, Text: "Red planet?", Options: []string{"Earth", "Mars"}, CorrectIndex: 1},
		{ID: "i1", Type: domain.QuestionInteger, Text: "End of WWII?", CorrectValue: 1945},
		{ID: "i2", Type: domain.QuestionInteger, Text: "Bones in the adult body?", CorrectValue: 206},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
