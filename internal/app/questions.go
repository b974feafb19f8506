package app

import (
	"math/rand"

	"trivia-duel/internal/domain"
)

// PickBatch returns up to count distinct questions from pool in random order.
func PickBatch(rnd *rand.Rand, pool []domain.Question, count int) []domain.Question {
	if count > len(pool) {
		count = len(pool)
	}
	shuffled := make([]domain.Question, len(pool))
	copy(shuffled, pool)
	rnd.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:count]
}

// PickOne returns a random question not in exclude, or any question when the
// pool is exhausted.
func PickOne(rnd *rand.Rand, pool []domain.Question, exclude []string) (domain.Question, error) {
	if len(pool) == 0 {
		return domain.Question{}, domain.ErrNoQuestions
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	fresh := make([]domain.Question, 0, len(pool))
	for _, q := range pool {
		if _, ok := skip[q.ID]; !ok {
			fresh = append(fresh, q)
		}
	}
	if len(fresh) == 0 {
		fresh = pool
	}
	return fresh[rnd.Intn(len(fresh))], nil
}
