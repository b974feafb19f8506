package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"trivia-duel/internal/domain"
)

type answerKey struct {
	gameID   int64
	round    int
	question int
	playerID int64
}

type roundKey struct {
	gameID int64
	number int
}

// Store is an in-memory implementation of app.Store. Records are copied in
// and out so callers never share mutable state with the store.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	games   map[int64]domain.Game
	players map[int64]domain.Player
	answers map[answerKey]domain.Answer
	rounds  map[roundKey]domain.Round
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		games:   make(map[int64]domain.Game),
		players: make(map[int64]domain.Player),
		answers: make(map[answerKey]domain.Answer),
		rounds:  make(map[roundKey]domain.Round),
		now:     time.Now,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateGame(_ context.Context, game domain.Game) (domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.games {
		if g.Code == game.Code && g.Status != domain.StatusFinished {
			return domain.Game{}, domain.ErrCodeTaken
		}
	}
	game.ID = s.id()
	if game.CreatedAt.IsZero() {
		game.CreatedAt = s.now()
	}
	game.UpdatedAt = game.CreatedAt
	s.games[game.ID] = cloneGame(game)
	return cloneGame(game), nil
}

func (s *Store) GetGame(_ context.Context, id int64) (domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	return cloneGame(game), nil
}

func (s *Store) GetGameByCode(_ context.Context, code string) (domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *domain.Game
	for _, g := range s.games {
		if g.Code != code || g.Status == domain.StatusFinished {
			continue
		}
		if found == nil || g.ID > found.ID {
			g := g
			found = &g
		}
	}
	if found == nil {
		return domain.Game{}, domain.ErrGameNotFound
	}
	return cloneGame(*found), nil
}

func (s *Store) UpdateGame(_ context.Context, game domain.Game) (domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[game.ID]; !ok {
		return domain.Game{}, domain.ErrGameNotFound
	}
	game.UpdatedAt = s.now()
	s.games[game.ID] = cloneGame(game)
	return cloneGame(game), nil
}

func (s *Store) ListGamesByStatus(_ context.Context, statuses ...domain.GameStatus) ([]domain.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[domain.GameStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []domain.Game
	for _, g := range s.games {
		if want[g.Status] {
			out = append(out, cloneGame(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreatePlayer(_ context.Context, player domain.Player) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[player.GameID]; !ok {
		return domain.Player{}, domain.ErrGameNotFound
	}
	for _, p := range s.players {
		if p.SessionToken == player.SessionToken {
			return domain.Player{}, domain.ErrInvalidSession
		}
	}
	player.ID = s.id()
	if player.CreatedAt.IsZero() {
		player.CreatedAt = s.now()
	}
	s.players[player.ID] = player
	return player, nil
}

func (s *Store) GetPlayer(_ context.Context, id int64) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return p, nil
}

func (s *Store) GetPlayerByToken(_ context.Context, token string) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.players {
		if p.SessionToken == token {
			return p, nil
		}
	}
	return domain.Player{}, domain.ErrPlayerNotFound
}

func (s *Store) ListPlayers(_ context.Context, gameID int64) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Player
	for _, p := range s.players {
		if p.GameID == gameID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateScore(_ context.Context, id int64, score int) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	p.Score = score
	s.players[id] = p
	return p, nil
}

func (s *Store) TouchPlayer(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	p.LastSeen = at
	s.players[id] = p
	return nil
}

func (s *Store) RemovePlayer(_ context.Context, gameID int64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.players {
		if p.GameID == gameID && p.SessionToken == token {
			delete(s.players, id)
		}
	}
	return nil
}

func (s *Store) CreateAnswer(_ context.Context, answer domain.Answer) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := answerKey{answer.GameID, answer.Round, answer.Question, answer.PlayerID}
	if _, ok := s.answers[key]; ok {
		return domain.Answer{}, domain.ErrAlreadyAnswered
	}
	answer.ID = s.id()
	s.answers[key] = cloneAnswer(answer)
	return cloneAnswer(answer), nil
}

func (s *Store) ListAnswers(_ context.Context, gameID int64, round, question int) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Answer
	for k, a := range s.answers {
		if k.gameID == gameID && k.round == round && k.question == question {
			out = append(out, cloneAnswer(a))
		}
	}
	sortAnswers(out)
	return out, nil
}

func (s *Store) ListAnswersByGame(_ context.Context, gameID int64) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Answer
	for k, a := range s.answers {
		if k.gameID == gameID {
			out = append(out, cloneAnswer(a))
		}
	}
	sortAnswers(out)
	return out, nil
}

func (s *Store) CreateRound(_ context.Context, round domain.Round) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := roundKey{round.GameID, round.Number}
	if _, ok := s.rounds[key]; ok {
		return domain.Round{}, domain.ErrRoundExists
	}
	round.ID = s.id()
	s.rounds[key] = round
	return round, nil
}

func (s *Store) ListRounds(_ context.Context, gameID int64) ([]domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Round
	for k, r := range s.rounds {
		if k.gameID == gameID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func sortAnswers(answers []domain.Answer) {
	sort.Slice(answers, func(i, j int) bool {
		a, b := answers[i], answers[j]
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		if a.Question != b.Question {
			return a.Question < b.Question
		}
		return a.ID < b.ID
	})
}

func cloneGame(g domain.Game) domain.Game {
	if g.Question != nil {
		q := cloneQuestion(*g.Question)
		g.Question = &q
	}
	g.CreatorID = cloneID(g.CreatorID)
	g.LastRoundWinnerID = cloneID(g.LastRoundWinnerID)
	g.WinnerID = cloneID(g.WinnerID)
	g.Batch = domain.QuestionBatch{
		Choice:  cloneQuestions(g.Batch.Choice),
		Integer: cloneQuestions(g.Batch.Integer),
		Used:    append([]string(nil), g.Batch.Used...),
	}
	return g
}

func cloneQuestion(q domain.Question) domain.Question {
	q.Options = append([]string(nil), q.Options...)
	return q
}

func cloneQuestions(qs []domain.Question) []domain.Question {
	if qs == nil {
		return nil
	}
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		out[i] = cloneQuestion(q)
	}
	return out
}

func cloneAnswer(a domain.Answer) domain.Answer {
	if a.OptionIndex != nil {
		idx := *a.OptionIndex
		a.OptionIndex = &idx
	}
	return a
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
