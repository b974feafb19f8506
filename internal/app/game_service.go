package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"trivia-duel/internal/domain"
)

// MaxNameLength bounds player display names.
const MaxNameLength = 10

// Options configures a GameService. Zero values fall back to the defaults.
type Options struct {
	Timings         Timings
	Retry           RetryPolicy
	HeartbeatTTL    time.Duration
	StaleProcessing time.Duration
	Scheduler       Scheduler
	Now             func() time.Time
	NewToken        func() string
	NewCode         func() string
}

// DefaultOptions returns production settings.
func DefaultOptions() Options {
	return Options{
		Timings:         DefaultTimings(),
		Retry:           DefaultRetryPolicy(),
		HeartbeatTTL:    30 * time.Second,
		StaleProcessing: 30 * time.Second,
		Scheduler:       TimerScheduler{},
		Now:             time.Now,
		NewToken:        uuid.NewString,
		NewCode:         randomCode,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Timings == (Timings{}) {
		o.Timings = d.Timings
	}
	if o.Retry == (RetryPolicy{}) {
		o.Retry = d.Retry
	}
	if o.HeartbeatTTL == 0 {
		o.HeartbeatTTL = d.HeartbeatTTL
	}
	if o.StaleProcessing == 0 {
		o.StaleProcessing = d.StaleProcessing
	}
	if o.Scheduler == nil {
		o.Scheduler = d.Scheduler
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	if o.NewToken == nil {
		o.NewToken = d.NewToken
	}
	if o.NewCode == nil {
		o.NewCode = d.NewCode
	}
	return o
}

// Joined is returned to a player entering a game. SessionToken is the
// player's only credential.
type Joined struct {
	Game         domain.Game
	Player       domain.Player
	SessionToken string
}

// AnswerFilter narrows answer history by round and question number. Zero
// matches any.
type AnswerFilter struct {
	Round    int
	Question int
}

// GameService contains the duel use cases exposed to the transport layer.
type GameService struct {
	store    Store
	engine   *Engine
	sessions *Sessions
	retry    RetryPolicy
	now      func() time.Time
	newToken func() string
	newCode  func() string
}

func NewGameService(store Store, questions QuestionSupplier, locker Locker, presence PresenceRepository, opts Options) *GameService {
	opts = opts.withDefaults()
	guard := NewGuard(store, locker, opts.Scheduler, opts.Retry, opts.Now, opts.StaleProcessing)
	return &GameService{
		store:    store,
		engine:   NewEngine(store, questions, guard, opts.Scheduler, opts.Timings, opts.Retry, opts.Now),
		sessions: NewSessions(store, presence, opts.HeartbeatTTL, opts.Retry, opts.Now),
		retry:    opts.Retry,
		now:      opts.Now,
		newToken: opts.NewToken,
		newCode:  opts.NewCode,
	}
}

// CreateGame opens a lobby and makes the caller its creator.
func (s *GameService) CreateGame(ctx context.Context, name, avatar string) (Joined, error) {
	name, err := validName(name)
	if err != nil {
		return Joined{}, err
	}

	var game domain.Game
	for attempt := 0; attempt < 20; attempt++ {
		candidate := domain.Game{
			Code:            s.newCode(),
			Status:          domain.StatusWaiting,
			CurrentRound:    1,
			CurrentQuestion: 1,
			CreatedAt:       s.now(),
		}
		game, err = retry(ctx, s.retry, "create game", func() (domain.Game, error) {
			return s.store.CreateGame(ctx, candidate)
		})
		if !errors.Is(err, domain.ErrCodeTaken) {
			break
		}
	}
	if err != nil {
		return Joined{}, err
	}

	player, err := s.createPlayer(ctx, game.ID, name, avatar)
	if err != nil {
		return Joined{}, err
	}
	game.CreatorID = &player.ID
	game, err = retry(ctx, s.retry, "set creator", func() (domain.Game, error) {
		return s.store.UpdateGame(ctx, game)
	})
	if err != nil {
		return Joined{}, err
	}
	if err := s.sessions.Touch(ctx, player); err != nil {
		log.Printf("[service] game %d: presence for creator: %v", game.ID, err)
	}
	log.Printf("[service] game %d created with code %s", game.ID, game.Code)
	return Joined{Game: game, Player: player, SessionToken: player.SessionToken}, nil
}

// JoinGame adds a second player to the lobby holding code.
func (s *GameService) JoinGame(ctx context.Context, code, name, avatar string) (Joined, error) {
	code = strings.TrimSpace(code)
	if !validCode(code) {
		return Joined{}, domain.ErrInvalidCode
	}
	name, err := validName(name)
	if err != nil {
		return Joined{}, err
	}
	game, err := retry(ctx, s.retry, "get game by code", func() (domain.Game, error) {
		return s.store.GetGameByCode(ctx, code)
	})
	if err != nil {
		return Joined{}, err
	}

	player, err := s.engine.Join(ctx, game.ID, domain.Player{
		Name:         name,
		Avatar:       avatar,
		SessionToken: s.newToken(),
		LastSeen:     s.now(),
		CreatedAt:    s.now(),
	})
	if err != nil {
		return Joined{}, err
	}
	if err := s.sessions.Touch(ctx, player); err != nil {
		log.Printf("[service] game %d: presence for player %d: %v", game.ID, player.ID, err)
	}
	game, err = s.getGame(ctx, game.ID)
	if err != nil {
		return Joined{}, err
	}
	return Joined{Game: game, Player: player, SessionToken: player.SessionToken}, nil
}

// Authenticate resolves token to its player in gameID.
func (s *GameService) Authenticate(ctx context.Context, gameID int64, token string) (domain.Player, error) {
	return s.sessions.Resolve(ctx, gameID, token)
}

// StartGame begins round 1. Only the creator may start.
func (s *GameService) StartGame(ctx context.Context, gameID int64, token string) (domain.Game, error) {
	player, err := s.sessions.Resolve(ctx, gameID, token)
	if err != nil {
		return domain.Game{}, err
	}
	if err := s.engine.Start(ctx, gameID, player.ID); err != nil {
		return domain.Game{}, err
	}
	return s.getGame(ctx, gameID)
}

// SubmitAnswer records the caller's answer to the active question and
// triggers evaluation.
func (s *GameService) SubmitAnswer(ctx context.Context, gameID int64, token string, sub Submission) (domain.Answer, error) {
	game, err := s.getGame(ctx, gameID)
	if err != nil {
		return domain.Answer{}, err
	}
	player, err := s.sessions.Resolve(ctx, gameID, token)
	if err != nil {
		return domain.Answer{}, err
	}
	if game.Status != domain.StatusPlaying || game.Question == nil {
		return domain.Answer{}, domain.ErrNoActiveQuestion
	}
	now := s.now()
	if !now.Before(game.QuestionDeadline) {
		return domain.Answer{}, domain.ErrDeadlinePassed
	}

	answer, err := normalizeAnswer(*game.Question, sub)
	if err != nil {
		return domain.Answer{}, err
	}
	answer.GameID = game.ID
	answer.PlayerID = player.ID
	answer.Round = game.CurrentRound
	answer.Question = game.CurrentQuestion
	answer.SubmittedAt = now
	answer.QuestionText = game.Question.Text
	answer.CorrectAnswer = game.Question.CorrectText()

	answer, err = retry(ctx, s.retry, "create answer", func() (domain.Answer, error) {
		return s.store.CreateAnswer(ctx, answer)
	})
	if errors.Is(err, domain.ErrAlreadyAnswered) && !s.now().Before(game.QuestionDeadline) {
		return domain.Answer{}, domain.ErrDeadlinePassed
	}
	if err != nil {
		return domain.Answer{}, err
	}

	if err := s.engine.Evaluate(ctx, game.ID); err != nil {
		log.Printf("[service] game %d: evaluate after answer: %v", game.ID, err)
	}
	return answer, nil
}

// LeaveGame handles a voluntary departure.
func (s *GameService) LeaveGame(ctx context.Context, gameID int64, token string) error {
	player, err := s.sessions.Resolve(ctx, gameID, token)
	if err != nil {
		return err
	}
	if err := s.engine.Leave(ctx, gameID, player); err != nil {
		return err
	}
	s.sessions.Forget(ctx, player)
	return nil
}

// Disconnect handles a player whose connection dropped. Mid-game it ends the
// game like a leave does; in the lobby the heartbeat sweeper decides.
func (s *GameService) Disconnect(ctx context.Context, gameID int64, token string) error {
	game, err := s.getGame(ctx, gameID)
	if err != nil {
		return err
	}
	if !game.Status.Active() {
		return nil
	}
	log.Printf("[service] game %d: session disconnected mid-game", gameID)
	return s.LeaveGame(ctx, gameID, token)
}

// Heartbeat refreshes lobby presence. It is rejected once the game started.
func (s *GameService) Heartbeat(ctx context.Context, gameID int64, token string) error {
	game, err := s.getGame(ctx, gameID)
	if err != nil {
		return err
	}
	player, err := s.sessions.Resolve(ctx, gameID, token)
	if err != nil {
		return err
	}
	if game.Status != domain.StatusWaiting {
		return domain.ErrLobbyClosed
	}
	return s.sessions.Touch(ctx, player)
}

// GetState returns the polling snapshot of a game.
func (s *GameService) GetState(ctx context.Context, gameID int64) (domain.Snapshot, error) {
	game, err := s.getGame(ctx, gameID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	players, err := retry(ctx, s.retry, "list players", func() ([]domain.Player, error) {
		return s.store.ListPlayers(ctx, gameID)
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	rounds, err := retry(ctx, s.retry, "list rounds", func() ([]domain.Round, error) {
		return s.store.ListRounds(ctx, gameID)
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return domain.Snapshot{Game: game, Players: players, Rounds: rounds}, nil
}

// GetAnswers returns answer history. Answers to a question that is still
// open are withheld.
func (s *GameService) GetAnswers(ctx context.Context, gameID int64, filter AnswerFilter) ([]domain.Answer, error) {
	game, err := s.getGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	var answers []domain.Answer
	if filter.Round > 0 && filter.Question > 0 {
		answers, err = retry(ctx, s.retry, "list answers", func() ([]domain.Answer, error) {
			return s.store.ListAnswers(ctx, gameID, filter.Round, filter.Question)
		})
	} else {
		answers, err = retry(ctx, s.retry, "list game answers", func() ([]domain.Answer, error) {
			return s.store.ListAnswersByGame(ctx, gameID)
		})
	}
	if err != nil {
		return nil, err
	}

	out := answers[:0:0]
	for _, a := range answers {
		if filter.Round > 0 && a.Round != filter.Round {
			continue
		}
		if filter.Question > 0 && a.Question != filter.Question {
			continue
		}
		if game.Status == domain.StatusPlaying && a.Round == game.CurrentRound && a.Question == game.CurrentQuestion {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Reevaluate is the operator trigger for a game that looks stuck.
func (s *GameService) Reevaluate(ctx context.Context, gameID int64) (domain.Game, error) {
	if err := s.engine.Reevaluate(ctx, gameID); err != nil {
		return domain.Game{}, err
	}
	return s.getGame(ctx, gameID)
}

// Recover re-arms timers of in-flight games after a restart.
func (s *GameService) Recover(ctx context.Context) (int, error) {
	return s.engine.Recover(ctx)
}

// SweepLobbies removes lobby players whose heartbeat expired and returns how
// many were removed.
func (s *GameService) SweepLobbies(ctx context.Context) (int, error) {
	games, err := retry(ctx, s.retry, "list lobbies", func() ([]domain.Game, error) {
		return s.store.ListGamesByStatus(ctx, domain.StatusWaiting)
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, game := range games {
		stale, err := s.sessions.Stale(ctx, game.ID)
		if err != nil {
			log.Printf("[sweeper] game %d: %v", game.ID, err)
			continue
		}
		for _, p := range stale {
			if err := s.engine.Leave(ctx, game.ID, p); err != nil {
				log.Printf("[sweeper] game %d: drop player %d: %v", game.ID, p.ID, err)
				continue
			}
			s.sessions.Forget(ctx, p)
			removed++
			log.Printf("[sweeper] game %d: dropped idle player %d", game.ID, p.ID)
		}
	}
	return removed, nil
}

// RunSweeper calls SweepLobbies every interval until ctx is done.
func (s *GameService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepLobbies(ctx); err != nil {
				log.Printf("[sweeper] %v", err)
			}
		}
	}
}

func (s *GameService) createPlayer(ctx context.Context, gameID int64, name, avatar string) (domain.Player, error) {
	player := domain.Player{
		GameID:       gameID,
		Name:         name,
		Avatar:       avatar,
		SessionToken: s.newToken(),
		LastSeen:     s.now(),
		CreatedAt:    s.now(),
	}
	return retry(ctx, s.retry, "create player", func() (domain.Player, error) {
		return s.store.CreatePlayer(ctx, player)
	})
}

func (s *GameService) getGame(ctx context.Context, id int64) (domain.Game, error) {
	return retry(ctx, s.retry, "get game", func() (domain.Game, error) {
		return s.store.GetGame(ctx, id)
	})
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLength {
		return "", domain.ErrInvalidName
	}
	return name, nil
}

func validCode(code string) bool {
	if len(code) != 4 {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func randomCode() string {
	return fmt.Sprintf("%04d", rand.Intn(10000))
}
