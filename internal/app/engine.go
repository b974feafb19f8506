package app

import (
	"context"
	"errors"
	"log"
	"time"

	"trivia-duel/internal/domain"
)

// Timings are the fixed windows of a duel.
type Timings struct {
	AnswerWindow  time.Duration
	ResultsDelay  time.Duration
	FinalDelay    time.Duration
	WinThreshold  int
	RecoveryGrace time.Duration
}

// DefaultTimings: 15s to answer, 4s of results, 3s of final scoreboard, first to 5.
func DefaultTimings() Timings {
	return Timings{
		AnswerWindow:  15 * time.Second,
		ResultsDelay:  4 * time.Second,
		FinalDelay:    3 * time.Second,
		WinThreshold:  5,
		RecoveryGrace: time.Second,
	}
}

// maxRounds is the longest a game can last: every round won alternately
// until one player reaches the threshold.
func (t Timings) maxRounds() int {
	return 2*t.WinThreshold - 1
}

// Engine is the game progression state machine. Every transition runs as a
// guarded Step; deferred work is scheduled after the transition commits and
// is tagged with the game's Step counter so stale callbacks do nothing.
type Engine struct {
	store     Store
	questions QuestionSupplier
	guard     *Guard
	scheduler Scheduler
	timings   Timings
	retry     RetryPolicy
	now       func() time.Time
}

func NewEngine(store Store, questions QuestionSupplier, guard *Guard, scheduler Scheduler, timings Timings, retry RetryPolicy, now func() time.Time) *Engine {
	return &Engine{
		store:     store,
		questions: questions,
		guard:     guard,
		scheduler: scheduler,
		timings:   timings,
		retry:     retry,
		now:       now,
	}
}

// Start opens round 1 for a waiting game with exactly two players.
func (e *Engine) Start(ctx context.Context, gameID, requestedBy int64) error {
	return e.guard.Run(ctx, gameID, func(ctx context.Context, game *domain.Game) (Transition, error) {
		if game.Status != domain.StatusWaiting {
			return Transition{}, domain.ErrAlreadyStarted
		}
		if game.CreatorID == nil || *game.CreatorID != requestedBy {
			return Transition{}, domain.ErrNotCreator
		}
		players, err := e.listPlayers(ctx, game.ID)
		if err != nil {
			return Transition{}, err
		}
		if len(players) != 2 {
			return Transition{}, domain.ErrNotEnoughPlayers
		}
		game.Batch = e.prefetch(ctx, game.ID)
		if err := e.openQuestion(ctx, game, 1, 1); err != nil {
			return Transition{}, err
		}
		log.Printf("[engine] game %d started", game.ID)
		return Transition{Changed: true, Then: e.deadlineCheck(*game)}, nil
	})
}

// Evaluate is the trigger fired when an answer lands. It is dropped silently
// when another transition holds the game.
func (e *Engine) Evaluate(ctx context.Context, gameID int64) error {
	_, err := e.guard.TryRun(ctx, gameID, e.evaluateStep(0))
	return err
}

// Reevaluate is the operator recovery trigger. It evaluates a playing game
// whose answers are complete or whose deadline passed, and runs a pending
// continuation that is overdue. Anything else is left untouched.
func (e *Engine) Reevaluate(ctx context.Context, gameID int64) error {
	_, err := e.guard.TryRun(ctx, gameID, func(ctx context.Context, game *domain.Game) (Transition, error) {
		switch game.Status {
		case domain.StatusPlaying:
			return e.evaluateStep(0)(ctx, game)
		case domain.StatusShowingResults:
			if game.Pending == domain.ContinueNone {
				return Transition{}, nil
			}
			if e.now().Before(game.ResumeAt.Add(e.timings.RecoveryGrace)) {
				return Transition{}, nil
			}
			log.Printf("[engine] game %d: recovering overdue %s continuation", game.ID, game.Pending)
			return e.continueStep(game.Pending, game.Step)(ctx, game)
		default:
			return Transition{}, nil
		}
	})
	return err
}

// Leave removes player from gameID. In the lobby a guest is dropped and the
// creator closes the lobby; in an active game the other player wins.
func (e *Engine) Leave(ctx context.Context, gameID int64, player domain.Player) error {
	return e.guard.Run(ctx, gameID, func(ctx context.Context, game *domain.Game) (Transition, error) {
		switch {
		case game.Status == domain.StatusWaiting:
			if game.CreatorID != nil && *game.CreatorID == player.ID {
				e.finish(game, nil)
				log.Printf("[engine] game %d: creator left, lobby closed", game.ID)
				return Transition{Changed: true}, nil
			}
			err := retryErr(ctx, e.retry, "remove player", func() error {
				return e.store.RemovePlayer(ctx, game.ID, player.SessionToken)
			})
			return Transition{}, err
		case game.Status.Active():
			players, err := e.listPlayers(ctx, game.ID)
			if err != nil {
				return Transition{}, err
			}
			var winner *int64
			for _, p := range players {
				if p.ID != player.ID {
					id := p.ID
					winner = &id
					break
				}
			}
			e.finish(game, winner)
			log.Printf("[engine] game %d: player %d left, game over", game.ID, player.ID)
			return Transition{Changed: true}, nil
		default:
			return Transition{}, nil
		}
	})
}

// Join adds a player to a waiting game that has room.
func (e *Engine) Join(ctx context.Context, gameID int64, player domain.Player) (domain.Player, error) {
	var created domain.Player
	err := e.guard.Run(ctx, gameID, func(ctx context.Context, game *domain.Game) (Transition, error) {
		if game.Status != domain.StatusWaiting {
			return Transition{}, domain.ErrAlreadyStarted
		}
		players, err := e.listPlayers(ctx, game.ID)
		if err != nil {
			return Transition{}, err
		}
		if len(players) >= 2 {
			return Transition{}, domain.ErrGameFull
		}
		player.GameID = game.ID
		created, err = retry(ctx, e.retry, "create player", func() (domain.Player, error) {
			return e.store.CreatePlayer(ctx, player)
		})
		return Transition{}, err
	})
	return created, err
}

// Recover re-arms the timers of every game that was in flight, for use after
// a restart. Callbacks re-validate state, so arming twice is harmless.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	games, err := retry(ctx, e.retry, "list active games", func() ([]domain.Game, error) {
		return e.store.ListGamesByStatus(ctx, domain.StatusPlaying, domain.StatusShowingResults)
	})
	if err != nil {
		return 0, err
	}
	for _, game := range games {
		switch game.Status {
		case domain.StatusPlaying:
			e.deadlineCheck(game)()
		case domain.StatusShowingResults:
			if game.Pending != domain.ContinueNone {
				e.scheduleContinuation(game)
			}
		}
	}
	if len(games) > 0 {
		log.Printf("[engine] re-armed %d in-flight games", len(games))
	}
	return len(games), nil
}

func (e *Engine) evaluateStep(expectStep int64) Step {
	return func(ctx context.Context, game *domain.Game) (Transition, error) {
		if game.Status != domain.StatusPlaying || game.Question == nil {
			return Transition{}, nil
		}
		if expectStep != 0 && game.Step != expectStep {
			return Transition{}, nil
		}
		players, err := e.listPlayers(ctx, game.ID)
		if err != nil {
			return Transition{}, err
		}
		if len(players) != 2 {
			return Transition{}, nil
		}
		answers, err := e.listAnswers(ctx, game)
		if err != nil {
			return Transition{}, err
		}

		answered := answersByPlayer(answers)
		if len(answered) < len(players) {
			if e.now().Before(game.QuestionDeadline) {
				return Transition{}, nil
			}
			for _, p := range players {
				if _, ok := answered[p.ID]; ok {
					continue
				}
				if err := e.recordNoAnswer(ctx, game, p.ID); err != nil {
					return Transition{}, err
				}
			}
			if answers, err = e.listAnswers(ctx, game); err != nil {
				return Transition{}, err
			}
		}
		return e.settle(ctx, game, players, answers)
	}
}

func (e *Engine) settle(ctx context.Context, game *domain.Game, players []domain.Player, answers []domain.Answer) (Transition, error) {
	q := *game.Question
	if game.CurrentQuestion == 1 {
		out := EvaluateChoice(q, answers, players)
		if !out.Decided() {
			log.Printf("[engine] game %d round %d: question 1 undecided (%s)", game.ID, game.CurrentRound, out.Reason)
			game.Status = domain.StatusShowingResults
			game.LastRoundWinnerID = nil
			e.await(game, domain.ContinueQuestion2, e.timings.ResultsDelay)
			return Transition{Changed: true, Then: e.continuation(*game)}, nil
		}
		log.Printf("[engine] game %d round %d: player %d wins on question 1 (%s)", game.ID, game.CurrentRound, *out.WinnerID, out.Reason)
		return e.settleRound(ctx, game, players, out.WinnerID)
	}

	out := EvaluateInteger(q, answers, players)
	if out.WinnerID != nil {
		log.Printf("[engine] game %d round %d: player %d wins on question 2 (%s)", game.ID, game.CurrentRound, *out.WinnerID, out.Reason)
	} else {
		log.Printf("[engine] game %d round %d: no winner (%s)", game.ID, game.CurrentRound, out.Reason)
	}
	return e.settleRound(ctx, game, players, out.WinnerID)
}

// settleRound records the round, brings scores in line with the round
// history and schedules either the next round or the final scoreboard.
func (e *Engine) settleRound(ctx context.Context, game *domain.Game, players []domain.Player, winner *int64) (Transition, error) {
	round := domain.Round{
		GameID:      game.ID,
		Number:      game.CurrentRound,
		WinnerID:    winner,
		CompletedAt: e.now(),
	}
	_, err := retry(ctx, e.retry, "create round", func() (domain.Round, error) {
		return e.store.CreateRound(ctx, round)
	})
	if err != nil && !errors.Is(err, domain.ErrRoundExists) {
		return Transition{}, err
	}

	rounds, err := retry(ctx, e.retry, "list rounds", func() ([]domain.Round, error) {
		return e.store.ListRounds(ctx, game.ID)
	})
	if err != nil {
		return Transition{}, err
	}
	wins := TallyWins(rounds)
	for _, p := range players {
		if p.Score == wins[p.ID] {
			continue
		}
		id, score := p.ID, wins[p.ID]
		if _, err := retry(ctx, e.retry, "update score", func() (domain.Player, error) {
			return e.store.UpdateScore(ctx, id, score)
		}); err != nil {
			return Transition{}, err
		}
	}

	game.Status = domain.StatusShowingResults
	game.LastRoundWinnerID = winner
	next := domain.ContinueNextRound
	if winner != nil && wins[*winner] >= e.timings.WinThreshold {
		next = domain.ContinueScoreboard
	}
	e.await(game, next, e.timings.ResultsDelay)
	return Transition{Changed: true, Then: e.continuation(*game)}, nil
}

// continueStep runs a deferred continuation if the game is still parked on it.
func (e *Engine) continueStep(kind domain.Continuation, expectStep int64) Step {
	return func(ctx context.Context, game *domain.Game) (Transition, error) {
		if game.Status != domain.StatusShowingResults || game.Step != expectStep || game.Pending != kind {
			return Transition{}, nil
		}
		switch kind {
		case domain.ContinueQuestion2:
			if err := e.openQuestion(ctx, game, game.CurrentRound, 2); err != nil {
				return Transition{}, err
			}
			return Transition{Changed: true, Then: e.deadlineCheck(*game)}, nil
		case domain.ContinueNextRound:
			if err := e.openQuestion(ctx, game, game.CurrentRound+1, 1); err != nil {
				return Transition{}, err
			}
			return Transition{Changed: true, Then: e.deadlineCheck(*game)}, nil
		case domain.ContinueScoreboard:
			game.Question = nil
			game.QuestionDeadline = time.Time{}
			e.await(game, domain.ContinueFinish, e.timings.FinalDelay)
			return Transition{Changed: true, Then: e.continuation(*game)}, nil
		case domain.ContinueFinish:
			e.finish(game, game.LastRoundWinnerID)
			log.Printf("[engine] game %d finished", game.ID)
			return Transition{Changed: true}, nil
		}
		return Transition{}, nil
	}
}

func (e *Engine) openQuestion(ctx context.Context, game *domain.Game, round, number int) error {
	qtype := domain.QuestionChoice
	if number == 2 {
		qtype = domain.QuestionInteger
	}
	q, err := e.nextQuestion(ctx, game, qtype)
	if err != nil {
		return err
	}
	game.Status = domain.StatusPlaying
	game.CurrentRound = round
	game.CurrentQuestion = number
	game.Question = &q
	game.QuestionDeadline = e.now().Add(e.timings.AnswerWindow)
	game.LastRoundWinnerID = nil
	game.Pending = domain.ContinueNone
	game.ResumeAt = time.Time{}
	game.Step++
	return nil
}

// nextQuestion pops the game's pre-fetched batch, falling back to a single
// draw that avoids questions already used in this game.
func (e *Engine) nextQuestion(ctx context.Context, game *domain.Game, qtype domain.QuestionType) (domain.Question, error) {
	queue := &game.Batch.Choice
	if qtype == domain.QuestionInteger {
		queue = &game.Batch.Integer
	}
	var q domain.Question
	if len(*queue) > 0 {
		q = (*queue)[0]
		*queue = (*queue)[1:]
	} else {
		used := game.Batch.Used
		var err error
		q, err = retry(ctx, e.retry, "request question", func() (domain.Question, error) {
			return e.questions.RequestOne(ctx, qtype, used)
		})
		if err != nil {
			return domain.Question{}, err
		}
	}
	game.Batch.Used = append(game.Batch.Used, q.ID)
	return q, nil
}

func (e *Engine) prefetch(ctx context.Context, gameID int64) domain.QuestionBatch {
	n := e.timings.maxRounds()
	var batch domain.QuestionBatch
	for _, qtype := range []domain.QuestionType{domain.QuestionChoice, domain.QuestionInteger} {
		qs, err := e.questions.RequestBatch(ctx, qtype, n)
		if err != nil {
			log.Printf("[engine] game %d: prefetch %s questions: %v", gameID, qtype, err)
			continue
		}
		if qtype == domain.QuestionChoice {
			batch.Choice = qs
		} else {
			batch.Integer = qs
		}
	}
	return batch
}

func (e *Engine) finish(game *domain.Game, winner *int64) {
	game.Status = domain.StatusFinished
	game.WinnerID = winner
	game.LastRoundWinnerID = nil
	game.Question = nil
	game.QuestionDeadline = time.Time{}
	game.Pending = domain.ContinueNone
	game.ResumeAt = time.Time{}
	game.Batch = domain.QuestionBatch{}
	game.Step++
}

func (e *Engine) await(game *domain.Game, next domain.Continuation, delay time.Duration) {
	game.Pending = next
	game.ResumeAt = e.now().Add(delay)
	game.Step++
}

func (e *Engine) recordNoAnswer(ctx context.Context, game *domain.Game, playerID int64) error {
	answer := domain.Answer{
		GameID:        game.ID,
		PlayerID:      playerID,
		Round:         game.CurrentRound,
		Question:      game.CurrentQuestion,
		Value:         domain.NoAnswer,
		SubmittedAt:   game.QuestionDeadline,
		QuestionText:  game.Question.Text,
		CorrectAnswer: game.Question.CorrectText(),
	}
	_, err := retry(ctx, e.retry, "record no answer", func() (domain.Answer, error) {
		return e.store.CreateAnswer(ctx, answer)
	})
	if errors.Is(err, domain.ErrAlreadyAnswered) {
		return nil
	}
	return err
}

func (e *Engine) deadlineCheck(game domain.Game) func() {
	id, step, at := game.ID, game.Step, game.QuestionDeadline
	return func() {
		e.scheduler.After(at.Sub(e.now()), func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := e.guard.TryRun(ctx, id, e.evaluateStep(step)); err != nil {
				log.Printf("[engine] game %d: deadline evaluation: %v", id, err)
			}
		})
	}
}

func (e *Engine) continuation(game domain.Game) func() {
	return func() { e.scheduleContinuation(game) }
}

func (e *Engine) scheduleContinuation(game domain.Game) {
	id, step, kind := game.ID, game.Step, game.Pending
	e.scheduler.After(game.ResumeAt.Sub(e.now()), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := e.guard.TryRun(ctx, id, e.continueStep(kind, step)); err != nil {
			log.Printf("[engine] game %d: %s continuation: %v", id, kind, err)
		}
	})
}

func (e *Engine) listPlayers(ctx context.Context, gameID int64) ([]domain.Player, error) {
	return retry(ctx, e.retry, "list players", func() ([]domain.Player, error) {
		return e.store.ListPlayers(ctx, gameID)
	})
}

func (e *Engine) listAnswers(ctx context.Context, game *domain.Game) ([]domain.Answer, error) {
	return retry(ctx, e.retry, "list answers", func() ([]domain.Answer, error) {
		return e.store.ListAnswers(ctx, game.ID, game.CurrentRound, game.CurrentQuestion)
	})
}

// TallyWins counts rounds won per player.
func TallyWins(rounds []domain.Round) map[int64]int {
	wins := make(map[int64]int)
	for _, r := range rounds {
		if r.WinnerID != nil {
			wins[*r.WinnerID]++
		}
	}
	return wins
}
