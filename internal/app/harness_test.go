package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"trivia-duel/internal/app"
	"trivia-duel/internal/domain"
	"trivia-duel/internal/infra/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	clock  *fakeClock
	sched  *app.ManualScheduler
	store  *memory.Store
	svc    *app.GameService
	timing app.Timings
}

type duel struct {
	gameID   int64
	creator  app.Joined
	guest    app.Joined
	creatorT string
	guestT   string
}

func newHarness(t *testing.T, threshold int) *harness {
	t.Helper()
	return newHarnessWithStore(t, threshold, memory.NewStore())
}

func newHarnessWithStore(t *testing.T, threshold int, store *memory.Store) *harness {
	t.Helper()
	clock := newFakeClock()
	sched := app.NewManualScheduler(clock.Now)
	timings := app.Timings{
		AnswerWindow:  15 * time.Second,
		ResultsDelay:  4 * time.Second,
		FinalDelay:    3 * time.Second,
		WinThreshold:  threshold,
		RecoveryGrace: time.Second,
	}
	var codeMu sync.Mutex
	next := 1000
	opts := app.Options{
		Timings:      timings,
		Retry:        app.RetryPolicy{Attempts: 3, Initial: time.Millisecond, Max: 5 * time.Millisecond},
		HeartbeatTTL: 30 * time.Second,
		Scheduler:    sched,
		Now:          clock.Now,
		NewCode: func() string {
			codeMu.Lock()
			defer codeMu.Unlock()
			next++
			return fmt.Sprintf("%04d", next)
		},
	}
	pool := memory.NewQuestionPool(memory.NewStaticQuestionLoader(questionBank()), time.Minute)
	svc := app.NewGameService(store, pool, memory.NewLocker(), memory.NewPresenceStoreWithClock(clock.Now), opts)
	return &harness{
		t:      t,
		ctx:    context.Background(),
		clock:  clock,
		sched:  sched,
		store:  store,
		svc:    svc,
		timing: timings,
	}
}

// lobby creates a game with both players seated but not started.
func (h *harness) lobby() duel {
	h.t.Helper()
	creator, err := h.svc.CreateGame(h.ctx, "Alice", "fox")
	require.NoError(h.t, err)
	guest, err := h.svc.JoinGame(h.ctx, creator.Game.Code, "Bob", "owl")
	require.NoError(h.t, err)
	return duel{
		gameID:   creator.Game.ID,
		creator:  creator,
		guest:    guest,
		creatorT: creator.SessionToken,
		guestT:   guest.SessionToken,
	}
}

// started creates a game and starts it.
func (h *harness) started() duel {
	h.t.Helper()
	d := h.lobby()
	_, err := h.svc.StartGame(h.ctx, d.gameID, d.creatorT)
	require.NoError(h.t, err)
	return d
}

func (h *harness) game(id int64) domain.Game {
	h.t.Helper()
	g, err := h.store.GetGame(h.ctx, id)
	require.NoError(h.t, err)
	return g
}

func (h *harness) score(playerID int64) int {
	h.t.Helper()
	p, err := h.store.GetPlayer(h.ctx, playerID)
	require.NoError(h.t, err)
	return p.Score
}

// advance moves the clock and fires every timer that came due.
func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.sched.RunDue()
}

func (h *harness) choose(d duel, token string, correct bool) {
	h.t.Helper()
	g := h.game(d.gameID)
	require.Equal(h.t, domain.StatusPlaying, g.Status)
	require.Equal(h.t, domain.QuestionChoice, g.Question.Type)
	idx := g.Question.CorrectIndex
	if !correct {
		idx = (idx + 1) % len(g.Question.Options)
	}
	_, err := h.svc.SubmitAnswer(h.ctx, d.gameID, token, app.Submission{OptionIndex: &idx})
	require.NoError(h.t, err)
}

func (h *harness) estimate(d duel, token string, offset int) {
	h.t.Helper()
	g := h.game(d.gameID)
	require.Equal(h.t, domain.StatusPlaying, g.Status)
	require.Equal(h.t, domain.QuestionInteger, g.Question.Type)
	value := fmt.Sprint(g.Question.CorrectValue + offset)
	_, err := h.svc.SubmitAnswer(h.ctx, d.gameID, token, app.Submission{Value: value})
	require.NoError(h.t, err)
}

// winRound makes token's player win question 1 and waits out the results.
func (h *harness) winRound(d duel, winner, loser string) {
	h.t.Helper()
	h.choose(d, winner, true)
	h.choose(d, loser, false)
	h.advance(h.timing.ResultsDelay)
}

func questionBank() []domain.Question {
	var qs []domain.Question
	for i := 0; i < 12; i++ {
		qs = append(qs, domain.Question{
			ID:           fmt.Sprintf("c%d", i),
			Type:         domain.QuestionChoice,
			Text:         fmt.Sprintf("Choice %d?", i),
			Options:      []string{"alpha", "beta", "gamma", "delta"},
			CorrectIndex: i % 4,
		})
		qs = append(qs, domain.Question{
			ID:           fmt.Sprintf("i%d", i),
			Type:         domain.QuestionInteger,
			Text:         fmt.Sprintf("Estimate %d?", i),
			CorrectValue: 1000 + i*37,
		})
	}
	return qs
}
