package app_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-duel/internal/app"
	"trivia-duel/internal/domain"
)

func TestStartOpensFirstChoiceQuestion(t *testing.T) {
	h := newHarness(t, 5)
	d := h.started()

	g := h.game(d.gameID)
	assert.Equal(t, domain.StatusPlaying, g.Status)
	assert.Equal(t, 1, g.CurrentRound)
	assert.Equal(t, 1, g.CurrentQuestion)
	require.NotNil(t, g.Question)
	assert.Equal(t, domain.QuestionChoice, g.Question.Type)
	assert.Equal(t, h.clock.Now().Add(h.timing.AnswerWindow), g.QuestionDeadline)
	assert.False(t, g.Processing)
	// 2*5-1 per type, minus the one in play.
	assert.Len(t, g.Batch.Choice, 8)
	assert.Len(t, g.Batch.Integer, 9)
}

func TestOnlyCorrectAnswerWinsRoundOnQuestionOne(t *testing.T) {
	h := newHarness(t, 5)
	d := h.started()

	h.choose(d, d.creatorT, true)
	h.choose(d, d.guestT, false)

	g := h.game(d.gameID)
	assert.Equal(t, domain.StatusShowingResults, g.Status)
	require.NotNil(t, g.LastRoundWinnerID)
	assert.Equal(t, d.creator.Player.ID, *g.LastRoundWinnerID)
	assert.Equal(t, domain.ContinueNextRound, g.Pending)
	assert.Equal(t, 1, h.score(d.creator.Player.ID))
	assert.Equal(t, 0, h.score(d.guest.Player.ID))

	h.advance(h.timing.ResultsDelay)
	g = h.game(d.gameID)
	assert.Equal(t, domain.StatusPlaying, g.Status)
	assert.Equal(t, 2, g.CurrentRound)
	assert.Equal(t, 1, g.CurrentQuestion)
	assert.Nil(t, g.LastRoundWinnerID)
}

func TestBothCorrectGoesToEstimateAndEarlierEqualDistanceWins(t *testing.T) {
	h := newHarness(t, 5)
	d := h.started()

	h.choose(d, d.creatorT, true)
	h.choose(d, d.guestT, true)

	g := h.game(d.gameID)
	assert.Equal(t, domain.StatusShowingResults, g.Status)
	assert.Nil(t, g.LastRoundWinnerID)
	assert.Equal(t, domain.ContinueQuestion2, g.Pending)

	h.advance(h.timing.ResultsDelay)
	g = h.game(d.gameID)
	require.Equal(t, 2, g.CurrentQuestion)
	require.Equal(t, domain.QuestionInteger, g.Question.Type)

	h.estimate(d, d.creatorT, 5)
	h.clock.Advance(1)
	h.estimate(d, d.guestT, -5)

	g = h.game(d.gameID)
	require.NotNil(t, g.LastRoundWinnerID)
	assert.Equal(t, d.creator.Player.ID, *g.LastRoundWinnerID)
	assert.Equal(t, 1, h.score(d.creator.Player.ID))
}

func TestNeitherCorrectExactEstimateWins(t *testing.T) {
	h := newHarness(t, 5)
	d := h.started()

	h.choose(d, d.creatorT, false)
	h.choose(d, d.guestT, false)
	h.advance(h.timing.ResultsDelay)

	h.estimate(d, d.creatorT, 40)
	h.estimate(d, d.guestT, 0)

	g := h.game(d.gameID)
	require.NotNil(t, g.LastRoundWinnerID)
	assert.Equal(t, d.guest.Player.ID, *g.LastRoundWinnerID)
	assert.Equal(t, 1, h.score(d.guest.Player.ID))
}

func TestSilentRoundHasNoWinnerAndGameContinues(t *testing.T) {
	h := newHarness(t, 5)
	d := h.started()

	h.advance(h.timing.AnswerWindow)
	g := h.game(d.gameID)
	assert.Equal(t, domain.StatusShowingResults, g.Status)
	assert.Equal(t, domain.ContinueQuestion2, g.Pending)

	answers, err := h.store.ListAnswers(h.ctx, d.gameID, 1, 1)
	require.NoError(t, err)
	require.Len(t, answers, 2)
	for _, a := range answers {
		assert.True(t, a.Missing())
		assert.Equal(t, h.clock.Now(), a.SubmittedAt)
	}

	h.advance(h.timing.ResultsDelay)
	h.advance(h.timing.AnswerWindow)
	g = h.game(d.gameID)
	assert.Equal(t, domain.StatusShowingResults, g.Status)
	assert.Nil(t, g.LastRoundWinnerID)
	assert.Equal(t, domain.ContinueNextRound, g.Pending)

	rounds, err := h.store.ListRounds(h.ctx, d.gameID)
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.Nil(t, rounds[0].WinnerID)
	assert.Equal(t, 0, h.score(d.creator.Player.ID))
	assert.Equal(t, 0, h.score(d.guest.Player.ID))

	h.advance(h.timing.ResultsDelay)
	assert.Equal(t, 2, h.game(d.gameID).CurrentRound)
}

func TestLoneAnswerBeatsMissingOnEstimate(t *testing.T) {
	h := newHarness(t, 5)
	d := h.started()

	h.choose(d, d.creatorT, true)
	h.choose(d, d.guestT, true)
	h.advance(h.timing.ResultsDelay)

	h.estimate(d, d.guestT, 900)
	h.advance(h.timing.AnswerWindow)

	g := h.game(d.gameID)
	require.NotNil(t, g.LastRoundWinnerID)
	assert.Equal(t, d.guest.Player.ID, *g.LastRoundWinnerID)
}

func TestReachingThresholdShowsScoreboardThenFinishes(t *testing.T) {
	h := newHarness(t, 2)
	d := h.started()

	h.winRound(d, d.creatorT, d.guestT)
	h.choose(d, d.creatorT, true)
	h.choose(d, d.guestT, false)

	g := h.game(d.gameID)
	assert.Equal(t, domain.StatusShowingResults, g.Status)
	assert.Equal(t, domain.ContinueScoreboard, g.Pending)

	h.advance(h.timing.ResultsDelay)
	g = h.game(d.gameID)
	assert.Equal(t, domain.StatusShowingResults, g.Status)
	assert.Nil(t, g.Question)
	assert.Equal(t, domain.ContinueFinish, g.Pending)

	h.advance(h.timing.FinalDelay)
	g = h.game(d.gameID)
	assert.Equal(t, domain.StatusFinished, g.Status)
	require.NotNil(t, g.WinnerID)
	assert.Equal(t, d.creator.Player.ID, *g.WinnerID)
	assert.Empty(t, g.Batch.Choice)
	assert.Empty(t, g.Batch.Integer)
	assert.Equal(t, 2, h.score(d.creator.Player.ID))

	// Leftover timers must not move a finished game.
	h.advance(h.timing.AnswerWindow)
	assert.Equal(t, domain.StatusFinished, h.game(d.gameID).Status)
}

func TestScoresMatchRoundHistory(t *testing.T) {
	h := newHarness(t, 3)
	d := h.started()

	h.winRound(d, d.creatorT, d.guestT)
	h.winRound(d, d.guestT, d.creatorT)
	h.winRound(d, d.guestT, d.creatorT)

	rounds, err := h.store.ListRounds(h.ctx, d.gameID)
	require.NoError(t, err)
	wins := app.TallyWins(rounds)
	assert.Equal(t, wins[d.creator.Player.ID], h.score(d.creator.Player.ID))
	assert.Equal(t, wins[d.guest.Player.ID], h.score(d.guest.Player.ID))
	assert.Equal(t, 1, wins[d.creator.Player.ID])
	assert.Equal(t, 2, wins[d.guest.Player.ID])
}

func TestQuestionsAreNotRepeatedWithinGame(t *testing.T) {
	h := newHarness(t, 3)
	d := h.started()

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		g := h.game(d.gameID)
		require.False(t, seen[g.Question.ID], "question %s repeated", g.Question.ID)
		seen[g.Question.ID] = true
		h.choose(d, d.creatorT, true)
		h.choose(d, d.guestT, true)
		h.advance(h.timing.ResultsDelay)
		g = h.game(d.gameID)
		require.False(t, seen[g.Question.ID], "question %s repeated", g.Question.ID)
		seen[g.Question.ID] = true
		h.estimate(d, d.creatorT, 0)
		h.estimate(d, d.guestT, 0)
		if h.game(d.gameID).Pending == domain.ContinueScoreboard {
			break
		}
		h.advance(h.timing.ResultsDelay)
	}
}

func TestReevaluateIsIdempotentAndRecoversOverdueContinuation(t *testing.T) {
	h := newHarness(t, 5)
	d := h.started()

	h.choose(d, d.creatorT, true)
	h.choose(d, d.guestT, false)
	before := h.game(d.gameID)

	_, err := h.svc.Reevaluate(h.ctx, d.gameID)
	require.NoError(t, err)
	after := h.game(d.gameID)
	assert.Equal(t, before.Step, after.Step)
	assert.Equal(t, 1, h.score(d.creator.Player.ID))

	// The continuation timer is lost; the operator trigger takes over.
	h.clock.Advance(h.timing.ResultsDelay + h.timing.RecoveryGrace)
	_, err = h.svc.Reevaluate(h.ctx, d.gameID)
	require.NoError(t, err)
	g := h.game(d.gameID)
	assert.Equal(t, domain.StatusPlaying, g.Status)
	assert.Equal(t, 2, g.CurrentRound)

	// The original timer fires late and finds nothing to do.
	h.sched.RunDue()
	again := h.game(d.gameID)
	assert.Equal(t, g.Step, again.Step)
	assert.Equal(t, 2, again.CurrentRound)
	assert.Equal(t, 1, h.score(d.creator.Player.ID))
}

func TestReevaluateSettlesQuestionPastDeadline(t *testing.T) {
	h := newHarness(t, 5)
	d := h.started()

	h.choose(d, d.creatorT, true)
	h.clock.Advance(h.timing.AnswerWindow)

	_, err := h.svc.Reevaluate(h.ctx, d.gameID)
	require.NoError(t, err)
	g := h.game(d.gameID)
	assert.Equal(t, domain.StatusShowingResults, g.Status)
	require.NotNil(t, g.LastRoundWinnerID)
	assert.Equal(t, d.creator.Player.ID, *g.LastRoundWinnerID)
}

func TestReevaluateLeavesOpenQuestionAlone(t *testing.T) {
	h := newHarness(t, 5)
	d := h.started()
	h.choose(d, d.creatorT, true)
	before := h.game(d.gameID)

	_, err := h.svc.Reevaluate(h.ctx, d.gameID)
	require.NoError(t, err)
	after := h.game(d.gameID)
	assert.Equal(t, domain.StatusPlaying, after.Status)
	assert.Equal(t, before.Step, after.Step)
}

func TestRecoverRearmsInFlightGames(t *testing.T) {
	h := newHarness(t, 5)
	d := h.started()
	h.choose(d, d.creatorT, false)
	h.choose(d, d.guestT, false)

	// A fresh process over the same store has no timers.
	restarted := newHarnessWithStore(t, 5, h.store)
	restarted.clock.Advance(h.clock.Now().Sub(restarted.clock.Now()))
	n, err := restarted.svc.Recover(restarted.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	restarted.advance(h.timing.ResultsDelay)
	g := restarted.game(d.gameID)
	assert.Equal(t, domain.StatusPlaying, g.Status)
	assert.Equal(t, 2, g.CurrentQuestion)
}

func TestLeavingActiveGameAwardsOpponent(t *testing.T) {
	h := newHarness(t, 5)
	d := h.started()

	require.NoError(t, h.svc.LeaveGame(h.ctx, d.gameID, d.guestT))
	g := h.game(d.gameID)
	assert.Equal(t, domain.StatusFinished, g.Status)
	require.NotNil(t, g.WinnerID)
	assert.Equal(t, d.creator.Player.ID, *g.WinnerID)

	h.advance(h.timing.AnswerWindow)
	assert.Equal(t, domain.StatusFinished, h.game(d.gameID).Status)
}

func TestConcurrentTriggersSettleEachRoundOnce(t *testing.T) {
	h := newHarness(t, 5)
	const games = 20
	duels := make([]duel, games)
	for i := range duels {
		duels[i] = h.started()
	}

	var wg sync.WaitGroup
	errs := make(chan error, games*3)
	for _, d := range duels {
		q := h.game(d.gameID).Question
		right := q.CorrectIndex
		wrong := (right + 1) % len(q.Options)
		submit := func(token string, idx int) {
			defer wg.Done()
			if _, err := h.svc.SubmitAnswer(h.ctx, d.gameID, token, app.Submission{OptionIndex: &idx}); err != nil {
				errs <- err
			}
		}
		wg.Add(3)
		go submit(d.creatorT, right)
		go submit(d.guestT, wrong)
		go func(id int64) {
			defer wg.Done()
			if _, err := h.svc.Reevaluate(h.ctx, id); err != nil {
				errs <- err
			}
			h.sched.RunDue()
		}(d.gameID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("trigger failed: %v", err)
	}

	for _, d := range duels {
		g := h.game(d.gameID)
		assert.False(t, g.Processing, "game %d marker left set", d.gameID)
		assert.Equal(t, domain.StatusShowingResults, g.Status)
		rounds, err := h.store.ListRounds(h.ctx, d.gameID)
		require.NoError(t, err)
		require.Len(t, rounds, 1)
		require.NotNil(t, rounds[0].WinnerID)
		assert.Equal(t, d.creator.Player.ID, *rounds[0].WinnerID)
		assert.Equal(t, 1, h.score(d.creator.Player.ID))
	}
}
