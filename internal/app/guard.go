package app

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"trivia-duel/internal/domain"
)

// Transition is the result of a guarded step. Changed means the game must be
// written back; Then runs once the write has committed and the marker is gone.
type Transition struct {
	Changed bool
	Then    func()
}

// Step mutates a claimed game. It runs while the game's processing marker is
// held, so it is the only writer of the game record.
type Step func(ctx context.Context, game *domain.Game) (Transition, error)

var errClaimed = errors.New("game is being processed")

// claimState tells who holds a game's processing marker.
type claimState int

const (
	claimed claimState = iota
	heldHere
	heldElsewhere
)

const (
	remoteRetryEvery = time.Second
	maxRemoteRetries = 120
)

// Guard admits at most one evaluation or transition per game. The marker lives
// on the game record; it is checked and set inside the Locker's per-game
// section and cleared on every exit path.
type Guard struct {
	games      GameRepository
	locker     Locker
	scheduler  Scheduler
	retry      RetryPolicy
	now        func() time.Time
	staleAfter time.Duration
	waitFor    time.Duration

	mu      sync.Mutex
	held    map[int64]bool
	dropped map[int64][]Step
}

func NewGuard(games GameRepository, locker Locker, scheduler Scheduler, retry RetryPolicy, now func() time.Time, staleAfter time.Duration) *Guard {
	return &Guard{
		games:      games,
		locker:     locker,
		scheduler:  scheduler,
		retry:      retry,
		now:        now,
		staleAfter: staleAfter,
		waitFor:    3 * time.Second,
		held:       make(map[int64]bool),
		dropped:    make(map[int64][]Step),
	}
}

func lockKey(gameID int64) string {
	return "duel:game:" + strconv.FormatInt(gameID, 10) + ":lock"
}

// TryRun runs step unless another step holds the game. A step held up by a
// holder in this process is handed to that holder to run after it releases;
// one held up by another process, or by a marker a crashed process left
// behind, is retried later until the marker clears or goes stale. ran
// reports whether this call executed step itself.
func (g *Guard) TryRun(ctx context.Context, gameID int64, step Step) (bool, error) {
	return g.tryRun(ctx, gameID, step, 0)
}

func (g *Guard) tryRun(ctx context.Context, gameID int64, step Step, attempt int) (bool, error) {
	game, state, err := g.claim(ctx, gameID, step)
	if err != nil {
		return false, err
	}
	switch state {
	case heldHere:
		log.Printf("[guard] game %d busy, trigger deferred to holder", gameID)
		return false, nil
	case heldElsewhere:
		g.retryLater(game, step, attempt)
		return false, nil
	}
	return true, g.execute(ctx, game, step)
}

// retryLater re-arms a trigger whose game is held outside this process. It
// fires no later than the moment the marker turns stale.
func (g *Guard) retryLater(game domain.Game, step Step, attempt int) {
	if attempt >= maxRemoteRetries {
		log.Printf("[guard] game %d: giving up on trigger after %d retries", game.ID, attempt)
		return
	}
	delay := remoteRetryEvery
	if g.staleAfter > 0 {
		if left := g.staleAfter - g.now().Sub(game.ProcessingSince); left < delay {
			delay = left
		}
	}
	if delay < 0 {
		delay = 0
	}
	log.Printf("[guard] game %d held elsewhere, retrying trigger in %s", game.ID, delay)
	gameID := game.ID
	g.scheduler.After(delay, func() {
		if _, err := g.tryRun(context.Background(), gameID, step, attempt+1); err != nil {
			log.Printf("[guard] game %d: retried trigger: %v", gameID, err)
		}
	})
}

// Run waits, within a bounded budget, for the game to be free and then runs
// step. It returns domain.ErrBusy when the game stays claimed.
func (g *Guard) Run(ctx context.Context, gameID int64, step Step) error {
	var game domain.Game
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 250 * time.Millisecond
	b.MaxElapsedTime = g.waitFor
	err := backoff.Retry(func() error {
		got, state, err := g.claim(ctx, gameID, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if state != claimed {
			return errClaimed
		}
		game = got
		return nil
	}, backoff.WithContext(b, ctx))
	if errors.Is(err, errClaimed) {
		return domain.ErrBusy
	}
	if err != nil {
		if domain.IsTyped(err) {
			return err
		}
		return domain.ErrUnavailable
	}
	return g.execute(ctx, game, step)
}

func (g *Guard) execute(ctx context.Context, game domain.Game, step Step) error {
	var firstErr error
	for {
		work := game
		tr, err := step(ctx, &work)
		var changed *domain.Game
		if err == nil && tr.Changed {
			changed = &work
		}
		next, relErr := g.release(ctx, game.ID, changed)
		if err == nil {
			err = relErr
		}
		if err == nil && tr.Then != nil {
			tr.Then()
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if next == nil || relErr != nil {
			return firstErr
		}
		// A trigger arrived while we held the game; run it on its behalf.
		ctx = context.WithoutCancel(ctx)
		got, state, err := g.claim(ctx, game.ID, next)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return firstErr
		}
		switch state {
		case heldHere:
			return firstErr
		case heldElsewhere:
			g.retryLater(got, next, 0)
			return firstErr
		}
		game, step = got, next
	}
}

// claim sets the processing marker. When the marker is held by a step of this
// process and deferred is non-nil, deferred is queued for that holder.
func (g *Guard) claim(ctx context.Context, gameID int64, deferred Step) (domain.Game, claimState, error) {
	unlock, err := g.locker.Lock(ctx, lockKey(gameID))
	if err != nil {
		log.Printf("[guard] lock game %d: %v", gameID, err)
		return domain.Game{}, heldElsewhere, domain.ErrUnavailable
	}
	defer unlock()

	game, err := retry(ctx, g.retry, "get game", func() (domain.Game, error) {
		return g.games.GetGame(ctx, gameID)
	})
	if err != nil {
		return domain.Game{}, heldElsewhere, err
	}
	now := g.now()
	if game.Processing {
		if g.staleAfter <= 0 || now.Sub(game.ProcessingSince) < g.staleAfter {
			g.mu.Lock()
			defer g.mu.Unlock()
			if !g.held[gameID] {
				return game, heldElsewhere, nil
			}
			if deferred != nil {
				g.dropped[gameID] = append(g.dropped[gameID], deferred)
			}
			return game, heldHere, nil
		}
		log.Printf("[guard] game %d: reclaiming marker held since %s", gameID, game.ProcessingSince.Format(time.RFC3339))
	}
	game.Processing = true
	game.ProcessingSince = now
	game, err = retry(ctx, g.retry, "set processing", func() (domain.Game, error) {
		return g.games.UpdateGame(ctx, game)
	})
	if err != nil {
		return domain.Game{}, heldElsewhere, err
	}
	g.mu.Lock()
	g.held[gameID] = true
	g.mu.Unlock()
	return game, claimed, nil
}

// release clears the marker, writing changed when it is non-nil, and hands
// back the first trigger that was deferred while the marker was held.
func (g *Guard) release(ctx context.Context, gameID int64, changed *domain.Game) (Step, error) {
	ctx = context.WithoutCancel(ctx)
	unlock, err := g.locker.Lock(ctx, lockKey(gameID))
	if err != nil {
		log.Printf("[guard] lock game %d for release: %v", gameID, err)
		g.abandon(gameID)
		return nil, domain.ErrUnavailable
	}
	defer unlock()

	var writeErr error
	if changed != nil {
		game := *changed
		game.Processing = false
		game.ProcessingSince = time.Time{}
		_, writeErr = retry(ctx, g.retry, "commit game", func() (domain.Game, error) {
			return g.games.UpdateGame(ctx, game)
		})
	}
	if changed == nil || writeErr != nil {
		_, err := retry(ctx, g.retry, "clear processing", func() (domain.Game, error) {
			game, err := g.games.GetGame(ctx, gameID)
			if err != nil {
				return game, err
			}
			game.Processing = false
			game.ProcessingSince = time.Time{}
			return g.games.UpdateGame(ctx, game)
		})
		if err != nil {
			log.Printf("[guard] game %d: marker left set: %v", gameID, err)
			g.abandon(gameID)
			return nil, err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, gameID)
	if writeErr != nil {
		g.rearmLocked(gameID)
		return nil, writeErr
	}
	queue := g.dropped[gameID]
	if len(queue) == 0 {
		return nil, nil
	}
	next := queue[0]
	if len(queue) == 1 {
		delete(g.dropped, gameID)
	} else {
		g.dropped[gameID] = queue[1:]
	}
	return next, nil
}

// abandon gives up local ownership of a game whose marker could not be
// cleared. Queued triggers are retried until the marker goes stale.
func (g *Guard) abandon(gameID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, gameID)
	g.rearmLocked(gameID)
}

func (g *Guard) rearmLocked(gameID int64) {
	queue := g.dropped[gameID]
	delete(g.dropped, gameID)
	for _, step := range queue {
		step := step
		g.scheduler.After(remoteRetryEvery, func() {
			if _, err := g.TryRun(context.Background(), gameID, step); err != nil {
				log.Printf("[guard] game %d: re-armed trigger: %v", gameID, err)
			}
		})
	}
}
