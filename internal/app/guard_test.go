package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trivia-duel/internal/app"
	"trivia-duel/internal/domain"
	"trivia-duel/internal/infra/memory"
)

type guardFixture struct {
	guard *app.Guard
	store *memory.Store
	clock *fakeClock
	sched *app.ManualScheduler
	id    int64
}

func newGuardFixture(t *testing.T) guardFixture {
	t.Helper()
	store := memory.NewStore()
	game, err := store.CreateGame(context.Background(), domain.Game{Code: "1234", Status: domain.StatusPlaying})
	require.NoError(t, err)
	clock := newFakeClock()
	sched := app.NewManualScheduler(clock.Now)
	guard := app.NewGuard(store, memory.NewLocker(), sched, app.DefaultRetryPolicy(), clock.Now, 30*time.Second)
	return guardFixture{guard: guard, store: store, clock: clock, sched: sched, id: game.ID}
}

// holdElsewhere sets the marker as a step of another process would.
func (f guardFixture) holdElsewhere(t *testing.T) {
	t.Helper()
	g, err := f.store.GetGame(context.Background(), f.id)
	require.NoError(t, err)
	g.Processing = true
	g.ProcessingSince = f.clock.Now()
	_, err = f.store.UpdateGame(context.Background(), g)
	require.NoError(t, err)
}

func TestGuardRerunsTriggerDroppedWhileBusy(t *testing.T) {
	f := newGuardFixture(t)
	guard, store, id := f.guard, f.store, f.id
	ctx := context.Background()

	var order []string
	var nestedRan bool
	second := func(ctx context.Context, g *domain.Game) (app.Transition, error) {
		order = append(order, "second")
		assert.True(t, g.Processing)
		assert.Equal(t, int64(1), g.Step, "second trigger must see the first one's write")
		return app.Transition{}, nil
	}
	first := func(ctx context.Context, g *domain.Game) (app.Transition, error) {
		order = append(order, "first")
		ran, err := guard.TryRun(ctx, g.ID, second)
		require.NoError(t, err)
		nestedRan = ran
		g.Step++
		return app.Transition{Changed: true, Then: func() { order = append(order, "then") }}, nil
	}

	ran, err := guard.TryRun(ctx, id, first)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, nestedRan)
	assert.Equal(t, []string{"first", "then", "second"}, order)

	g, err := store.GetGame(ctx, id)
	require.NoError(t, err)
	assert.False(t, g.Processing)
	assert.Equal(t, int64(1), g.Step)
}

func TestGuardClearsMarkerWhenStepFails(t *testing.T) {
	f := newGuardFixture(t)
	guard, store, id := f.guard, f.store, f.id
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := guard.TryRun(ctx, id, func(ctx context.Context, g *domain.Game) (app.Transition, error) {
		g.Step = 99
		return app.Transition{Changed: true}, boom
	})
	assert.ErrorIs(t, err, boom)

	g, err := store.GetGame(ctx, id)
	require.NoError(t, err)
	assert.False(t, g.Processing)
	assert.Equal(t, int64(0), g.Step, "failed step must not be committed")
}

func TestGuardReclaimsStaleMarker(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	f.holdElsewhere(t)

	runs := 0
	step := func(ctx context.Context, g *domain.Game) (app.Transition, error) {
		runs++
		return app.Transition{}, nil
	}
	ran, err := f.guard.TryRun(ctx, f.id, step)
	require.NoError(t, err)
	assert.False(t, ran, "fresh marker must be respected")
	assert.Equal(t, 1, f.sched.Pending(), "trigger is re-armed")

	// The holder never comes back; retries keep firing until the marker is stale.
	for i := 0; i < 31 && runs == 0; i++ {
		f.clock.Advance(time.Second)
		f.sched.RunDue()
	}
	assert.Equal(t, 1, runs)
	assert.Equal(t, 0, f.sched.Pending())

	g, err := f.store.GetGame(ctx, f.id)
	require.NoError(t, err)
	assert.False(t, g.Processing)
}

func TestGuardRetriesTriggerOnceRemoteHolderReleases(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	f.holdElsewhere(t)

	runs := 0
	ran, err := f.guard.TryRun(ctx, f.id, func(ctx context.Context, g *domain.Game) (app.Transition, error) {
		runs++
		g.Step++
		return app.Transition{Changed: true}, nil
	})
	require.NoError(t, err)
	assert.False(t, ran)

	g, err := f.store.GetGame(ctx, f.id)
	require.NoError(t, err)
	g.Processing = false
	g.ProcessingSince = time.Time{}
	_, err = f.store.UpdateGame(ctx, g)
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	assert.Equal(t, 1, f.sched.RunDue())
	assert.Equal(t, 1, runs)
	g, err = f.store.GetGame(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), g.Step)
	assert.False(t, g.Processing)
}

func TestGuardSerializesConcurrentTriggers(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	active, overlaps, runs := 0, 0, 0
	step := func(ctx context.Context, g *domain.Game) (app.Transition, error) {
		mu.Lock()
		active++
		if active > 1 {
			overlaps++
		}
		runs++
		mu.Unlock()

		time.Sleep(time.Millisecond)
		g.Step++

		mu.Lock()
		active--
		mu.Unlock()
		return app.Transition{Changed: true}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.guard.TryRun(ctx, f.id, step); err != nil {
				t.Errorf("try run: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, overlaps)
	assert.Equal(t, 8, runs, "dropped triggers are rerun by the holder")
	g, err := f.store.GetGame(ctx, f.id)
	require.NoError(t, err)
	assert.Equal(t, int64(8), g.Step)
	assert.False(t, g.Processing)
	assert.Equal(t, 0, f.sched.Pending())
}

func TestGuardRunReportsMissingGame(t *testing.T) {
	f := newGuardFixture(t)
	err := f.guard.Run(context.Background(), 404, func(ctx context.Context, g *domain.Game) (app.Transition, error) {
		t.Fatal("step must not run")
		return app.Transition{}, nil
	})
	assert.ErrorIs(t, err, domain.ErrGameNotFound)
}
