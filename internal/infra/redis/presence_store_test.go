package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestPresenceStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewPresenceStore(newClient(mr))
	ctx := context.Background()

	if err := store.Touch(ctx, 3, 9, 30*time.Second); err != nil {
		t.Fatalf("touch: %v", err)
	}
	if !mr.Exists("duel:presence:3:9") {
		t.Fatalf("expected redis key to be set")
	}
	if alive, err := store.Alive(ctx, 3, 9); err != nil || !alive {
		t.Fatalf("expected alive, got %v %v", alive, err)
	}

	mr.FastForward(31 * time.Second)
	if alive, _ := store.Alive(ctx, 3, 9); alive {
		t.Fatalf("expected presence to expire with the key TTL")
	}

	_ = store.Touch(ctx, 3, 9, 30*time.Second)
	if err := store.Forget(ctx, 3, 9); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if mr.Exists("duel:presence:3:9") {
		t.Fatalf("expected redis key to be removed")
	}
}
