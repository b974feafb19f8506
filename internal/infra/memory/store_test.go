package memory

import (
	"context"
	"errors"
	"testing"

	"trivia-duel/internal/domain"
)

func TestStoreAnswerUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	game, _ := store.CreateGame(ctx, domain.Game{Code: "1234", Status: domain.StatusWaiting, CurrentRound: 1, CurrentQuestion: 1})
	player, _ := store.CreatePlayer(ctx, domain.Player{GameID: game.ID, Name: "Ann", SessionToken: "t1"})

	answer := domain.Answer{GameID: game.ID, PlayerID: player.ID, Round: 1, Question: 1, Value: "Mars"}
	if _, err := store.CreateAnswer(ctx, answer); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	answer.Value = "Earth"
	if _, err := store.CreateAnswer(ctx, answer); !errors.Is(err, domain.ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}

	answers, _ := store.ListAnswers(ctx, game.ID, 1, 1)
	if len(answers) != 1 || answers[0].Value != "Mars" {
		t.Fatalf("expected original answer kept, got %+v", answers)
	}
}

func TestStoreCodeReuseAfterFinish(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	game, err := store.CreateGame(ctx, domain.Game{Code: "0042", Status: domain.StatusWaiting})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateGame(ctx, domain.Game{Code: "0042", Status: domain.StatusWaiting}); !errors.Is(err, domain.ErrCodeTaken) {
		t.Fatalf("expected ErrCodeTaken, got %v", err)
	}

	game.Status = domain.StatusFinished
	if _, err := store.UpdateGame(ctx, game); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := store.GetGameByCode(ctx, "0042"); !errors.Is(err, domain.ErrGameNotFound) {
		t.Fatalf("expected finished game hidden from code lookup, got %v", err)
	}
	if _, err := store.CreateGame(ctx, domain.Game{Code: "0042", Status: domain.StatusWaiting}); err != nil {
		t.Fatalf("expected code reusable after finish: %v", err)
	}
}

func TestStoreGameIsCopied(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := domain.Question{ID: "c1", Options: []string{"a", "b"}}
	game, _ := store.CreateGame(ctx, domain.Game{Code: "1111", Question: &q})

	game.Question.Options[0] = "mutated"
	stored, _ := store.GetGame(ctx, game.ID)
	if stored.Question.Options[0] != "a" {
		t.Fatalf("expected store to keep its own copy, got %q", stored.Question.Options[0])
	}
}

func TestStoreRoundsOrderedAndUnique(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	game, _ := store.CreateGame(ctx, domain.Game{Code: "2222"})

	for _, n := range []int{2, 1, 3} {
		if _, err := store.CreateRound(ctx, domain.Round{GameID: game.ID, Number: n}); err != nil {
			t.Fatalf("create round %d: %v", n, err)
		}
	}
	if _, err := store.CreateRound(ctx, domain.Round{GameID: game.ID, Number: 2}); !errors.Is(err, domain.ErrRoundExists) {
		t.Fatalf("expected ErrRoundExists, got %v", err)
	}
	rounds, _ := store.ListRounds(ctx, game.ID)
	for i, r := range rounds {
		if r.Number != i+1 {
			t.Fatalf("expected ascending rounds, got %+v", rounds)
		}
	}
}
