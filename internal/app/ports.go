package app

import (
	"context"
	"time"

	"trivia-duel/internal/domain"
)

// GameRepository persists game aggregates. UpdateGame writes the whole record;
// every caller holds the game's processing marker while doing so.
type GameRepository interface {
	CreateGame(ctx context.Context, game domain.Game) (domain.Game, error)
	GetGame(ctx context.Context, id int64) (domain.Game, error)
	// GetGameByCode returns the newest unfinished game holding code.
	GetGameByCode(ctx context.Context, code string) (domain.Game, error)
	UpdateGame(ctx context.Context, game domain.Game) (domain.Game, error)
	ListGamesByStatus(ctx context.Context, statuses ...domain.GameStatus) ([]domain.Game, error)
}

// PlayerRepository persists players. Players are listed in join order.
type PlayerRepository interface {
	CreatePlayer(ctx context.Context, player domain.Player) (domain.Player, error)
	GetPlayer(ctx context.Context, id int64) (domain.Player, error)
	GetPlayerByToken(ctx context.Context, token string) (domain.Player, error)
	ListPlayers(ctx context.Context, gameID int64) ([]domain.Player, error)
	UpdateScore(ctx context.Context, id int64, score int) (domain.Player, error)
	TouchPlayer(ctx context.Context, id int64, at time.Time) error
	RemovePlayer(ctx context.Context, gameID int64, token string) error
}

// AnswerRepository stores answers. CreateAnswer returns domain.ErrAlreadyAnswered
// when the player already answered the same (round, question).
type AnswerRepository interface {
	CreateAnswer(ctx context.Context, answer domain.Answer) (domain.Answer, error)
	ListAnswers(ctx context.Context, gameID int64, round, question int) ([]domain.Answer, error)
	ListAnswersByGame(ctx context.Context, gameID int64) ([]domain.Answer, error)
}

// RoundRepository stores settled rounds. CreateRound returns
// domain.ErrRoundExists for a duplicate round number.
type RoundRepository interface {
	CreateRound(ctx context.Context, round domain.Round) (domain.Round, error)
	ListRounds(ctx context.Context, gameID int64) ([]domain.Round, error)
}

// Store bundles the four repositories the game core needs.
type Store interface {
	GameRepository
	PlayerRepository
	AnswerRepository
	RoundRepository
}

// QuestionSupplier hands out questions of a given type.
type QuestionSupplier interface {
	// RequestBatch returns up to count distinct questions.
	RequestBatch(ctx context.Context, qtype domain.QuestionType, count int) ([]domain.Question, error)
	// RequestOne returns a question whose ID is not in exclude when possible.
	RequestOne(ctx context.Context, qtype domain.QuestionType, exclude []string) (domain.Question, error)
}

// Locker provides a per-key exclusive section.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// PresenceRepository tracks player liveness with expiring marks.
type PresenceRepository interface {
	Touch(ctx context.Context, gameID, playerID int64, ttl time.Duration) error
	Alive(ctx context.Context, gameID, playerID int64) (bool, error)
	Forget(ctx context.Context, gameID, playerID int64) error
}
