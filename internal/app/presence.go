package app

import (
	"context"
	"errors"
	"log"
	"time"

	"trivia-duel/internal/domain"
)

// Sessions maps session tokens to players and tracks lobby presence.
type Sessions struct {
	players  PlayerRepository
	presence PresenceRepository
	ttl      time.Duration
	retry    RetryPolicy
	now      func() time.Time
}

func NewSessions(players PlayerRepository, presence PresenceRepository, ttl time.Duration, retry RetryPolicy, now func() time.Time) *Sessions {
	return &Sessions{players: players, presence: presence, ttl: ttl, retry: retry, now: now}
}

// Resolve returns the player holding token in gameID.
func (s *Sessions) Resolve(ctx context.Context, gameID int64, token string) (domain.Player, error) {
	if token == "" {
		return domain.Player{}, domain.ErrInvalidSession
	}
	player, err := retry(ctx, s.retry, "get player by token", func() (domain.Player, error) {
		return s.players.GetPlayerByToken(ctx, token)
	})
	if errors.Is(err, domain.ErrPlayerNotFound) {
		return domain.Player{}, domain.ErrInvalidSession
	}
	if err != nil {
		return domain.Player{}, err
	}
	if player.GameID != gameID {
		return domain.Player{}, domain.ErrInvalidSession
	}
	return player, nil
}

// Touch records a heartbeat for player.
func (s *Sessions) Touch(ctx context.Context, player domain.Player) error {
	if err := retryErr(ctx, s.retry, "touch player", func() error {
		return s.players.TouchPlayer(ctx, player.ID, s.now())
	}); err != nil {
		return err
	}
	return retryErr(ctx, s.retry, "touch presence", func() error {
		return s.presence.Touch(ctx, player.GameID, player.ID, s.ttl)
	})
}

// Forget drops the presence mark of a departed player.
func (s *Sessions) Forget(ctx context.Context, player domain.Player) {
	if err := s.presence.Forget(ctx, player.GameID, player.ID); err != nil {
		log.Printf("[sessions] forget player %d: %v", player.ID, err)
	}
}

// Stale lists the players of gameID whose heartbeat expired.
func (s *Sessions) Stale(ctx context.Context, gameID int64) ([]domain.Player, error) {
	players, err := retry(ctx, s.retry, "list players", func() ([]domain.Player, error) {
		return s.players.ListPlayers(ctx, gameID)
	})
	if err != nil {
		return nil, err
	}
	var stale []domain.Player
	for _, p := range players {
		alive, err := s.presence.Alive(ctx, gameID, p.ID)
		if err != nil {
			return nil, err
		}
		if !alive {
			stale = append(stale, p)
		}
	}
	return stale, nil
}
