package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"trivia-duel/internal/domain"
)

// Store persists games, players, answers and rounds through bun.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) CreateGame(ctx context.Context, game domain.Game) (domain.Game, error) {
	if game.CreatedAt.IsZero() {
		game.CreatedAt = s.now()
	}
	game.UpdatedAt = game.CreatedAt
	row := toGameRow(game)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.Game{}, mapErr(err, "create game")
	}
	return row.domain(), nil
}

func (s *Store) GetGame(ctx context.Context, id int64) (domain.Game, error) {
	var row gameRow
	err := s.db.NewSelect().Model(&row).Where("g.id = ?", id).Scan(ctx)
	if err != nil {
		return domain.Game{}, notFound(err, domain.ErrGameNotFound, "get game")
	}
	return row.domain(), nil
}

func (s *Store) GetGameByCode(ctx context.Context, code string) (domain.Game, error) {
	var row gameRow
	err := s.db.NewSelect().Model(&row).
		Where("g.code = ?", code).
		Where("g.status <> ?", string(domain.StatusFinished)).
		Order("g.id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Game{}, notFound(err, domain.ErrGameNotFound, "get game by code")
	}
	return row.domain(), nil
}

func (s *Store) UpdateGame(ctx context.Context, game domain.Game) (domain.Game, error) {
	game.UpdatedAt = s.now()
	row := toGameRow(game)
	res, err := s.db.NewUpdate().Model(&row).ExcludeColumn("created_at").WherePK().Exec(ctx)
	if err != nil {
		return domain.Game{}, mapErr(err, "update game")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Game{}, domain.ErrGameNotFound
	}
	return row.domain(), nil
}

func (s *Store) ListGamesByStatus(ctx context.Context, statuses ...domain.GameStatus) ([]domain.Game, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	raw := make([]string, len(statuses))
	for i, st := range statuses {
		raw[i] = string(st)
	}
	var rows []gameRow
	err := s.db.NewSelect().Model(&rows).
		Where("g.status IN (?)", bun.In(raw)).
		Order("g.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	out := make([]domain.Game, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out, nil
}

func (s *Store) CreatePlayer(ctx context.Context, player domain.Player) (domain.Player, error) {
	if player.CreatedAt.IsZero() {
		player.CreatedAt = s.now()
	}
	row := playerRow{
		GameID:       player.GameID,
		Name:         player.Name,
		Avatar:       player.Avatar,
		Score:        player.Score,
		SessionToken: player.SessionToken,
		LastSeen:     player.LastSeen,
		CreatedAt:    player.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.Player{}, mapErr(err, "create player")
	}
	return row.domain(), nil
}

func (s *Store) GetPlayer(ctx context.Context, id int64) (domain.Player, error) {
	var row playerRow
	if err := s.db.NewSelect().Model(&row).Where("p.id = ?", id).Scan(ctx); err != nil {
		return domain.Player{}, notFound(err, domain.ErrPlayerNotFound, "get player")
	}
	return row.domain(), nil
}

func (s *Store) GetPlayerByToken(ctx context.Context, token string) (domain.Player, error) {
	var row playerRow
	if err := s.db.NewSelect().Model(&row).Where("p.session_token = ?", token).Scan(ctx); err != nil {
		return domain.Player{}, notFound(err, domain.ErrPlayerNotFound, "get player by token")
	}
	return row.domain(), nil
}

func (s *Store) ListPlayers(ctx context.Context, gameID int64) ([]domain.Player, error) {
	var rows []playerRow
	err := s.db.NewSelect().Model(&rows).Where("p.game_id = ?", gameID).Order("p.id ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	out := make([]domain.Player, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out, nil
}

func (s *Store) UpdateScore(ctx context.Context, id int64, score int) (domain.Player, error) {
	var row playerRow
	_, err := s.db.NewUpdate().Model(&row).
		Set("score = ?", score).
		Where("id = ?", id).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.Player{}, notFound(err, domain.ErrPlayerNotFound, "update score")
	}
	if row.ID == 0 {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return row.domain(), nil
}

func (s *Store) TouchPlayer(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*playerRow)(nil)).
		Set("last_seen = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("touch player: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrPlayerNotFound
	}
	return nil
}

func (s *Store) RemovePlayer(ctx context.Context, gameID int64, token string) error {
	_, err := s.db.NewDelete().Model((*playerRow)(nil)).
		Where("game_id = ?", gameID).
		Where("session_token = ?", token).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove player: %w", err)
	}
	return nil
}

func (s *Store) CreateAnswer(ctx context.Context, answer domain.Answer) (domain.Answer, error) {
	row := answerRow{
		GameID:        answer.GameID,
		PlayerID:      answer.PlayerID,
		Round:         answer.Round,
		Question:      answer.Question,
		Value:         answer.Value,
		OptionIndex:   answer.OptionIndex,
		SubmittedAt:   answer.SubmittedAt,
		QuestionText:  answer.QuestionText,
		CorrectAnswer: answer.CorrectAnswer,
		IsCorrect:     answer.IsCorrect,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.Answer{}, mapErr(err, "create answer")
	}
	return row.domain(), nil
}

func (s *Store) ListAnswers(ctx context.Context, gameID int64, round, question int) ([]domain.Answer, error) {
	var rows []answerRow
	err := s.db.NewSelect().Model(&rows).
		Where("a.game_id = ?", gameID).
		Where("a.round = ?", round).
		Where("a.question = ?", question).
		Order("a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return answersOf(rows), nil
}

func (s *Store) ListAnswersByGame(ctx context.Context, gameID int64) ([]domain.Answer, error) {
	var rows []answerRow
	err := s.db.NewSelect().Model(&rows).
		Where("a.game_id = ?", gameID).
		Order("a.round ASC", "a.question ASC", "a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answers by game: %w", err)
	}
	return answersOf(rows), nil
}

func (s *Store) CreateRound(ctx context.Context, round domain.Round) (domain.Round, error) {
	row := roundRow{
		GameID:      round.GameID,
		Number:      round.Number,
		WinnerID:    round.WinnerID,
		CompletedAt: round.CompletedAt,
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.Round{}, mapErr(err, "create round")
	}
	return row.domain(), nil
}

func (s *Store) ListRounds(ctx context.Context, gameID int64) ([]domain.Round, error) {
	var rows []roundRow
	err := s.db.NewSelect().Model(&rows).Where("r.game_id = ?", gameID).Order("r.number ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	out := make([]domain.Round, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out, nil
}

func answersOf(rows []answerRow) []domain.Answer {
	out := make([]domain.Answer, len(rows))
	for i, r := range rows {
		out[i] = r.domain()
	}
	return out
}

func notFound(err, sentinel error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", op, err)
}

// mapErr turns unique violations into the domain conflict for the table.
func mapErr(err error, op string) error {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
		switch pgErr.Field('t') {
		case "games":
			return domain.ErrCodeTaken
		case "players":
			return domain.ErrInvalidSession
		case "answers":
			return domain.ErrAlreadyAnswered
		case "rounds":
			return domain.ErrRoundExists
		}
	}
	if errors.As(err, &pgErr) && pgErr.Field('C') == "23503" {
		return domain.ErrGameNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
