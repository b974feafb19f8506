package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"trivia-duel/internal/domain"
)

type gameRow struct {
	bun.BaseModel `bun:"table:games,alias:g"`

	ID                int64                `bun:"id,pk,autoincrement"`
	Code              string               `bun:"code,notnull"`
	Status            string               `bun:"status,notnull"`
	CreatorID         *int64               `bun:"creator_id"`
	CurrentRound      int                  `bun:"current_round,notnull"`
	CurrentQuestion   int                  `bun:"current_question,notnull"`
	Question          *domain.Question     `bun:"question_data,type:jsonb"`
	QuestionDeadline  time.Time            `bun:"question_deadline,nullzero"`
	LastRoundWinnerID *int64               `bun:"last_round_winner_id"`
	WinnerID          *int64               `bun:"winner_id"`
	Processing        bool                 `bun:"processing,notnull"`
	ProcessingSince   time.Time            `bun:"processing_since,nullzero"`
	Step              int64                `bun:"step,notnull"`
	Pending           string               `bun:"pending,notnull"`
	ResumeAt          time.Time            `bun:"resume_at,nullzero"`
	Batch             domain.QuestionBatch `bun:"question_batch,type:jsonb"`
	CreatedAt         time.Time            `bun:"created_at,notnull"`
	UpdatedAt         time.Time            `bun:"updated_at,notnull"`
}

func toGameRow(g domain.Game) gameRow {
	return gameRow{
		ID:                g.ID,
		Code:              g.Code,
		Status:            string(g.Status),
		CreatorID:         g.CreatorID,
		CurrentRound:      g.CurrentRound,
		CurrentQuestion:   g.CurrentQuestion,
		Question:          g.Question,
		QuestionDeadline:  g.QuestionDeadline,
		LastRoundWinnerID: g.LastRoundWinnerID,
		WinnerID:          g.WinnerID,
		Processing:        g.Processing,
		ProcessingSince:   g.ProcessingSince,
		Step:              g.Step,
		Pending:           string(g.Pending),
		ResumeAt:          g.ResumeAt,
		Batch:             g.Batch,
		CreatedAt:         g.CreatedAt,
		UpdatedAt:         g.UpdatedAt,
	}
}

func (r gameRow) domain() domain.Game {
	return domain.Game{
		ID:                r.ID,
		Code:              r.Code,
		Status:            domain.GameStatus(r.Status),
		CreatorID:         r.CreatorID,
		CurrentRound:      r.CurrentRound,
		CurrentQuestion:   r.CurrentQuestion,
		Question:          r.Question,
		QuestionDeadline:  r.QuestionDeadline,
		LastRoundWinnerID: r.LastRoundWinnerID,
		WinnerID:          r.WinnerID,
		Processing:        r.Processing,
		ProcessingSince:   r.ProcessingSince,
		Step:              r.Step,
		Pending:           domain.Continuation(r.Pending),
		ResumeAt:          r.ResumeAt,
		Batch:             r.Batch,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type playerRow struct {
	bun.BaseModel `bun:"table:players,alias:p"`

	ID           int64     `bun:"id,pk,autoincrement"`
	GameID       int64     `bun:"game_id,notnull"`
	Name         string    `bun:"name,notnull"`
	Avatar       string    `bun:"avatar,notnull"`
	Score        int       `bun:"score,notnull"`
	SessionToken string    `bun:"session_token,notnull"`
	LastSeen     time.Time `bun:"last_seen,nullzero"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

func (r playerRow) domain() domain.Player {
	return domain.Player{
		ID:           r.ID,
		GameID:       r.GameID,
		Name:         r.Name,
		Avatar:       r.Avatar,
		Score:        r.Score,
		SessionToken: r.SessionToken,
		LastSeen:     r.LastSeen,
		CreatedAt:    r.CreatedAt,
	}
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID            int64     `bun:"id,pk,autoincrement"`
	GameID        int64     `bun:"game_id,notnull"`
	PlayerID      int64     `bun:"player_id,notnull"`
	Round         int       `bun:"round,notnull"`
	Question      int       `bun:"question,notnull"`
	Value         string    `bun:"value,notnull"`
	OptionIndex   *int      `bun:"option_index"`
	SubmittedAt   time.Time `bun:"submitted_at,notnull"`
	QuestionText  string    `bun:"question_text,notnull"`
	CorrectAnswer string    `bun:"correct_answer,notnull"`
	IsCorrect     bool      `bun:"is_correct,notnull"`
}

func (r answerRow) domain() domain.Answer {
	return domain.Answer{
		ID:            r.ID,
		GameID:        r.GameID,
		PlayerID:      r.PlayerID,
		Round:         r.Round,
		Question:      r.Question,
		Value:         r.Value,
		OptionIndex:   r.OptionIndex,
		SubmittedAt:   r.SubmittedAt,
		QuestionText:  r.QuestionText,
		CorrectAnswer: r.CorrectAnswer,
		IsCorrect:     r.IsCorrect,
	}
}

type roundRow struct {
	bun.BaseModel `bun:"table:rounds,alias:r"`

	ID          int64     `bun:"id,pk,autoincrement"`
	GameID      int64     `bun:"game_id,notnull"`
	Number      int       `bun:"number,notnull"`
	WinnerID    *int64    `bun:"winner_id"`
	CompletedAt time.Time `bun:"completed_at,notnull"`
}

func (r roundRow) domain() domain.Round {
	return domain.Round{
		ID:          r.ID,
		GameID:      r.GameID,
		Number:      r.Number,
		WinnerID:    r.WinnerID,
		CompletedAt: r.CompletedAt,
	}
}
