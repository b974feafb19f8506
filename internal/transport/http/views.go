package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"trivia-duel/internal/app"
	"trivia-duel/internal/domain"
)

// Views are the wire shapes returned to clients. Session tokens only ever
// leave the server in joinedView, and only to their owner.

type questionView struct {
	ID       string              `json:"id"`
	Type     domain.QuestionType `json:"type"`
	Text     string              `json:"text"`
	Category string              `json:"category,omitempty"`
	Options  []string            `json:"options,omitempty"`
}

type gameView struct {
	ID                int64             `json:"id"`
	Code              string            `json:"code"`
	Status            domain.GameStatus `json:"status"`
	CreatorID         *int64            `json:"creatorId,omitempty"`
	CurrentRound      int               `json:"currentRound"`
	CurrentQuestion   int               `json:"currentQuestion"`
	Question          *questionView     `json:"question,omitempty"`
	QuestionDeadline  *time.Time        `json:"questionDeadline,omitempty"`
	LastRoundWinnerID *int64            `json:"lastRoundWinnerId,omitempty"`
	WinnerID          *int64            `json:"winnerId,omitempty"`
	Evaluating        bool              `json:"evaluating"`
	Pending           string            `json:"pending,omitempty"`
	ResumeAt          *time.Time        `json:"resumeAt,omitempty"`
}

type playerView struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	Avatar   string     `json:"avatar,omitempty"`
	Score    int        `json:"score"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type roundView struct {
	Number      int       `json:"number"`
	WinnerID    *int64    `json:"winnerId,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

type stateView struct {
	Game    gameView     `json:"game"`
	Players []playerView `json:"players"`
	Rounds  []roundView  `json:"rounds"`
}

type joinedView struct {
	Game         gameView   `json:"game"`
	Player       playerView `json:"player"`
	SessionToken string     `json:"sessionToken"`
}

type answerView struct {
	PlayerID      int64     `json:"playerId"`
	Round         int       `json:"round"`
	Question      int       `json:"question"`
	Value         string    `json:"value"`
	OptionIndex   *int      `json:"optionIndex,omitempty"`
	SubmittedAt   time.Time `json:"submittedAt"`
	QuestionText  string    `json:"questionText"`
	CorrectAnswer string    `json:"correctAnswer"`
	IsCorrect     bool      `json:"isCorrect"`
}

// receiptView acknowledges a submission without revealing correctness.
type receiptView struct {
	Round       int       `json:"round"`
	Question    int       `json:"question"`
	Value       string    `json:"value"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type errorView struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func toGameView(g domain.Game) gameView {
	v := gameView{
		ID:                g.ID,
		Code:              g.Code,
		Status:            g.Status,
		CreatorID:         g.CreatorID,
		CurrentRound:      g.CurrentRound,
		CurrentQuestion:   g.CurrentQuestion,
		LastRoundWinnerID: g.LastRoundWinnerID,
		WinnerID:          g.WinnerID,
		Evaluating:        g.Processing,
		Pending:           string(g.Pending),
	}
	if g.Status == domain.StatusPlaying && g.Question != nil {
		q := g.Question.Public()
		v.Question = &questionView{ID: q.ID, Type: q.Type, Text: q.Text, Category: q.Category, Options: q.Options}
		deadline := g.QuestionDeadline
		v.QuestionDeadline = &deadline
	}
	if !g.ResumeAt.IsZero() {
		resume := g.ResumeAt
		v.ResumeAt = &resume
	}
	return v
}

func toPlayerView(p domain.Player) playerView {
	v := playerView{ID: p.ID, Name: p.Name, Avatar: p.Avatar, Score: p.Score}
	if !p.LastSeen.IsZero() {
		seen := p.LastSeen
		v.LastSeen = &seen
	}
	return v
}

func toStateView(s domain.Snapshot) stateView {
	v := stateView{Game: toGameView(s.Game), Players: []playerView{}, Rounds: []roundView{}}
	for _, p := range s.Players {
		v.Players = append(v.Players, toPlayerView(p))
	}
	for _, r := range s.Rounds {
		v.Rounds = append(v.Rounds, roundView{Number: r.Number, WinnerID: r.WinnerID, CompletedAt: r.CompletedAt})
	}
	return v
}

func toJoinedView(j app.Joined) joinedView {
	return joinedView{Game: toGameView(j.Game), Player: toPlayerView(j.Player), SessionToken: j.SessionToken}
}

func toAnswerViews(answers []domain.Answer) []answerView {
	out := make([]answerView, 0, len(answers))
	for _, a := range answers {
		out = append(out, answerView{
			PlayerID:      a.PlayerID,
			Round:         a.Round,
			Question:      a.Question,
			Value:         a.Value,
			OptionIndex:   a.OptionIndex,
			SubmittedAt:   a.SubmittedAt,
			QuestionText:  a.QuestionText,
			CorrectAnswer: a.CorrectAnswer,
			IsCorrect:     a.IsCorrect,
		})
	}
	return out
}

func toReceipt(a domain.Answer) receiptView {
	return receiptView{Round: a.Round, Question: a.Question, Value: a.Value, SubmittedAt: a.SubmittedAt}
}

type answerRequest struct {
	OptionIndex *int            `json:"optionIndex"`
	Value       json.RawMessage `json:"value"`
}

// submission accepts the value either as a JSON string or a bare number.
func (r answerRequest) submission() (app.Submission, error) {
	sub := app.Submission{OptionIndex: r.OptionIndex}
	raw := bytes.TrimSpace(r.Value)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return sub, nil
	}
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &sub.Value); err != nil {
			return sub, domain.ErrInvalidAnswer
		}
		return sub, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return sub, domain.ErrInvalidAnswer
	}
	sub.Value = n.String()
	return sub, nil
}

func statusOf(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody hides untyped errors behind a generic message.
func errorBody(err error) errorView {
	var de *domain.Error
	if errors.As(err, &de) {
		return errorView{Error: de.Message, Kind: de.Kind.String()}
	}
	log.Printf("[http] internal error: %v", err)
	return errorView{Error: "internal error", Kind: domain.KindInternal.String()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[http] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), errorBody(err))
}
