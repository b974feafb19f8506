package domain

import (
	"strconv"
	"time"
)

// GameStatus is the lifecycle state of a duel.
type GameStatus string

const (
	StatusWaiting        GameStatus = "waiting"
	StatusPlaying        GameStatus = "playing"
	StatusShowingResults GameStatus = "showing_results"
	StatusFinished       GameStatus = "finished"
)

// Active reports whether the game is past the lobby and not yet over.
func (s GameStatus) Active() bool {
	return s == StatusPlaying || s == StatusShowingResults
}

// QuestionType selects the slot a question fills within a round.
type QuestionType string

const (
	// QuestionChoice is always question 1 of a round.
	QuestionChoice QuestionType = "choice"
	// QuestionInteger is always question 2 of a round.
	QuestionInteger QuestionType = "integer"
)

// NoAnswer is recorded for a player who did not submit before the deadline.
const NoAnswer = "no_answer"

// Question is a single trivia prompt. Choice questions use Options and
// CorrectIndex; integer questions use CorrectValue.
type Question struct {
	ID           string       `json:"id" yaml:"id"`
	Type         QuestionType `json:"type" yaml:"type"`
	Text         string       `json:"text" yaml:"text"`
	Category     string       `json:"category" yaml:"category"`
	Options      []string     `json:"options,omitempty" yaml:"options"`
	CorrectIndex int          `json:"correctIndex,omitempty" yaml:"correct_index"`
	CorrectValue int          `json:"correctValue,omitempty" yaml:"correct_value"`
}

// CorrectText renders the correct answer for history snapshots.
func (q Question) CorrectText() string {
	if q.Type == QuestionChoice {
		if q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options) {
			return q.Options[q.CorrectIndex]
		}
		return ""
	}
	return strconv.Itoa(q.CorrectValue)
}

// Public strips the correct answer so the question can be shown to players.
func (q Question) Public() Question {
	q.CorrectIndex = 0
	q.CorrectValue = 0
	return q
}

// QuestionBatch is the per-game pre-fetched supply of questions. It lives on
// the Game record and is released when the game finishes.
type QuestionBatch struct {
	Choice  []Question `json:"choice,omitempty"`
	Integer []Question `json:"integer,omitempty"`
	Used    []string   `json:"used,omitempty"`
}

// Continuation names the deferred step a game in showing_results is waiting on.
type Continuation string

const (
	ContinueNone Continuation = ""
	// ContinueQuestion2 opens question 2 of the current round.
	ContinueQuestion2 Continuation = "question2"
	// ContinueNextRound opens question 1 of the next round.
	ContinueNextRound Continuation = "next_round"
	// ContinueScoreboard shows the final scoreboard before finishing.
	ContinueScoreboard Continuation = "scoreboard"
	// ContinueFinish moves the game to finished.
	ContinueFinish Continuation = "finish"
)

// Game is the aggregate root of a duel.
type Game struct {
	ID                int64
	Code              string
	Status            GameStatus
	CreatorID         *int64
	CurrentRound      int
	CurrentQuestion   int
	Question          *Question
	QuestionDeadline  time.Time
	LastRoundWinnerID *int64
	WinnerID          *int64
	Processing        bool
	ProcessingSince   time.Time
	// Step increases on every transition; deferred continuations carry the
	// step they were scheduled at and become no-ops once it moves on.
	Step      int64
	Pending   Continuation
	ResumeAt  time.Time
	Batch     QuestionBatch
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Player is one of the two participants of a game.
type Player struct {
	ID           int64
	GameID       int64
	Name         string
	Avatar       string
	Score        int
	SessionToken string
	LastSeen     time.Time
	CreatedAt    time.Time
}

// Answer is one player's response to one question of one round.
type Answer struct {
	ID          int64
	GameID      int64
	PlayerID    int64
	Round       int
	Question    int
	Value       string
	OptionIndex *int
	SubmittedAt time.Time
	// Snapshots keep history readable after the question is released.
	QuestionText  string
	CorrectAnswer string
	IsCorrect     bool
}

// Missing reports whether the answer is the no-answer sentinel.
func (a Answer) Missing() bool {
	return a.Value == NoAnswer
}

// Round is the immutable record of a settled round.
type Round struct {
	ID          int64
	GameID      int64
	Number      int
	WinnerID    *int64
	CompletedAt time.Time
}

// Snapshot is the read model returned to polling clients.
type Snapshot struct {
	Game    Game
	Players []Player
	Rounds  []Round
}
