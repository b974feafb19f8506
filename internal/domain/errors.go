package domain

import "errors"

// Kind classifies an error for the boundary layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is a typed outcome returned by the game core.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	// ErrInvalidName is returned when a display name is empty or too long.
	ErrInvalidName = newError(KindValidation, "name must be 1-10 characters")
	// ErrInvalidCode is returned when a join code is not four digits.
	ErrInvalidCode = newError(KindValidation, "join code must be 4 digits")
	// ErrInvalidAnswer is returned when a submitted value does not fit the active question.
	ErrInvalidAnswer = newError(KindValidation, "invalid answer value")

	ErrGameNotFound   = newError(KindNotFound, "game not found")
	ErrPlayerNotFound = newError(KindNotFound, "player not found")
	// ErrRoundExists is returned by storage when a round number is recorded twice.
	ErrRoundExists = newError(KindConflict, "round already recorded")
	// ErrCodeTaken is returned by storage when an active game already holds a code.
	ErrCodeTaken = newError(KindConflict, "join code already in use")

	ErrGameFull         = newError(KindConflict, "game is full")
	ErrAlreadyStarted   = newError(KindConflict, "game already started")
	ErrNotEnoughPlayers = newError(KindConflict, "two players are required to start")
	ErrNotCreator       = newError(KindConflict, "only the creator can start the game")
	ErrInvalidSession   = newError(KindConflict, "invalid session")
	ErrAlreadyAnswered  = newError(KindConflict, "answer already submitted")
	ErrDeadlinePassed   = newError(KindConflict, "answer deadline passed")
	ErrNoActiveQuestion = newError(KindConflict, "no question is accepting answers")
	ErrLobbyClosed      = newError(KindConflict, "heartbeats are only accepted in the lobby")
	ErrGameFinished     = newError(KindConflict, "game is finished")

	// ErrBusy is returned when a game stays locked by another transition past the retry budget.
	ErrBusy = newError(KindUnavailable, "game is busy, try again")
	// ErrUnavailable hides storage failures from callers.
	ErrUnavailable = newError(KindUnavailable, "service unavailable, try again")
	// ErrNoQuestions is returned when the question supplier has nothing of a type.
	ErrNoQuestions = newError(KindUnavailable, "no questions available")
)

// KindOf reports the kind of err, KindInternal for untyped errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsTyped reports whether err carries a domain kind.
func IsTyped(err error) bool {
	var de *Error
	return errors.As(err, &de)
}
