package app

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"trivia-duel/internal/domain"
)

// TieBreak explains how a question outcome was reached.
type TieBreak string

const (
	TieBreakOnlyCorrect   TieBreak = "only_correct"
	TieBreakBothCorrect   TieBreak = "both_correct"
	TieBreakNoneCorrect   TieBreak = "none_correct"
	TieBreakNoAnswers     TieBreak = "no_answers"
	TieBreakLoneAnswer    TieBreak = "lone_answer"
	TieBreakExact         TieBreak = "exact"
	TieBreakEarlierExact  TieBreak = "earlier_exact"
	TieBreakCloser        TieBreak = "closer"
	TieBreakEarlierEqual  TieBreak = "earlier_equal_distance"
	TieBreakLowerPlayerID TieBreak = "lower_player_id"
)

// ChoiceOutcome is the result of a multiple-choice question. The round is
// decided only when exactly one player was correct.
type ChoiceOutcome struct {
	CorrectCount int
	WinnerID     *int64
	Reason       TieBreak
}

// Decided reports whether question 1 settled the round.
func (o ChoiceOutcome) Decided() bool {
	return o.CorrectCount == 1
}

// IntegerOutcome is the result of an estimation question. It is always
// decided; WinnerID is nil when nobody gave a usable answer.
type IntegerOutcome struct {
	Decided  bool
	WinnerID *int64
	Reason   TieBreak
}

// EvaluateChoice scores a multiple-choice question for the roster.
func EvaluateChoice(q domain.Question, answers []domain.Answer, players []domain.Player) ChoiceOutcome {
	byPlayer := answersByPlayer(answers)
	var correct []int64
	for _, p := range players {
		a, ok := byPlayer[p.ID]
		if !ok {
			continue
		}
		if choiceIndex(q, a) == q.CorrectIndex {
			correct = append(correct, p.ID)
		}
	}

	switch len(correct) {
	case 1:
		winner := correct[0]
		return ChoiceOutcome{CorrectCount: 1, WinnerID: &winner, Reason: TieBreakOnlyCorrect}
	case 0:
		return ChoiceOutcome{Reason: TieBreakNoneCorrect}
	default:
		return ChoiceOutcome{CorrectCount: len(correct), Reason: TieBreakBothCorrect}
	}
}

type estimate struct {
	playerID int64
	distance uint64
	at       time.Time
}

// EvaluateInteger scores an estimation question: closest answer wins, equal
// distances go to the earlier submission, then to the lower player ID.
func EvaluateInteger(q domain.Question, answers []domain.Answer, players []domain.Player) IntegerOutcome {
	byPlayer := answersByPlayer(answers)
	var valid []estimate
	for _, p := range players {
		a, ok := byPlayer[p.ID]
		if !ok {
			continue
		}
		v, ok := parseEstimate(a)
		if !ok {
			continue
		}
		valid = append(valid, estimate{playerID: p.ID, distance: distance(v, q.CorrectValue), at: a.SubmittedAt})
	}

	switch len(valid) {
	case 0:
		return IntegerOutcome{Decided: true, Reason: TieBreakNoAnswers}
	case 1:
		winner := valid[0].playerID
		return IntegerOutcome{Decided: true, WinnerID: &winner, Reason: TieBreakLoneAnswer}
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return closer(valid[i], valid[j])
	})
	first, second := valid[0], valid[1]
	winner := first.playerID

	var reason TieBreak
	switch {
	case first.distance == 0 && second.distance != 0:
		reason = TieBreakExact
	case first.distance != second.distance:
		reason = TieBreakCloser
	case !first.at.Equal(second.at):
		if first.distance == 0 {
			reason = TieBreakEarlierExact
		} else {
			reason = TieBreakEarlierEqual
		}
	default:
		reason = TieBreakLowerPlayerID
	}
	return IntegerOutcome{Decided: true, WinnerID: &winner, Reason: reason}
}

// distance is |v - want|. It cannot overflow for any pair of int values.
func distance(v, want int) uint64 {
	a, b := int64(v), int64(want)
	if a >= b {
		return uint64(a) - uint64(b)
	}
	return uint64(b) - uint64(a)
}

func closer(a, b estimate) bool {
	if a.distance != b.distance {
		return a.distance < b.distance
	}
	if !a.at.Equal(b.at) {
		return a.at.Before(b.at)
	}
	return a.playerID < b.playerID
}

// answersByPlayer keeps the first answer per player.
func answersByPlayer(answers []domain.Answer) map[int64]domain.Answer {
	out := make(map[int64]domain.Answer, len(answers))
	for _, a := range answers {
		if _, ok := out[a.PlayerID]; !ok {
			out[a.PlayerID] = a
		}
	}
	return out
}

// choiceIndex resolves the selected option from either the stored index or
// the stored value, which may be the option text or its index. -1 means none.
func choiceIndex(q domain.Question, a domain.Answer) int {
	if a.Missing() {
		return -1
	}
	if a.OptionIndex != nil {
		return *a.OptionIndex
	}
	value := strings.TrimSpace(a.Value)
	for i, opt := range q.Options {
		if strings.EqualFold(strings.TrimSpace(opt), value) {
			return i
		}
	}
	if n, err := strconv.Atoi(value); err == nil && n >= 0 && n < len(q.Options) {
		return n
	}
	return -1
}

func parseEstimate(a domain.Answer) (int, bool) {
	if a.Missing() {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(a.Value))
	if err != nil {
		return 0, false
	}
	return v, true
}
