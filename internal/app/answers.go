package app

import (
	"strconv"
	"strings"

	"trivia-duel/internal/domain"
)

// Submission is what a client sends for the active question: either the
// index of a choice option or a text value (option text or an integer).
type Submission struct {
	OptionIndex *int
	Value       string
}

// normalizeAnswer turns a submission into its canonical stored form: the
// option text plus its index for choice questions, the decimal integer for
// estimation questions.
func normalizeAnswer(q domain.Question, sub Submission) (domain.Answer, error) {
	switch q.Type {
	case domain.QuestionChoice:
		idx := -1
		if sub.OptionIndex != nil {
			idx = *sub.OptionIndex
		} else {
			value := strings.TrimSpace(sub.Value)
			for i, opt := range q.Options {
				if strings.EqualFold(strings.TrimSpace(opt), value) {
					idx = i
					break
				}
			}
			if idx < 0 {
				if n, err := strconv.Atoi(value); err == nil {
					idx = n
				}
			}
		}
		if idx < 0 || idx >= len(q.Options) {
			return domain.Answer{}, domain.ErrInvalidAnswer
		}
		return domain.Answer{
			Value:       q.Options[idx],
			OptionIndex: &idx,
			IsCorrect:   idx == q.CorrectIndex,
		}, nil
	case domain.QuestionInteger:
		if sub.OptionIndex != nil {
			return domain.Answer{}, domain.ErrInvalidAnswer
		}
		v, err := strconv.Atoi(strings.TrimSpace(sub.Value))
		if err != nil {
			return domain.Answer{}, domain.ErrInvalidAnswer
		}
		return domain.Answer{
			Value:     strconv.Itoa(v),
			IsCorrect: v == q.CorrectValue,
		}, nil
	default:
		return domain.Answer{}, domain.ErrInvalidAnswer
	}
}
