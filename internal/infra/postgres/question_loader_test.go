package postgres

import (
	"testing"

	"trivia-duel/internal/domain"
)

func TestValidateQuestion(t *testing.T) {
	cases := []struct {
		name string
		q    domain.Question
		ok   bool
	}{
		{"choice", domain.Question{ID: "c1", Type: domain.QuestionChoice, Text: "?", Options: []string{"a", "b"}, CorrectIndex: 1}, true},
		{"integer", domain.Question{ID: "i1", Type: domain.QuestionInteger, Text: "?", CorrectValue: 42}, true},
		{"missing id", domain.Question{Type: domain.QuestionInteger, Text: "?"}, false},
		{"one option", domain.Question{ID: "c2", Type: domain.QuestionChoice, Text: "?", Options: []string{"a"}}, false},
		{"index out of range", domain.Question{ID: "c3", Type: domain.QuestionChoice, Text: "?", Options: []string{"a", "b"}, CorrectIndex: 2}, false},
		{"integer with options", domain.Question{ID: "i2", Type: domain.QuestionInteger, Text: "?", Options: []string{"1"}}, false},
		{"unknown type", domain.Question{ID: "x", Type: "essay", Text: "?"}, false},
	}
	for _, tc := range cases {
		err := ValidateQuestion(tc.q)
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
