package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"trivia-duel/internal/config"
	"trivia-duel/internal/infra/postgres"
)

func TestGameOptionsFromConfig(t *testing.T) {
	var cfg config.Config
	cfg.Game.AnswerWindow = "20s"
	cfg.Game.WinThreshold = 3
	cfg.Retry.Attempts = 5

	opts := gameOptions(cfg)
	if opts.Timings.AnswerWindow != 20*time.Second {
		t.Fatalf("expected 20s answer window, got %s", opts.Timings.AnswerWindow)
	}
	if opts.Timings.ResultsDelay != 4*time.Second {
		t.Fatalf("expected default results delay, got %s", opts.Timings.ResultsDelay)
	}
	if opts.Timings.WinThreshold != 3 || opts.Retry.Attempts != 5 {
		t.Fatalf("unexpected options: %+v", opts)
	}
}

func TestSampleQuestionsAreValid(t *testing.T) {
	for _, q := range sampleQuestions() {
		if err := postgres.ValidateQuestion(q); err != nil {
			t.Fatalf("sample question invalid: %v", err)
		}
	}
}

func TestReadQuestionsParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	raw := `
- id: c1
  type: choice
  text: Red planet?
  options: [Earth, Mars]
  correct_index: 1
- id: i1
  type: integer
  text: End of WWII?
  correct_value: 1945
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	qs, err := readQuestions(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(qs) != 2 || qs[0].CorrectIndex != 1 || qs[1].CorrectValue != 1945 {
		t.Fatalf("unexpected questions: %+v", qs)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("- id: x\n  type: essay\n  text: hi\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := readQuestions(bad); err == nil {
		t.Fatalf("expected invalid question type to be rejected")
	}
}
