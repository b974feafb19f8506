package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"trivia-duel/internal/config"
	"trivia-duel/internal/domain"
	"trivia-duel/internal/infra/postgres"
)

// NewSeedQuestionsCmd loads a YAML question bank into Postgres.
func NewSeedQuestionsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-questions <file.yaml>",
		Short: "Upsert questions from a YAML file into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return seedQuestions(cmd.Context(), cfg, args[0])
		},
	}
}

func seedQuestions(ctx context.Context, cfg config.Config, path string) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	questions, err := readQuestions(path)
	if err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.NewQuestionLoader(pool).SeedQuestions(ctx, questions); err != nil {
		return err
	}
	log.Printf("[seed] upserted %d questions from %s", len(questions), path)
	return nil
}

func readQuestions(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var questions []domain.Question
	if err := yaml.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, q := range questions {
		if err := postgres.ValidateQuestion(q); err != nil {
			return nil, err
		}
	}
	return questions, nil
}
