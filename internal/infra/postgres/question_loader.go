package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-duel/internal/domain"
)

// QuestionLoader loads the question bank stored as JSONB in Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, qtype domain.QuestionType) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM questions WHERE type=$1 ORDER BY id`, string(qtype))
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(out) == 0 {
		return nil, domain.ErrNoQuestions
	}
	return out, nil
}

// SeedQuestions upserts questions in a single transaction.
func (l *QuestionLoader) SeedQuestions(ctx context.Context, questions []domain.Question) error {
	for _, q := range questions {
		if err := ValidateQuestion(q); err != nil {
			return err
		}
	}
	return l.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		for _, q := range questions {
			raw, err := json.Marshal(q)
			if err != nil {
				return fmt.Errorf("marshal question %s: %w", q.ID, err)
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO questions (id, type, data) VALUES ($1, $2, $3)
				 ON CONFLICT (id) DO UPDATE SET type = EXCLUDED.type, data = EXCLUDED.data`,
				q.ID, string(q.Type), raw)
			if err != nil {
				return fmt.Errorf("upsert question %s: %w", q.ID, err)
			}
		}
		return nil
	})
}

// ValidateQuestion rejects questions the game could not evaluate.
func ValidateQuestion(q domain.Question) error {
	if q.ID == "" || q.Text == "" {
		return fmt.Errorf("question %q: id and text are required", q.ID)
	}
	switch q.Type {
	case domain.QuestionChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("question %s: needs at least two options", q.ID)
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
			return fmt.Errorf("question %s: correct index %d out of range", q.ID, q.CorrectIndex)
		}
	case domain.QuestionInteger:
		if len(q.Options) != 0 {
			return fmt.Errorf("question %s: integer questions take no options", q.ID)
		}
	default:
		return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
	}
	return nil
}
