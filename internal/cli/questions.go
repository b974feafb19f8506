package cli

import "trivia-duel/internal/domain"

// sampleQuestions backs the in-memory question pool when no database is
// configured. Use seed-questions to load a real bank into Postgres.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "c-geo-1", Type: domain.QuestionChoice, Category: "geography", Text: "Which is the largest ocean on Earth?",
			Options: []string{"Atlantic", "Indian", "Pacific", "Arctic"}, CorrectIndex: 2},
		{ID: "c-sci-1", Type: domain.QuestionChoice, Category: "science", Text: "Which planet is known as the Red Planet?",
			Options: []string{"Venus", "Mars", "Jupiter", "Mercury"}, CorrectIndex: 1},
		{ID: "c-sci-2", Type: domain.QuestionChoice, Category: "science", Text: "What is the chemical symbol for gold?",
			Options: []string{"Ag", "Gd", "Au", "Go"}, CorrectIndex: 2},
		{ID: "c-art-1", Type: domain.QuestionChoice, Category: "art", Text: "Who painted the Mona Lisa?",
			Options: []string{"Michelangelo", "Raphael", "Leonardo da Vinci", "Donatello"}, CorrectIndex: 2},
		{ID: "c-hist-1", Type: domain.QuestionChoice, Category: "history", Text: "Which empire built Machu Picchu?",
			Options: []string{"Aztec", "Inca", "Maya", "Olmec"}, CorrectIndex: 1},
		{ID: "c-geo-2", Type: domain.QuestionChoice, Category: "geography", Text: "What is the capital of Australia?",
			Options: []string{"Sydney", "Melbourne", "Canberra", "Perth"}, CorrectIndex: 2},
		{ID: "i-hist-1", Type: domain.QuestionInteger, Category: "history", Text: "In which year did the Berlin Wall fall?", CorrectValue: 1989},
		{ID: "i-sci-1", Type: domain.QuestionInteger, Category: "science", Text: "How many bones are in the adult human body?", CorrectValue: 206},
		{ID: "i-geo-1", Type: domain.QuestionInteger, Category: "geography", Text: "How tall is Mount Everest in metres (rounded)?", CorrectValue: 8849},
		{ID: "i-hist-2", Type: domain.QuestionInteger, Category: "history", Text: "In which year did the first Moon landing happen?", CorrectValue: 1969},
		{ID: "i-sci-2", Type: domain.QuestionInteger, Category: "science", Text: "At how many degrees Celsius does water boil at sea level?", CorrectValue: 100},
	}
}
