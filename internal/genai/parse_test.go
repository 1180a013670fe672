package genai

import (
	"errors"
	"testing"

	"mcqlab/internal/domain"
)

const sampleArray = `[{"question":"What is 2+2?","options":["3","4","5","6"],"correct_answer":"4"}]`

func TestParseMCQsPlainJSON(t *testing.T) {
	questions, err := ParseMCQs(sampleArray)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(questions) != 1 || questions[0].Question != "What is 2+2?" {
		t.Fatalf("unexpected questions: %+v", questions)
	}
}

func TestParseMCQsStripsCodeFences(t *testing.T) {
	raw := "```json\n" + sampleArray + "\n```"
	questions, err := ParseMCQs(raw)
	if err != nil {
		t.Fatalf("parse fenced: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
}

func TestParseMCQsExtractsArrayFromProse(t *testing.T) {
	raw := "Here are your questions:\n" + sampleArray + "\nLet me know if you need more."
	questions, err := ParseMCQs(raw)
	if err != nil {
		t.Fatalf("parse prose-wrapped: %v", err)
	}
	if questions[0].CorrectAnswer != "4" {
		t.Fatalf("unexpected answer: %q", questions[0].CorrectAnswer)
	}
}

func TestParseMCQsRejectsGarbage(t *testing.T) {
	if _, err := ParseMCQs("I could not generate questions."); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCorrectIndexMatchesCaseInsensitively(t *testing.T) {
	q := domain.GeneratedMCQ{
		Options:       []string{"Paris", "London", "Rome", "Berlin"},
		CorrectAnswer: " paris ",
	}
	idx, err := CorrectIndex(q)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected 1-based index 1, got %d", idx)
	}
}

func TestCorrectIndexRejectsMissingAnswer(t *testing.T) {
	q := domain.GeneratedMCQ{
		Options:       []string{"a", "b", "c", "d"},
		CorrectAnswer: "e",
	}
	if _, err := CorrectIndex(q); !errors.Is(err, domain.ErrAnswerMismatch) {
		t.Fatalf("expected ErrAnswerMismatch, got %v", err)
	}
}
