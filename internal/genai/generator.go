package genai

import (
	"context"
	"fmt"
	"log"

	"mcqlab/internal/domain"
)

// QuestionCount is how many MCQs a generation call asks for.
const QuestionCount = 20

const mcqSystemPrompt = "You are an expert quiz question generator. " +
	"Generate high-quality multiple choice questions with exactly 4 options each. " +
	"Respond with a raw JSON array only, no commentary."

const tutorialSystemPrompt = "You are an expert tutor. " +
	"Write clear, well-structured study tutorials in markdown."

// Generator produces quizzes and tutorials from extracted content by walking
// the provider chain.
type Generator struct {
	chain *Chain
}

func NewGenerator(chain *Chain) *Generator {
	return &Generator{chain: chain}
}

// GenerateMCQs asks for exactly QuestionCount questions about the content and
// parses the structured response. Questions whose correct answer does not
// appear among the options are dropped; an empty result is an error.
func (g *Generator) GenerateMCQs(ctx context.Context, content string) ([]domain.GeneratedMCQ, error) {
	prompt := fmt.Sprintf(
		"Based on the following content, generate exactly %d multiple choice questions. "+
			"Return a JSON array where every element has the shape "+
			`{"question": "...", "options": ["...", "...", "...", "..."], "correct_answer": "..."} `+
			"and correct_answer is copied verbatim from options.\n\nContent:\n%s",
		QuestionCount, content)

	raw, err := g.chain.Generate(ctx, Request{System: mcqSystemPrompt, Prompt: prompt})
	if err != nil {
		return nil, err
	}

	questions, err := ParseMCQs(raw)
	if err != nil {
		return nil, err
	}

	valid := questions[:0]
	for _, q := range questions {
		if len(q.Options) != 4 {
			log.Printf("genai: dropping question with %d options", len(q.Options))
			continue
		}
		if _, err := CorrectIndex(q); err != nil {
			log.Printf("genai: dropping question: %v", err)
			continue
		}
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no usable questions in response")
	}
	if len(valid) != QuestionCount {
		log.Printf("genai: expected %d questions, keeping %d", QuestionCount, len(valid))
	}
	return valid, nil
}

// GenerateTutorial produces a 200-1000 word markdown study guide.
func (g *Generator) GenerateTutorial(ctx context.Context, content string) (string, error) {
	prompt := fmt.Sprintf(
		"Write a study tutorial of 200 to 1000 words in markdown covering the key "+
			"concepts of the following content. Use headings and bullet points where "+
			"they help.\n\nContent:\n%s", content)

	out, err := g.chain.Generate(ctx, Request{System: tutorialSystemPrompt, Prompt: prompt})
	if err != nil {
		return "", err
	}
	return CleanResponse(out), nil
}
