package genai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"mcqlab/internal/domain"
)

var (
	codeFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	arrayRe     = regexp.MustCompile(`(?s)\[.*\]`)
)

// CleanResponse strips code-fence markers and surrounding prose so the payload
// can be JSON-parsed. Models wrap structured output in fences and commentary
// often enough that this runs on every response.
func CleanResponse(raw string) string {
	if m := codeFenceRe.FindStringSubmatch(raw); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// ParseMCQs turns a raw model response into generated questions. If the
// cleaned payload is not valid JSON, a bracketed-array extraction is attempted
// before giving up.
func ParseMCQs(raw string) ([]domain.GeneratedMCQ, error) {
	cleaned := CleanResponse(raw)

	var questions []domain.GeneratedMCQ
	if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
		extracted := arrayRe.FindString(cleaned)
		if extracted == "" {
			return nil, fmt.Errorf("no JSON array in response: %w", err)
		}
		if err := json.Unmarshal([]byte(extracted), &questions); err != nil {
			return nil, fmt.Errorf("parse extracted array: %w", err)
		}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("response contained no questions")
	}
	return questions, nil
}

// CorrectIndex finds the 1-based index of the correct answer among the
// options. A correct answer that matches no option is an error rather than a
// silently-wrong index.
func CorrectIndex(q domain.GeneratedMCQ) (int, error) {
	want := strings.TrimSpace(q.CorrectAnswer)
	for i, opt := range q.Options {
		if strings.EqualFold(strings.TrimSpace(opt), want) {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", domain.ErrAnswerMismatch, q.CorrectAnswer)
}
