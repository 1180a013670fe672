package genai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"unicode/utf8"
)

// Request is the uniform prompt shape every provider adapter accepts.
type Request struct {
	System string
	Prompt string
	// MaxTokens caps the completion length; zero lets the provider decide.
	MaxTokens int
}

// Provider generates a completion for a prompt. Adapters translate Request
// into the provider's own message format.
type Provider interface {
	Name() string
	// TokenBudget is the input budget; prompts are truncated to fit before
	// the call is made.
	TokenBudget() int
	Generate(ctx context.Context, req Request) (string, error)
}

// Chain tries providers in priority order and returns the first success.
type Chain struct {
	providers []Provider
}

func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Generate walks the chain with first-success semantics. Each provider sees
// the prompt truncated to its own token budget. On total failure every
// provider's error is joined so the caller can see the full picture.
func (c *Chain) Generate(ctx context.Context, req Request) (string, error) {
	if len(c.providers) == 0 {
		return "", errors.New("no providers configured")
	}

	var failures []error
	for _, p := range c.providers {
		attempt := req
		attempt.Prompt = TruncateToBudget(req.Prompt, p.TokenBudget())

		out, err := p.Generate(ctx, attempt)
		if err == nil {
			return out, nil
		}
		log.Printf("genai: provider %s failed: %v", p.Name(), err)
		failures = append(failures, fmt.Errorf("%s: %w", p.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("all providers failed: %w", errors.Join(failures...))
}

// TruncateToBudget bounds text to roughly budget tokens using the usual
// four-characters-per-token approximation.
func TruncateToBudget(text string, budget int) string {
	if budget <= 0 {
		return text
	}
	maxChars := budget * 4
	if len(text) <= maxChars {
		return text
	}
	// Back off to a rune boundary so the cut never splits a UTF-8 sequence.
	for maxChars > 0 && !utf8.RuneStart(text[maxChars]) {
		maxChars--
	}
	return text[:maxChars]
}
