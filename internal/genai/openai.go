package genai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"mcqlab/internal/config"
)

// OpenAIProvider adapts any chat-completions compatible endpoint. Groq exposes
// the same wire format, so the second provider in the chain is this adapter
// pointed at a different base URL.
type OpenAIProvider struct {
	name   string
	client *openai.Client
	model  string
	budget int
}

func NewOpenAIProvider(name string, cfg config.ProviderConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{
		name:   name,
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		budget: cfg.TokenBudget,
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) TokenBudget() int { return p.budget }

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from %s", p.name)
	}
	return resp.Choices[0].Message.Content, nil
}
