package respond

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/wagw/wagw/internal/config"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI answers via the OpenAI chat completions API, or any endpoint that
// speaks it when a base URL is configured.
type OpenAI struct {
	name   string
	client *openai.Client
	model  string
}

// NewOpenAI creates the backend from config.
func NewOpenAI(name string, cfg config.Backend) *OpenAI {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{
		name:   name,
		client: openai.NewClientWithConfig(cc),
		model:  model,
	}
}

// NewOllama creates an OpenAI-compatible backend pointed at a local Ollama
// server. Ollama ignores the API key but the client requires one.
func NewOllama(name string, cfg config.Backend) *OpenAI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:11434/v1"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "ollama"
	}
	return NewOpenAI(name, cfg)
}

func (o *OpenAI) Name() string {
	return o.name
}

// Respond sends the inbound text as a single-turn chat completion.
func (o *OpenAI) Respond(ctx context.Context, req Request) (*Reply, error) {
	model := o.model
	if req.ModelHint != "" {
		model = req.ModelHint
	}

	var messages []openai.ChatCompletionMessage
	if req.Instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.Instructions,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Text,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		User:     req.Sender,
	})
	if err != nil {
		return nil, &BackendError{Backend: o.name, Err: err}
	}
	if len(resp.Choices) == 0 {
		return &Reply{}, nil
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	return &Reply{OK: text != "", Text: text}, nil
}
