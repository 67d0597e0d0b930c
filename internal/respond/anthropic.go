package respond

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/wagw/wagw/internal/config"
)

const (
	defaultAnthropicModel = "claude-3-5-haiku-latest"
	anthropicMaxTokens    = 1024
)

// Anthropic answers via the Anthropic messages API.
type Anthropic struct {
	name   string
	client anthropic.Client
	model  string
}

// NewAnthropic creates the backend from config.
func NewAnthropic(name string, cfg config.Backend) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	return &Anthropic{
		name:   name,
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (a *Anthropic) Name() string {
	return a.name
}

// Respond sends the inbound text as a single-turn message.
func (a *Anthropic) Respond(ctx context.Context, req Request) (*Reply, error) {
	model := a.model
	if req.ModelHint != "" {
		model = req.ModelHint
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Text)),
		},
	}
	if req.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.Instructions}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &BackendError{Backend: a.name, Err: err}
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	return &Reply{OK: text != "", Text: text}, nil
}
