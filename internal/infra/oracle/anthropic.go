package oracle

import (
	"context"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"tooldispatch/internal/domain"
)

type anthropicProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func newAnthropicProvider(cfg domain.OracleConfig, apiKey string) *anthropicProvider {
	opts := []anthropicopt.RequestOption{anthropicopt.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = domain.DefaultOracleMaxTokens
	}
	return &anthropicProvider{client: &client, model: cfg.Model, maxTokens: maxTokens}
}

func (p *anthropicProvider) generate(ctx context.Context, messages []domain.Message, temperature float64) (reply, error) {
	system, turns := splitSystem(messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(p.maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages:    make([]anthropic.MessageParam, 0, len(turns)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == domain.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
			continue
		}
		params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return reply{}, err
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return reply{
		Text:   b.String(),
		Tokens: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}, nil
}
