package oracle

import (
	"context"
	"errors"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"tooldispatch/internal/domain"
)

type einoProvider struct {
	chat model.ToolCallingChatModel
}

func newEinoProvider(ctx context.Context, cfg domain.OracleConfig, apiKey string) (*einoProvider, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = domain.DefaultOracleModel
	}
	chatCfg := &openai.ChatModelConfig{
		Model:  modelName,
		APIKey: apiKey,
	}
	if cfg.BaseURL != "" {
		chatCfg.BaseURL = cfg.BaseURL
	}
	chat, err := openai.NewChatModel(ctx, chatCfg)
	if err != nil {
		return nil, err
	}
	return &einoProvider{chat: chat}, nil
}

func (p *einoProvider) generate(ctx context.Context, messages []domain.Message, temperature float64) (reply, error) {
	input := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			input = append(input, schema.SystemMessage(m.Content))
		case domain.RoleAssistant:
			input = append(input, schema.AssistantMessage(m.Content, nil))
		default:
			input = append(input, schema.UserMessage(m.Content))
		}
	}

	response, err := p.chat.Generate(ctx, input, model.WithTemperature(float32(temperature)))
	if err != nil {
		return reply{}, err
	}
	if response == nil {
		return reply{}, errors.New("empty response")
	}
	out := reply{Text: response.Content}
	if response.ResponseMeta != nil && response.ResponseMeta.Usage != nil {
		out.Tokens = response.ResponseMeta.Usage.TotalTokens
	}
	return out, nil
}
