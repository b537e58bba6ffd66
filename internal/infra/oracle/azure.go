package oracle

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"tooldispatch/internal/domain"
)

// azureProvider talks to an Azure OpenAI deployment; Model names the deployment.
type azureProvider struct {
	client *openai.Client
	model  string
}

func newAzureProvider(cfg domain.OracleConfig, apiKey string) (*azureProvider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("azure provider requires oracle.baseURL")
	}
	clientCfg := openai.DefaultAzureConfig(apiKey, cfg.BaseURL)
	return &azureProvider{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model}, nil
}

func (p *azureProvider) generate(ctx context.Context, messages []domain.Message, temperature float64) (reply, error) {
	input := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case domain.RoleSystem:
			role = openai.ChatMessageRoleSystem
		case domain.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		input = append(input, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    input,
		Temperature: float32(temperature),
	})
	if err != nil {
		return reply{}, err
	}
	if len(resp.Choices) == 0 {
		return reply{}, errors.New("azure: empty response")
	}
	return reply{Text: resp.Choices[0].Message.Content, Tokens: resp.Usage.TotalTokens}, nil
}
