package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"tooldispatch/internal/domain"
)

type geminiProvider struct {
	client *genai.Client
	model  string
}

func newGeminiProvider(ctx context.Context, cfg domain.OracleConfig, apiKey string) (*geminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &geminiProvider{client: client, model: cfg.Model}, nil
}

func (p *geminiProvider) generate(ctx context.Context, messages []domain.Message, temperature float64) (reply, error) {
	system, turns := splitSystem(messages)
	m := p.client.GenerativeModel(p.model)
	m.SetTemperature(float32(temperature))
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	parts := make([]genai.Part, 0, len(turns))
	for _, turn := range turns {
		parts = append(parts, genai.Text(turn.Content))
	}
	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return reply{}, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return reply{}, errors.New("gemini: empty response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	out := reply{Text: b.String()}
	if resp.UsageMetadata != nil {
		out.Tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}
