package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	ollama "github.com/ollama/ollama/api"

	"tooldispatch/internal/domain"
)

const defaultOllamaHost = "http://localhost:11434"

type ollamaProvider struct {
	client *ollama.Client
	model  string
}

func newOllamaProvider(cfg domain.OracleConfig) (*ollamaProvider, error) {
	host := cfg.BaseURL
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultOllamaHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	httpClient := &http.Client{Timeout: cfg.Timeout()}
	return &ollamaProvider{client: ollama.NewClient(u, httpClient), model: cfg.Model}, nil
}

func (p *ollamaProvider) generate(ctx context.Context, messages []domain.Message, temperature float64) (reply, error) {
	system, turns := splitSystem(messages)
	prompts := make([]string, 0, len(turns))
	for _, turn := range turns {
		prompts = append(prompts, turn.Content)
	}

	stream := false
	req := &ollama.GenerateRequest{
		Model:   p.model,
		System:  system,
		Prompt:  strings.Join(prompts, "\n\n"),
		Stream:  &stream,
		Options: map[string]any{"temperature": temperature},
	}

	var (
		text   strings.Builder
		tokens int
	)
	if err := p.client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		if gr.Done {
			tokens = gr.PromptEvalCount + gr.EvalCount
		}
		return nil
	}); err != nil {
		return reply{}, err
	}
	return reply{Text: text.String(), Tokens: tokens}, nil
}
