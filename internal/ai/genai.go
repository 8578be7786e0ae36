package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GenAIClient asks Gemini through the Google Gen AI SDK instead of raw HTTP.
type GenAIClient struct {
	client *genai.Client
	model  string
	raw    bool
	logger *zap.Logger
}

type GenAIConfig struct {
	APIKey  string
	BaseURL string // empty for the public endpoint
	Model   string
	Raw     bool
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewGenAIClient(ctx context.Context, cfg GenAIConfig) (*GenAIClient, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GenAIClient{client: client, model: cfg.Model, raw: cfg.Raw, logger: cfg.Logger}, nil
}

func (g *GenAIClient) Ask(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", providerError(err, "ai: genai generate content", "")
	}
	g.logger.Debug("ai: genai call", zap.String("model", g.model), zap.Duration("elapsed", time.Since(start)))

	if g.raw {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return "", providerError(err, "ai: encoding genai response", "")
		}
		return orPlaceholder(string(data)), nil
	}
	return orPlaceholder(sanitize(resp.Text())), nil
}
