package ai

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lojasmm/relay/internal/config"
)

const (
	geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent"
	openAIEndpoint = "https://api.openai.com/v1/chat/completions"
	openAIModel    = "gpt-4o-mini"
)

// New builds the Asker selected by cfg.Provider. Provider identity stops
// here; callers only see Asker.
func New(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (Asker, error) {
	raw := cfg.AnswerMode == "raw"

	switch cfg.Provider {
	case "gemini", "":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = geminiEndpoint
		}
		extract := GeminiText
		if raw {
			extract = RawJSON
		}
		return NewClient(ClientConfig{
			Endpoint:  strings.ReplaceAll(endpoint, "{model}", cfg.Model),
			APIKey:    cfg.APIKey,
			AuthMode:  authMode(cfg.AuthMode, AuthQuery),
			AuthParam: cfg.AuthParam,
			Model:     cfg.Model,
			Body:      GeminiBody,
			Extract:   extract,
			Timeout:   cfg.Timeout,
			Logger:    logger,
		}), nil

	case "openai":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = openAIEndpoint
		}
		model := cfg.Model
		if model == "" {
			model = openAIModel
		}
		extract := OpenAIText
		if raw {
			extract = RawJSON
		}
		return NewClient(ClientConfig{
			Endpoint:  endpoint,
			APIKey:    cfg.APIKey,
			AuthMode:  authMode(cfg.AuthMode, AuthBearer),
			AuthParam: cfg.AuthParam,
			Model:     model,
			Body:      OpenAIBody,
			Extract:   extract,
			Timeout:   cfg.Timeout,
			Logger:    logger,
		}), nil

	case "genai":
		g, err := NewGenAIClient(ctx, GenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.Endpoint,
			Model:   cfg.Model,
			Raw:     raw,
			Timeout: cfg.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
}

func authMode(v string, fallback AuthMode) AuthMode {
	switch AuthMode(v) {
	case AuthQuery, AuthBearer, AuthHeader:
		return AuthMode(v)
	}
	return fallback
}
