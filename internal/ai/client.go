package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Asker answers a single prompt. Implementations make exactly one provider
// call per invocation and never retry.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// AuthMode says where the API key travels.
type AuthMode string

const (
	AuthQuery  AuthMode = "query"  // ?key=<key>
	AuthBearer AuthMode = "bearer" // Authorization: Bearer <key>
	AuthHeader AuthMode = "header" // <Param>: <key>
)

// BodyBuilder renders the provider request body for a prompt.
type BodyBuilder func(model, prompt string) any

// GeminiBody builds a generateContent request.
func GeminiBody(_ string, prompt string) any {
	return map[string]any{
		"contents": []map[string]any{{
			"parts": []map[string]any{{"text": prompt}},
		}},
	}
}

// OpenAIBody builds a chat completion request.
func OpenAIBody(model, prompt string) any {
	return map[string]any{
		"model": model,
		"messages": []map[string]any{{
			"role":    "user",
			"content": prompt,
		}},
	}
}

type ClientConfig struct {
	Endpoint  string
	APIKey    string
	AuthMode  AuthMode
	AuthParam string
	Model     string
	Body      BodyBuilder
	Extract   Extractor
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Client talks to a JSON-over-HTTP completion endpoint.
type Client struct {
	endpoint  string
	apiKey    string
	authMode  AuthMode
	authParam string
	model     string
	body      BodyBuilder
	extract   Extractor
	http      *http.Client
	logger    *zap.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Body == nil {
		cfg.Body = GeminiBody
	}
	if cfg.Extract == nil {
		cfg.Extract = RawJSON
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = AuthQuery
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		authMode:  cfg.AuthMode,
		authParam: cfg.AuthParam,
		model:     cfg.Model,
		body:      cfg.Body,
		extract:   cfg.Extract,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    cfg.Logger,
	}
}

func (c *Client) Ask(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(c.body(c.model, prompt))
	if err != nil {
		return "", fmt.Errorf("marshaling prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", providerError(err, "ai: building request", "")
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", providerError(err, "ai: request failed", "")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", providerError(err, "ai: reading response", resp.Status)
	}

	c.logger.Debug("ai: provider call",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", providerError(nil, "ai: provider error: "+resp.Status, resp.Status)
	}
	if !json.Valid(body) {
		return "", providerError(nil, "ai: provider returned invalid JSON", resp.Status)
	}

	return c.extract(body), nil
}

func (c *Client) authorize(req *http.Request) {
	switch c.authMode {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	case AuthHeader:
		name := c.authParam
		if name == "" {
			name = "x-goog-api-key"
		}
		req.Header.Set(name, c.apiKey)
	default:
		name := c.authParam
		if name == "" {
			name = "key"
		}
		q := req.URL.Query()
		q.Set(name, c.apiKey)
		req.URL.RawQuery = q.Encode()
	}
}
