package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("LINE_CHANNEL_SECRET", "secret")
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "access")
	t.Setenv("AI_API_KEY", "key")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "3000" {
		t.Errorf("expected port 3000, got %s", cfg.Port)
	}
	if cfg.AI.Provider != "gemini" {
		t.Errorf("expected gemini provider, got %s", cfg.AI.Provider)
	}
	if cfg.AI.Model != "gemini-2.0-flash" {
		t.Errorf("expected default model, got %s", cfg.AI.Model)
	}
	if cfg.AI.AnswerMode != "text" {
		t.Errorf("expected text answer mode, got %s", cfg.AI.AnswerMode)
	}
	if cfg.AI.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.AI.Timeout)
	}
	if cfg.LineAPIBase != "https://api.line.me" {
		t.Errorf("unexpected line api base %s", cfg.LineAPIBase)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	setRequired(t)
	t.Setenv("LINE_CHANNEL_SECRET", "")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for missing secret")
	}
	if !strings.Contains(err.Error(), "LINE_CHANNEL_SECRET") {
		t.Errorf("error should name the variable, got %v", err)
	}
}

func TestLoad_UnknownProvider(t *testing.T) {
	setRequired(t)
	t.Setenv("AI_PROVIDER", "bard")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestLoad_InvalidTimeout(t *testing.T) {
	setRequired(t)
	t.Setenv("AI_TIMEOUT", "soon")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unparsable timeout")
	}
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "relay.toml")
	data := `
port = "8081"
logLevel = "debug"

[ai]
provider = "openai"
endpoint = "https://api.openai.com/v1/chat/completions"
model = "gpt-4o-mini"
answerMode = "raw"
timeout = "5s"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "9000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("env should override file port, got %s", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug from file, got %s", cfg.LogLevel)
	}
	if cfg.AI.Provider != "openai" || cfg.AI.Model != "gpt-4o-mini" || cfg.AI.AnswerMode != "raw" {
		t.Errorf("unexpected ai config %+v", cfg.AI)
	}
	if cfg.AI.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.AI.Timeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	setRequired(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
