package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:8081/api" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.TimeoutSeconds != 30 {
		t.Errorf("TimeoutSeconds = %d", cfg.API.TimeoutSeconds)
	}
	if cfg.Chat.Locale != "ko" {
		t.Errorf("Locale = %q", cfg.Chat.Locale)
	}
	if cfg.Chat.MaxPromptTokens != 2048 {
		t.Errorf("MaxPromptTokens = %d", cfg.Chat.MaxPromptTokens)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRADECHAT_API_BASE_URL", "https://chat.example.com/api")
	t.Setenv("TRADECHAT_CHAT_LOCALE", "en")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "https://chat.example.com/api" {
		t.Errorf("BaseURL = %q, env override lost", cfg.API.BaseURL)
	}
	if cfg.Chat.Locale != "en" {
		t.Errorf("Locale = %q, env override lost", cfg.Chat.Locale)
	}
}

func TestLoad_FileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "api:\n  base_url: https://file.example.com/api\n  timeout_seconds: 10\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TRADECHAT_API_BASE_URL", "https://env.example.com/api")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.BaseURL != "https://env.example.com/api" {
		t.Errorf("BaseURL = %q, want env to beat file", cfg.API.BaseURL)
	}
	if cfg.API.TimeoutSeconds != 10 {
		t.Errorf("TimeoutSeconds = %d, want file value", cfg.API.TimeoutSeconds)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q, want file value", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Load() error = nil, want missing file to surface")
	}
}
