// Package config loads client configuration from an optional YAML file and
// TRADECHAT_-prefixed environment variables, env taking precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	API       APIConfig       `koanf:"api"`
	Chat      ChatConfig      `koanf:"chat"`
	Log       LogConfig       `koanf:"log"`
	Bookmarks BookmarksConfig `koanf:"bookmarks"`
}

type APIConfig struct {
	BaseURL        string `koanf:"base_url"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ChatConfig struct {
	Locale          string `koanf:"locale"`
	ClientInfo      string `koanf:"client_info"`
	MaxPromptTokens int    `koanf:"max_prompt_tokens"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type BookmarksConfig struct {
	Path string `koanf:"path"`
}

// Load reads configuration. path may be empty to skip the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Environment variables override the file. Only the first underscore
	// separates the section, so TRADECHAT_API_BASE_URL maps to api.base_url.
	if err := k.Load(env.Provider("TRADECHAT_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TRADECHAT_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	defaults := map[string]any{
		"api.base_url":           "http://localhost:8081/api",
		"api.timeout_seconds":    30,
		"chat.locale":            "ko",
		"chat.client_info":       "tradechat-go/1.0",
		"chat.max_prompt_tokens": 2048,
		"log.level":              "info",
		"bookmarks.path":         "./data/bookmarks.db",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
