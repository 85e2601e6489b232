package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the root configuration for stemchat.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	LLM       LLMConfig       `json:"llm"`
	Knowledge KnowledgeConfig `json:"knowledge"`
	Auth      AuthConfig      `json:"auth"`
}

type ServerConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	StaticDir string `json:"staticDir,omitempty"` // frontend files, served at /
	LogLevel  string `json:"logLevel"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

// LLMConfig points at an OpenAI-compatible backend (llama.cpp server, vLLM,
// OpenAI itself). APIKey may be left empty for local backends.
type LLMConfig struct {
	APIBase        string `json:"apiBase"`
	APIKey         string `json:"apiKey,omitempty"`
	Model          string `json:"model"`
	EmbeddingModel string `json:"embeddingModel"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

type KnowledgeConfig struct {
	ChunkSize int `json:"chunkSize"` // words per chunk
	Overlap   int `json:"overlap"`   // overlapping words between chunks
	TopK      int `json:"topK"`
}

type AuthConfig struct {
	JWTSecret     string `json:"jwtSecret,omitempty"`
	ExpireMinutes int    `json:"expireMinutes"`
}

// Load reads a config file and applies env-var overrides for secrets.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// Save writes cfg to path as indented JSON, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Secrets are never required to live in the config file; env vars win.
func (c *Config) applyEnv() {
	if v := os.Getenv("STEMCHAT_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("STEMCHAT_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
}

// DefaultConfigPath returns the conventional config location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "stemchat.json"
	}
	return filepath.Join(home, ".stemchat", "config.json")
}
