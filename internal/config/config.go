package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServicesConfig holds the backend endpoints. BaseURL covers all three
// services when they are mounted on one server; the per-service URLs
// override it for split deployments.
type ServicesConfig struct {
	BaseURL           string `yaml:"base_url"`
	ProcessingURL     string `yaml:"processing_url,omitempty"`
	IndexingURL       string `yaml:"indexing_url,omitempty"`
	AgentURL          string `yaml:"agent_url,omitempty"`
	TimeoutSecs       int    `yaml:"timeout_secs"`
	UploadTimeoutSecs int    `yaml:"upload_timeout_secs"`
}

// LogConfig configures the rotating file log.
type LogConfig struct {
	File  string `yaml:"file"`
	Debug bool   `yaml:"debug"`
}

// ChatConfig tunes the chat and search views.
type ChatConfig struct {
	SearchLimit int `yaml:"search_limit"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Services     ServicesConfig `yaml:"services"`
	Log          LogConfig      `yaml:"log"`
	Chat         ChatConfig     `yaml:"chat"`
	IdentityPath string         `yaml:"identity_path,omitempty"`
}

// Processing returns the effective processing-service base URL.
func (c *AppConfig) Processing() string {
	if c.Services.ProcessingURL != "" {
		return c.Services.ProcessingURL
	}
	return c.Services.BaseURL
}

// Indexing returns the effective indexing-service base URL.
func (c *AppConfig) Indexing() string {
	if c.Services.IndexingURL != "" {
		return c.Services.IndexingURL
	}
	return c.Services.BaseURL
}

// Agent returns the effective assistant-endpoint base URL.
func (c *AppConfig) Agent() string {
	if c.Services.AgentURL != "" {
		return c.Services.AgentURL
	}
	return c.Services.BaseURL
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/bookchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/bookchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "bookchat", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Services: ServicesConfig{
			BaseURL:           "http://localhost:8000",
			TimeoutSecs:       30,
			UploadTimeoutSecs: 300,
		},
		Log:  LogConfig{File: defaultLogPath()},
		Chat: ChatConfig{SearchLimit: 10},
	}
	return cfg
}

func defaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "bookchat.log"
	}
	return filepath.Join(home, ".config", "bookchat", "bookchat.log")
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Services.BaseURL == "" {
		cfg.Services.BaseURL = "http://localhost:8000"
	}
	if cfg.Services.TimeoutSecs == 0 {
		cfg.Services.TimeoutSecs = 30
	}
	if cfg.Services.UploadTimeoutSecs == 0 {
		cfg.Services.UploadTimeoutSecs = 300
	}
	if cfg.Log.File == "" {
		cfg.Log.File = defaultLogPath()
	}
	if cfg.Chat.SearchLimit == 0 {
		cfg.Chat.SearchLimit = 10
	}
}
