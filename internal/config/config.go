package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Config is the top-level configuration structure.
type Config struct {
	Server       ServerConfig       `json:"server"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Events       EventsConfig       `json:"events"`
	Notify       NotifyConfig       `json:"notify"`
	Workflows    []WorkflowConfig   `json:"workflows"`
}

type ServerConfig struct {
	Port           int      `json:"port"`
	LogLevel       string   `json:"log_level"`
	Env            string   `json:"env"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type OrchestratorConfig struct {
	MaxConcurrent int `json:"max_concurrent"`
	BackoffBaseMS int `json:"backoff_base_ms"`
}

type EventsConfig struct {
	RedisURL string `json:"redis_url"`
	Stream   string `json:"stream"`
}

type NotifyConfig struct {
	Slack   SlackNotifyConfig   `json:"slack"`
	Discord DiscordNotifyConfig `json:"discord"`
}

type SlackNotifyConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
}

type DiscordNotifyConfig struct {
	Enabled   bool   `json:"enabled"`
	BotToken  string `json:"bot_token"`
	ChannelID string `json:"channel_id"`
}

// WorkflowConfig declares a workflow registered at boot.
type WorkflowConfig struct {
	Name              string       `json:"name"`
	EscalationHandler string       `json:"escalation_handler,omitempty"`
	Steps             []StepConfig `json:"steps"`
}

type StepConfig struct {
	Name              string         `json:"name"`
	Agent             string         `json:"agent"`
	Retries           int            `json:"retries"`
	EscalateOnFailure bool           `json:"escalate_on_failure"`
	Config            map[string]any `json:"config,omitempty"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable
// references, then applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// FromEnv builds a configuration from environment variables alone, used
// when no config file is present.
func FromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:     envInt("PORT", 0),
			LogLevel: os.Getenv("LOG_LEVEL"),
			Env:      os.Getenv("APP_ENV"),
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrent: envInt("MAX_CONCURRENT", 0),
		},
		Events: EventsConfig{
			RedisURL: os.Getenv("REDIS_URL"),
		},
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, trimmed)
			}
		}
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	// Env substitution can leave several origins comma-joined in one
	// element; flatten before defaulting.
	var origins []string
	for _, o := range c.Server.AllowedOrigins {
		for _, part := range strings.Split(o, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	c.Server.AllowedOrigins = origins
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}
	if c.Orchestrator.MaxConcurrent == 0 {
		c.Orchestrator.MaxConcurrent = 10
	}
	if c.Orchestrator.BackoffBaseMS == 0 {
		c.Orchestrator.BackoffBaseMS = 100
	}
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
