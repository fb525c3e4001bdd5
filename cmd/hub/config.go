// In file: cmd/hub/config.go
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/agent"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/agentconfig"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/tools"
)

// AppConfig holds all configuration for the hub, loaded from the environment and
// an optional YAML file of tunables.
type AppConfig struct {
	Port            string
	DatabaseDriver  store.Dialect
	DatabaseURL     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GeminiAPIKey    string
	RedisAddr       string
	AgentConfigName string

	Tunables Tunables
}

// Tunables are the knobs that rarely change between deployments.
type Tunables struct {
	ProviderTimeout    time.Duration `yaml:"provider_timeout"`
	ToolTimeout        time.Duration `yaml:"tool_timeout"`
	WriteTimeout       time.Duration `yaml:"transcript_write_timeout"`
	DrainTimeout       time.Duration `yaml:"transcript_drain_timeout"`
	OpenAIDefaultModel string        `yaml:"openai_default_model"`
	GeminiDefaultModel string        `yaml:"gemini_default_model"`
	RateLimit          RateLimit     `yaml:"rate_limit"`
}

// RateLimit bounds chat requests per client IP. A zero rate disables it.
type RateLimit struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

func defaultTunables() Tunables {
	return Tunables{
		ProviderTimeout:    agent.DefaultProviderTimeout,
		ToolTimeout:        tools.DefaultTimeout,
		WriteTimeout:       agent.DefaultWriteTimeout,
		DrainTimeout:       agent.DefaultDrainTimeout,
		OpenAIDefaultModel: "gpt-4o-mini",
		GeminiDefaultModel: "gemini-1.5-flash",
		RateLimit:          RateLimit{RequestsPerMinute: 30, Burst: 10},
	}
}

// LoadConfig loads configuration from a .env file, environment variables and the
// tunables file named by HUB_CONFIG.
func LoadConfig() (*AppConfig, error) {
	// In Docker (GIN_MODE=release) the environment is provided directly.
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("WARNING: No .env file found for local development.")
		}
	}

	cfg := &AppConfig{
		Port:            envOr("PORT", "8080"),
		DatabaseDriver:  store.Dialect(strings.ToLower(envOr("DATABASE_DRIVER", string(store.DialectSQLite)))),
		DatabaseURL:     envOr("DATABASE_URL", "hub.db"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		AgentConfigName: envOr("AGENT_CONFIG_NAME", agentconfig.DefaultName),
	}

	tunables, err := loadTunables(envOr("HUB_CONFIG", "config.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Tunables = tunables

	if cfg.OpenAIAPIKey == "" && cfg.GeminiAPIKey == "" {
		log.Println("WARNING: Neither OPENAI_API_KEY nor GEMINI_API_KEY is set, chat replies will be degraded.")
	}
	return cfg, nil
}

// loadTunables reads the YAML file at path over the defaults. A missing file is
// not an error.
func loadTunables(path string) (Tunables, error) {
	t := defaultTunables()
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARNING: No tunables file at %s, using defaults.", path)
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Non-positive values fall back to the defaults rather than disabling limits.
	def := defaultTunables()
	if t.ProviderTimeout <= 0 {
		t.ProviderTimeout = def.ProviderTimeout
	}
	if t.ToolTimeout <= 0 {
		t.ToolTimeout = def.ToolTimeout
	}
	if t.WriteTimeout <= 0 {
		t.WriteTimeout = def.WriteTimeout
	}
	if t.DrainTimeout <= 0 {
		t.DrainTimeout = def.DrainTimeout
	}
	if t.OpenAIDefaultModel == "" {
		t.OpenAIDefaultModel = def.OpenAIDefaultModel
	}
	if t.GeminiDefaultModel == "" {
		t.GeminiDefaultModel = def.GeminiDefaultModel
	}
	return t, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
