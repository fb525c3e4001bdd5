// In file: internal/agentconfig/loader.go

// Package agentconfig loads the tunable behaviour of the agent (model, sampling,
// system prompt and enabled tools) from the agent_config table. Operators edit
// that row to retune the agent live, so it is read again on every turn.
package agentconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/tools"
)

// DefaultName is the agent_config row read when no name is configured.
const DefaultName = "default"

const (
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.7
	defaultMaxTokens   = 1024
)

const defaultSystemPrompt = `You are the assistant of Danang Expat Hub, a community app for foreigners living in Da Nang, Vietnam.
Help users find housing, places, second-hand items and events, and help them take part in the community.
Use the available tools to look things up instead of guessing. When a tool returns no results, say so and suggest a broader search.
Answer in the language the user writes in. Keep answers short and list concrete options with prices and locations when you have them.`

// Configuration is the behaviour of the agent for one turn.
type Configuration struct {
	Model        string   `json:"model"`
	Temperature  float32  `json:"temperature"`
	MaxTokens    int      `json:"maxTokens"`
	SystemPrompt string   `json:"systemPrompt"`
	EnabledTools []string `json:"enabledTools"`
}

// Default returns the built-in configuration. Every call returns an equal value
// backed by fresh slices, so callers may modify the result.
func Default() Configuration {
	return Configuration{
		Model:        defaultModel,
		Temperature:  defaultTemperature,
		MaxTokens:    defaultMaxTokens,
		SystemPrompt: defaultSystemPrompt,
		EnabledTools: tools.Names(),
	}
}

// Loader reads the configuration row. It holds no cache.
type Loader struct {
	db   *store.DB
	name string
}

func NewLoader(db *store.DB, name string) *Loader {
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	return &Loader{db: db, name: name}
}

// Load always returns a usable configuration. Any failure to read the row is
// logged and answered with Default.
func (l *Loader) Load(ctx context.Context) Configuration {
	cfg, err := l.read(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("WARNING: agent config %q is not configured, using defaults.", l.name)
		} else {
			log.Printf("WARNING: failed to load agent config %q, using defaults: %v", l.name, err)
		}
		return Default()
	}
	return cfg
}

func (l *Loader) read(ctx context.Context) (Configuration, error) {
	if l.db == nil {
		return Configuration{}, errors.New("no store configured")
	}
	rows, err := l.db.Select(ctx, store.Query{
		Table:   store.TableAgentConfig,
		Filters: []store.Filter{store.Eq("name", l.name)},
		Limit:   1,
	})
	if err != nil {
		return Configuration{}, err
	}
	if len(rows) == 0 {
		return Configuration{}, fmt.Errorf("agent config %s: %w", l.name, store.ErrNotFound)
	}
	return fromRow(rows[0])
}

// fromRow completes a partially filled row from Default.
func fromRow(r store.Row) (Configuration, error) {
	cfg := Default()

	if s, _ := r["model"].(string); strings.TrimSpace(s) != "" {
		cfg.Model = strings.TrimSpace(s)
	}
	switch v := r["temperature"].(type) {
	case float64:
		cfg.Temperature = float32(v)
	case int64:
		cfg.Temperature = float32(v)
	}
	if n, ok := r["max_tokens"].(int64); ok && n > 0 {
		cfg.MaxTokens = int(n)
	}
	if s, _ := r["system_prompt"].(string); strings.TrimSpace(s) != "" {
		cfg.SystemPrompt = s
	}

	// A NULL column enables every tool; a present list, even an empty one, is
	// the exact enabled set.
	if raw, ok := r["enabled_tools"].(string); ok && strings.TrimSpace(raw) != "" {
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return Configuration{}, fmt.Errorf("enabled_tools is not a JSON list of names: %w", err)
		}
		if names != nil {
			cfg.EnabledTools = names
		}
	}
	return cfg, nil
}

// Save writes cfg as the loader's row, replacing any previous value. A nil
// EnabledTools is stored as NULL and loads as every tool.
func (l *Loader) Save(ctx context.Context, cfg Configuration) error {
	if l.db == nil {
		return errors.New("no store configured")
	}
	var toolsJSON any
	if cfg.EnabledTools != nil {
		b, err := json.Marshal(cfg.EnabledTools)
		if err != nil {
			return err
		}
		toolsJSON = string(b)
	}

	const stmt = `INSERT INTO agent_config (name, model, temperature, max_tokens, system_prompt, enabled_tools, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (name) DO UPDATE SET
	model = excluded.model,
	temperature = excluded.temperature,
	max_tokens = excluded.max_tokens,
	system_prompt = excluded.system_prompt,
	enabled_tools = excluded.enabled_tools,
	updated_at = excluded.updated_at`

	_, err := l.db.SQL().ExecContext(ctx, l.db.Rebind(stmt),
		l.name, cfg.Model, float64(cfg.Temperature), cfg.MaxTokens, cfg.SystemPrompt, toolsJSON, l.db.Now())
	if err != nil {
		return fmt.Errorf("save agent config %s: %w", l.name, err)
	}
	return nil
}
