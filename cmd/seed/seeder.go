// In file: cmd/seed/seeder.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/agentconfig"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
)

// agentConfigFile is the fixture holding the agent configuration row.
const agentConfigFile = "agent_config"

// seedableTables are the domain tables a fixture file may target. Conversations
// are written by the agent only.
var seedableTables = map[string]bool{
	store.TableUsers:          true,
	store.TableListings:       true,
	store.TablePlaces:         true,
	store.TableMarketItems:    true,
	store.TableEvents:         true,
	store.TableEventRSVPs:     true,
	store.TableCommunityPosts: true,
	store.TableFavorites:      true,
}

// agentConfigFixture mirrors agentconfig.Configuration with snake_case keys.
// Absent keys keep the built-in default.
type agentConfigFixture struct {
	Model        string   `yaml:"model"`
	Temperature  *float32 `yaml:"temperature"`
	MaxTokens    int      `yaml:"max_tokens"`
	SystemPrompt string   `yaml:"system_prompt"`
	EnabledTools []string `yaml:"enabled_tools"`
}

type Seeder struct {
	db     *store.DB
	dir    string
	config *agentconfig.Loader
}

func NewSeeder(db *store.DB, dir string, config *agentconfig.Loader) *Seeder {
	return &Seeder{db: db, dir: dir, config: config}
}

// Run loads every fixture file of the data directory. Files are processed
// concurrently; a failing file does not stop the others.
func (s *Seeder) Run(ctx context.Context) error {
	log.Printf("🚀 Seeding the store from %s...", s.dir)
	files, err := s.discoverFixtures()
	if err != nil {
		return fmt.Errorf("failed to discover fixtures: %w", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for name, path := range files {
		wg.Add(1)
		go func(name, path string) {
			defer wg.Done()
			var err error
			if name == agentConfigFile {
				err = s.seedAgentConfig(ctx, path)
			} else {
				err = s.seedTable(ctx, name, path)
			}
			if err != nil {
				log.Printf("❌ Error seeding %s: %v", name, err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
		}(name, path)
	}
	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	log.Println("✅ Seeding complete.")
	return nil
}

// discoverFixtures maps a target (table name or agent_config) to its file.
// Unknown file names are skipped with a warning.
func (s *Seeder) discoverFixtures() (map[string]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	files := make(map[string]string)
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if name != agentConfigFile && !seedableTables[name] {
			log.Printf("WARNING: skipping %s, no seedable table named %q", entry.Name(), name)
			continue
		}
		files[name] = filepath.Join(s.dir, entry.Name())
	}
	return files, nil
}

func (s *Seeder) seedTable(ctx context.Context, table, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var rows []map[string]any
	if err := yaml.Unmarshal(raw, &rows); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for i, r := range rows {
		row := normalizeRow(r)
		if _, ok := row["id"]; ok {
			_, err = s.db.Upsert(ctx, table, row, "id")
		} else {
			_, err = s.db.Insert(ctx, table, row)
		}
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	log.Printf("📚 Seeded %d rows into %s.", len(rows), table)
	return nil
}

func (s *Seeder) seedAgentConfig(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fx agentConfigFixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg := agentconfig.Default()
	if fx.Model != "" {
		cfg.Model = fx.Model
	}
	if fx.Temperature != nil {
		cfg.Temperature = *fx.Temperature
	}
	if fx.MaxTokens > 0 {
		cfg.MaxTokens = fx.MaxTokens
	}
	if strings.TrimSpace(fx.SystemPrompt) != "" {
		cfg.SystemPrompt = strings.TrimSpace(fx.SystemPrompt)
	}
	if fx.EnabledTools != nil {
		cfg.EnabledTools = fx.EnabledTools
	}
	if err := s.config.Save(ctx, cfg); err != nil {
		return err
	}
	log.Printf("📚 Seeded agent configuration (model %s, %d tools).", cfg.Model, len(cfg.EnabledTools))
	return nil
}

// normalizeRow converts YAML scalars into values the store accepts. Timestamps
// use the store's fixed-width layout.
func normalizeRow(in map[string]any) store.Row {
	out := make(store.Row, len(in))
	for k, v := range in {
		switch v := v.(type) {
		case time.Time:
			out[k] = store.Timestamp(v)
		case int:
			out[k] = int64(v)
		default:
			out[k] = v
		}
	}
	return out
}
