// In file: cmd/seed/main.go

// Package main implements the offline seeding tool of the hub. It reads YAML
// fixture files from a data directory and loads them into the store: one file
// per table (listings.yaml, places.yaml, ...) plus agent_config.yaml for the
// agent's configuration row. Rows with an id are upserted, so seeding twice is
// harmless.
package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/agentconfig"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
)

const defaultSourceDataDir = "./data"

type Config struct {
	DatabaseDriver  store.Dialect
	DatabaseURL     string
	SourceDataDir   string
	AgentConfigName string
}

func loadConfig() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("WARNING: .env file not found. Relying on environment variables.")
	}
	return &Config{
		DatabaseDriver:  store.Dialect(strings.ToLower(getEnv("DATABASE_DRIVER", string(store.DialectSQLite)))),
		DatabaseURL:     getEnv("DATABASE_URL", "hub.db"),
		SourceDataDir:   getEnv("SOURCE_DATA_DIR", defaultSourceDataDir),
		AgentConfigName: getEnv("AGENT_CONFIG_NAME", agentconfig.DefaultName),
	}
}

// getEnv reads an env var or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cfg := loadConfig()

	ctx := context.Background()
	db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Could not open the %s database: %v", cfg.DatabaseDriver, err)
	}
	defer db.Close()

	seeder := NewSeeder(db, cfg.SourceDataDir, agentconfig.NewLoader(db, cfg.AgentConfigName))
	if err := seeder.Run(ctx); err != nil {
		db.Close()
		log.Fatalf("❌ Seeding failed: %v", err)
	}
}
