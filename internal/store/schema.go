// In file: internal/store/schema.go
package store

import (
	"context"
	"fmt"
	"strings"
)

// Tables known to the store. Queries against any other table are rejected.
const (
	TableUsers          = "users"
	TableListings       = "listings"
	TablePlaces         = "places"
	TableMarketItems    = "market_items"
	TableEvents         = "events"
	TableEventRSVPs     = "event_rsvps"
	TableCommunityPosts = "community_posts"
	TableFavorites      = "favorites"
	TableConversations  = "conversations"
	TableMessages       = "conversation_messages"
	TableAgentConfig    = "agent_config"
)

var knownTables = map[string]bool{
	TableUsers: true, TableListings: true, TablePlaces: true, TableMarketItems: true,
	TableEvents: true, TableEventRSVPs: true, TableCommunityPosts: true, TableFavorites: true,
	TableConversations: true, TableMessages: true, TableAgentConfig: true,
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	telegram_id BIGINT UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS listings (
	id TEXT PRIMARY KEY,
	owner_id TEXT,
	category TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price REAL,
	currency TEXT NOT NULL DEFAULT 'USD',
	district TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	bedrooms INTEGER,
	contact TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category);

CREATE TABLE IF NOT EXISTS places (
	id TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	district TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	price_level INTEGER,
	rating REAL,
	contact TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS market_items (
	id TEXT PRIMARY KEY,
	seller_id TEXT,
	category TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price REAL,
	condition TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	contact TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	organizer_id TEXT,
	category TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	starts_at TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	price REAL,
	contact TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_starts_at ON events(starts_at);

CREATE TABLE IF NOT EXISTS event_rsvps (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'going',
	created_at TEXT NOT NULL,
	UNIQUE (event_id, user_id)
);

CREATE TABLE IF NOT EXISTS community_posts (
	id TEXT PRIMARY KEY,
	author_id TEXT NOT NULL,
	topic TEXT NOT NULL DEFAULT 'general',
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_community_posts_created_at ON community_posts(created_at);

CREATE TABLE IF NOT EXISTS favorites (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	item_type TEXT NOT NULL,
	item_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE (user_id, item_type, item_id)
);

CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	owner_id TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_owner ON conversations(owner_id, updated_at);

CREATE TABLE IF NOT EXISTS conversation_messages (
	seq %s,
	id TEXT NOT NULL UNIQUE,
	conversation_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT,
	tool_calls TEXT,
	tool_call_id TEXT,
	name TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversation_messages_conv ON conversation_messages(conversation_id, seq);

CREATE TABLE IF NOT EXISTS agent_config (
	name TEXT PRIMARY KEY,
	model TEXT NOT NULL DEFAULT '',
	temperature REAL NOT NULL DEFAULT 0.7,
	max_tokens INTEGER NOT NULL DEFAULT 0,
	system_prompt TEXT NOT NULL DEFAULT '',
	enabled_tools TEXT,
	updated_at TEXT NOT NULL
);
`

// Migrate creates every table the agent uses if it does not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	seq := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.dialect == DialectPostgres {
		seq = "BIGSERIAL PRIMARY KEY"
	}
	ddl := fmt.Sprintf(schemaSQL, seq)

	// lib/pq accepts multi-statement Exec but go-sqlite3 only runs them with
	// no args; split anyway so an error names the failing statement.
	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
