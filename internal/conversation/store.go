// In file: internal/conversation/store.go

// Package conversation persists conversations and their append-only transcripts.
// It carries no business rules: deciding when to create or append is up to the
// caller.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/tools"
)

// Role is the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one persisted transcript entry. Content is nil for an assistant
// message that only requests tool calls. ToolCallID and Name are set only on
// tool messages.
type Message struct {
	ID             string
	ConversationID string
	Role           Role
	Content        *string
	ToolCalls      []tools.Call
	ToolCallID     string
	Name           string
	CreatedAt      time.Time
}

// OwnerKey derives the owner of a conversation from the caller identity. It
// returns nil for anonymous callers.
func OwnerKey(id tools.Identity) *string {
	var key string
	switch {
	case id.UserID != "":
		key = id.UserID
	case id.TelegramID != 0:
		key = fmt.Sprintf("telegram:%d", id.TelegramID)
	default:
		return nil
	}
	return &key
}

// Store reads and writes the conversations and conversation_messages tables.
type Store struct {
	db *store.DB
}

func NewStore(db *store.DB) *Store {
	return &Store{db: db}
}

// FindOrCreate returns the most recently updated conversation of owner, creating
// one when the owner has none. A nil owner always gets a new conversation.
func (s *Store) FindOrCreate(ctx context.Context, owner *string) (string, error) {
	if owner != nil {
		rows, err := s.db.Select(ctx, store.Query{
			Table:   store.TableConversations,
			Filters: []store.Filter{store.Eq("owner_id", *owner)},
			OrderBy: "updated_at",
			Desc:    true,
			Limit:   1,
		})
		if err != nil {
			return "", fmt.Errorf("find conversation: %w", err)
		}
		if len(rows) > 0 {
			if id, _ := rows[0]["id"].(string); id != "" {
				return id, nil
			}
		}
	}

	now := s.db.Now()
	values := store.Row{"created_at": now, "updated_at": now, "owner_id": nil}
	if owner != nil {
		values["owner_id"] = *owner
	}
	row, err := s.db.Insert(ctx, store.TableConversations, values)
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}
	return row["id"].(string), nil
}

// AppendMessage inserts m. Messages are never updated or deleted.
func (s *Store) AppendMessage(ctx context.Context, m Message) error {
	if m.ConversationID == "" {
		return errors.New("message has no conversation id")
	}
	values := store.Row{
		"conversation_id": m.ConversationID,
		"role":            string(m.Role),
		"content":         nil,
		"tool_calls":      nil,
		"tool_call_id":    nil,
		"name":            nil,
	}
	if m.ID != "" {
		values["id"] = m.ID
	}
	if m.Content != nil {
		values["content"] = *m.Content
	}
	if len(m.ToolCalls) > 0 {
		b, err := json.Marshal(m.ToolCalls)
		if err != nil {
			return fmt.Errorf("encode tool calls: %w", err)
		}
		values["tool_calls"] = string(b)
	}
	if m.ToolCallID != "" {
		values["tool_call_id"] = m.ToolCallID
	}
	if m.Name != "" {
		values["name"] = m.Name
	}
	if !m.CreatedAt.IsZero() {
		values["created_at"] = store.Timestamp(m.CreatedAt)
	}

	if _, err := s.db.Insert(ctx, store.TableMessages, values); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// Touch marks the conversation as updated now.
func (s *Store) Touch(ctx context.Context, id string) error {
	if err := s.db.Update(ctx, store.TableConversations, id, store.Row{"updated_at": s.db.Now()}); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return nil
}

// History returns the transcript of a conversation in insertion order.
func (s *Store) History(ctx context.Context, id string) ([]Message, error) {
	rows, err := s.db.Select(ctx, store.Query{
		Table:   store.TableMessages,
		Filters: []store.Filter{store.Eq("conversation_id", id)},
		OrderBy: "seq",
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		m := Message{ConversationID: id}
		m.ID, _ = r["id"].(string)
		role, _ := r["role"].(string)
		m.Role = Role(role)
		if c, ok := r["content"].(string); ok {
			m.Content = &c
		}
		if raw, ok := r["tool_calls"].(string); ok && raw != "" {
			if err := json.Unmarshal([]byte(raw), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls of message %s: %w", m.ID, err)
			}
		}
		m.ToolCallID, _ = r["tool_call_id"].(string)
		m.Name, _ = r["name"].(string)
		if ts, ok := r["created_at"].(string); ok {
			m.CreatedAt, _ = time.Parse(store.TimestampLayout, ts)
		}
		out = append(out, m)
	}
	return out, nil
}
