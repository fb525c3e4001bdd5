// In file: internal/tools/executor.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
)

// DefaultTimeout bounds a single tool execution.
const DefaultTimeout = 10 * time.Second

// handler performs one tool against the store. Errors built with failed carry
// a message that is safe to show the model; any other error is reported as a
// generic failure.
type handler func(ctx context.Context, args Args, id Identity) (Result, error)

// Executor is the only component that touches the store on behalf of the agent.
// It is stateless between calls and safe for concurrent use.
type Executor struct {
	db       *store.DB
	handlers map[Name]handler
	timeout  time.Duration
	now      func() time.Time
}

// NewExecutor builds the dispatch table and checks it against the registry.
// A registry name without a handler, or a handler without a registry entry,
// is a programming error reported here rather than at call time.
func NewExecutor(db *store.DB, timeout time.Duration) (*Executor, error) {
	if db == nil {
		return nil, errors.New("tool executor requires a store")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e := &Executor{db: db, timeout: timeout, now: time.Now}
	e.handlers = map[Name]handler{
		SearchListings:      e.searchListings,
		SearchPlaces:        e.searchPlaces,
		SearchMarket:        e.searchMarket,
		SearchEvents:        e.searchEvents,
		GetMyFavorites:      e.getMyFavorites,
		GetCommunityPosts:   e.getCommunityPosts,
		CreateCommunityPost: e.createCommunityPost,
		CreateListing:       e.createListing,
		CreateEvent:         e.createEvent,
		RSVPEvent:           e.rsvpEvent,
	}
	if err := checkDispatch(e.handlers, registry); err != nil {
		return nil, err
	}
	return e, nil
}

func checkDispatch(handlers map[Name]handler, defs []Tool) error {
	seen := make(map[Name]bool, len(defs))
	var problems []string
	for _, t := range defs {
		name := t.Function.Name
		if seen[name] {
			problems = append(problems, fmt.Sprintf("duplicate registry name %q", name))
		}
		seen[name] = true
		if _, ok := handlers[name]; !ok {
			problems = append(problems, fmt.Sprintf("tool %q has no handler", name))
		}
	}
	for name := range handlers {
		if !seen[name] {
			problems = append(problems, fmt.Sprintf("handler %q is not in the registry", name))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("tool registry and dispatch table disagree: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Execute runs the named tool. It never returns an error and never panics:
// every failure is reported in the Result so one bad call cannot abort a turn.
func (e *Executor) Execute(ctx context.Context, name string, args Args, id Identity) (res Result) {
	h, ok := e.handlers[Name(name)]
	if !ok {
		return fail("Unknown tool: %s", name)
	}
	if args == nil {
		args = Args{}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Tool %s panicked: %v", name, r)
			res = fail("%s failed", name)
		}
	}()

	res, err := h(ctx, args, id)
	if err != nil {
		var te *toolError
		if errors.As(err, &te) {
			if te.err != nil {
				log.Printf("WARNING: tool %s failed: %v", name, err)
			}
			return Result{Success: false, Error: te.msg}
		}
		log.Printf("WARNING: tool %s failed: %v", name, err)
		return fail("%s failed", name)
	}
	return res
}

// toolError carries a short message for the model and, optionally, the
// underlying cause that is only logged.
type toolError struct {
	msg string
	err error
}

func (e *toolError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *toolError) Unwrap() error { return e.err }

func failed(msg string, cause error) error {
	return &toolError{msg: msg, err: cause}
}

var errSignInRequired = failed("this action requires a signed-in user (userId or telegramId)", nil)

// resolveUser maps the caller identity to a users.id. A Telegram id is looked
// up in the users table; a missing profile is an error, not an anonymous write.
func (e *Executor) resolveUser(ctx context.Context, id Identity) (string, error) {
	if id.UserID != "" {
		return id.UserID, nil
	}
	if id.TelegramID == 0 {
		return "", errSignInRequired
	}
	rows, err := e.db.Select(ctx, store.Query{
		Table:   store.TableUsers,
		Filters: []store.Filter{store.Eq("telegram_id", id.TelegramID)},
		Limit:   1,
	})
	if err != nil {
		return "", failed("failed to resolve the current user", err)
	}
	if len(rows) == 0 {
		return "", failed("no user profile found for this Telegram account", nil)
	}
	return asString(rows[0]["id"]), nil
}
