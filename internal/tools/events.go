// In file: internal/tools/events.go
package tools

import (
	"context"
	"errors"
	"time"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
)

// eventTimeLayout is how starts_at is stored; it sorts lexically.
const eventTimeLayout = "2006-01-02T15:04"

var eventTimeInputs = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	eventTimeLayout,
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseEventTime(s string) (time.Time, bool) {
	for _, layout := range eventTimeInputs {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (e *Executor) searchEvents(ctx context.Context, args Args, _ Identity) (Result, error) {
	from := e.now().Format("2006-01-02")
	if s := args.String("from_date"); s != "" {
		if t, ok := parseEventTime(s); ok {
			from = t.Format("2006-01-02")
		}
	}
	filters := []store.Filter{store.Gte("starts_at", from)}
	if c := args.String("category"); c != "" {
		filters = append(filters, store.Eq("category", c))
	}
	if q := args.String("query"); q != "" {
		filters = append(filters, store.Like("title", q))
	}

	rows, err := e.db.Select(ctx, store.Query{
		Table:   store.TableEvents,
		Filters: filters,
		OrderBy: "starts_at",
		Limit:   args.Limit(),
	})
	if err != nil {
		return Result{}, failed("failed to search events", err)
	}
	return succeed(mapRows(rows, eventRecord)), nil
}

func (e *Executor) createEvent(ctx context.Context, args Args, id Identity) (Result, error) {
	userID, err := e.resolveUser(ctx, id)
	if err != nil {
		return Result{}, err
	}
	title := args.String("title")
	if title == "" {
		return Result{}, failed("title is required", nil)
	}
	startsAt, ok := parseEventTime(args.String("starts_at"))
	if !ok {
		return Result{}, failed("starts_at is required as YYYY-MM-DD or YYYY-MM-DDTHH:MM", nil)
	}

	row := store.Row{
		"organizer_id": userID,
		"title":        title,
		"starts_at":    startsAt.Format(eventTimeLayout),
	}
	setIf(row, args, "description", "category", "location", "contact")
	if v, ok := args.Float("price"); ok {
		row["price"] = v
	}

	created, err := e.db.Insert(ctx, store.TableEvents, row)
	if err != nil {
		return Result{}, failed("failed to create event", err)
	}
	return succeed([]Record{eventRecord(created)}), nil
}

func (e *Executor) rsvpEvent(ctx context.Context, args Args, id Identity) (Result, error) {
	userID, err := e.resolveUser(ctx, id)
	if err != nil {
		return Result{}, err
	}
	eventID := args.String("event_id")
	if eventID == "" {
		return Result{}, failed("event_id is required", nil)
	}
	status := args.String("status")
	if status == "" {
		status = "going"
	}
	if !oneOf(status, rsvpStatuses) {
		return Result{}, mustBeOneOf("status", rsvpStatuses)
	}

	event, err := e.db.Get(ctx, store.TableEvents, eventID)
	if errors.Is(err, store.ErrNotFound) {
		return Result{}, failed("event not found: "+eventID, nil)
	}
	if err != nil {
		return Result{}, failed("failed to load event", err)
	}

	_, err = e.db.Upsert(ctx, store.TableEventRSVPs, store.Row{
		"event_id": eventID,
		"user_id":  userID,
		"status":   status,
	}, "event_id", "user_id")
	if err != nil {
		return Result{}, failed("failed to record RSVP", err)
	}

	rec := eventRecord(event)
	rec.Description = joinNonEmpty(" ", "RSVP: "+status+".", rec.Description)
	return succeed([]Record{rec}), nil
}
