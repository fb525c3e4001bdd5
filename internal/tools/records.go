// In file: internal/tools/records.go
package tools

import (
	"fmt"
	"strings"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
)

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	}
	return fmt.Sprint(v)
}

func asFloat(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int64:
		f = float64(t)
	case int:
		f = float64(t)
	default:
		return nil
	}
	return &f
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func mapRows(rows []store.Row, fn func(store.Row) Record) []Record {
	out := make([]Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, fn(r))
	}
	return out
}

// setIf copies optional arguments into an insert row, skipping absent ones.
func setIf(row store.Row, args Args, keys ...string) {
	for _, k := range keys {
		if s := args.String(k); s != "" {
			row[k] = s
		}
	}
}

func listingRecord(r store.Row) Record {
	desc := asString(r["description"])
	if n, ok := r["bedrooms"].(int64); ok && n > 0 {
		desc = joinNonEmpty(" ", fmt.Sprintf("%d BR.", n), desc)
	}
	return Record{
		ID:          asString(r["id"]),
		Source:      "listing",
		Category:    asString(r["category"]),
		Title:       asString(r["title"]),
		Description: desc,
		Price:       asFloat(r["price"]),
		Location:    joinNonEmpty(", ", asString(r["location"]), asString(r["district"])),
		Contact:     asString(r["contact"]),
	}
}

func placeRecord(r store.Row) Record {
	desc := asString(r["description"])
	if rating := asFloat(r["rating"]); rating != nil {
		desc = joinNonEmpty(" ", desc, fmt.Sprintf("(rating %.1f)", *rating))
	}
	return Record{
		ID:          asString(r["id"]),
		Source:      "place",
		Category:    asString(r["category"]),
		Title:       asString(r["name"]),
		Description: desc,
		Location:    joinNonEmpty(", ", asString(r["address"]), asString(r["district"])),
		Contact:     asString(r["contact"]),
	}
}

func marketRecord(r store.Row) Record {
	return Record{
		ID:          asString(r["id"]),
		Source:      "market",
		Category:    asString(r["category"]),
		Title:       asString(r["title"]),
		Description: joinNonEmpty(" ", asString(r["description"]), conditionLabel(asString(r["condition"]))),
		Price:       asFloat(r["price"]),
		Location:    asString(r["location"]),
		Contact:     asString(r["contact"]),
	}
}

func conditionLabel(c string) string {
	if c == "" {
		return ""
	}
	return "(" + strings.ReplaceAll(c, "_", " ") + ")"
}

func eventRecord(r store.Row) Record {
	return Record{
		ID:          asString(r["id"]),
		Source:      "event",
		Category:    asString(r["category"]),
		Title:       asString(r["title"]),
		Description: asString(r["description"]),
		Price:       asFloat(r["price"]),
		Location:    asString(r["location"]),
		Contact:     asString(r["contact"]),
		Date:        asString(r["starts_at"]),
	}
}

func postRecord(r store.Row) Record {
	body := asString(r["body"])
	title := asString(r["title"])
	if title == "" {
		title = truncate(body, 60)
	}
	return Record{
		ID:          asString(r["id"]),
		Source:      "community",
		Category:    asString(r["topic"]),
		Title:       title,
		Description: body,
		Date:        asString(r["created_at"]),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
