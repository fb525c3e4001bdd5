// In file: internal/tools/places.go
package tools

import (
	"context"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
)

func (e *Executor) searchPlaces(ctx context.Context, args Args, _ Identity) (Result, error) {
	var filters []store.Filter
	if c := args.String("category"); c != "" {
		filters = append(filters, store.Eq("category", c))
	}
	if d := args.String("district"); d != "" {
		filters = append(filters, store.Like("district", d))
	}
	if q := args.String("query"); q != "" {
		filters = append(filters, store.Like("name", q))
	}

	rows, err := e.db.Select(ctx, store.Query{
		Table:   store.TablePlaces,
		Filters: filters,
		OrderBy: "rating",
		Desc:    true,
		Limit:   args.Limit(),
	})
	if err != nil {
		return Result{}, failed("failed to search places", err)
	}
	return succeed(mapRows(rows, placeRecord)), nil
}
