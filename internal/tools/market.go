// In file: internal/tools/market.go
package tools

import (
	"context"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
)

func (e *Executor) searchMarket(ctx context.Context, args Args, _ Identity) (Result, error) {
	filters := []store.Filter{store.Eq("status", "active")}
	if c := args.String("category"); c != "" {
		filters = append(filters, store.Eq("category", c))
	}
	if q := args.String("query"); q != "" {
		filters = append(filters, store.Like("title", q))
	}
	if v, ok := args.Float("max_price"); ok {
		filters = append(filters, store.Lte("price", v))
	}
	if c := args.String("condition"); c != "" {
		filters = append(filters, store.Eq("condition", c))
	}

	rows, err := e.db.Select(ctx, store.Query{
		Table:   store.TableMarketItems,
		Filters: filters,
		OrderBy: "created_at",
		Desc:    true,
		Limit:   args.Limit(),
	})
	if err != nil {
		return Result{}, failed("failed to search the marketplace", err)
	}
	return succeed(mapRows(rows, marketRecord)), nil
}
