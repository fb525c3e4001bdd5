// In file: internal/tools/listings.go
package tools

import (
	"context"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
)

func (e *Executor) searchListings(ctx context.Context, args Args, _ Identity) (Result, error) {
	filters := []store.Filter{store.Eq("status", "active")}
	if c := args.String("category"); c != "" {
		filters = append(filters, store.Eq("category", c))
	}
	if d := args.String("district"); d != "" {
		filters = append(filters, store.Like("district", d))
	}
	if q := args.String("query"); q != "" {
		filters = append(filters, store.Like("title", q))
	}
	if v, ok := args.Float("min_price"); ok {
		filters = append(filters, store.Gte("price", v))
	}
	if v, ok := args.Float("max_price"); ok {
		filters = append(filters, store.Lte("price", v))
	}
	if n, ok := args.Int("bedrooms"); ok && n > 0 {
		filters = append(filters, store.Gte("bedrooms", n))
	}

	rows, err := e.db.Select(ctx, store.Query{
		Table:   store.TableListings,
		Filters: filters,
		OrderBy: "created_at",
		Desc:    true,
		Limit:   args.Limit(),
	})
	if err != nil {
		return Result{}, failed("failed to search listings", err)
	}
	return succeed(mapRows(rows, listingRecord)), nil
}

func (e *Executor) createListing(ctx context.Context, args Args, id Identity) (Result, error) {
	userID, err := e.resolveUser(ctx, id)
	if err != nil {
		return Result{}, err
	}
	title := args.String("title")
	if title == "" {
		return Result{}, failed("title is required", nil)
	}
	category := args.String("category")
	if !oneOf(category, listingCategories) {
		return Result{}, mustBeOneOf("category", listingCategories)
	}

	row := store.Row{"owner_id": userID, "title": title, "category": category}
	setIf(row, args, "description", "district", "location", "contact")
	if v, ok := args.Float("price"); ok {
		row["price"] = v
	}
	if n, ok := args.Int("bedrooms"); ok && n >= 0 {
		row["bedrooms"] = n
	}

	created, err := e.db.Insert(ctx, store.TableListings, row)
	if err != nil {
		return Result{}, failed("failed to create listing", err)
	}
	return succeed([]Record{listingRecord(created)}), nil
}
