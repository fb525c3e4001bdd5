// In file: internal/tools/favorites.go
package tools

import (
	"context"
	"errors"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
)

// favoriteSources maps a favorites.item_type to the table holding the item and
// the function that renders it.
var favoriteSources = map[string]struct {
	table  string
	record func(store.Row) Record
}{
	"listing":     {store.TableListings, listingRecord},
	"place":       {store.TablePlaces, placeRecord},
	"market_item": {store.TableMarketItems, marketRecord},
	"event":       {store.TableEvents, eventRecord},
}

func (e *Executor) getMyFavorites(ctx context.Context, args Args, id Identity) (Result, error) {
	userID, err := e.resolveUser(ctx, id)
	if err != nil {
		return Result{}, err
	}

	filters := []store.Filter{store.Eq("user_id", userID)}
	if t := args.String("item_type"); t != "" {
		if _, known := favoriteSources[t]; !known {
			return Result{}, mustBeOneOf("item_type", favoriteTypes)
		}
		filters = append(filters, store.Eq("item_type", t))
	}

	favs, err := e.db.Select(ctx, store.Query{
		Table:   store.TableFavorites,
		Filters: filters,
		OrderBy: "created_at",
		Desc:    true,
		Limit:   args.Limit(),
	})
	if err != nil {
		return Result{}, failed("failed to load favorites", err)
	}

	records := make([]Record, 0, len(favs))
	for _, f := range favs {
		src, known := favoriteSources[asString(f["item_type"])]
		if !known {
			continue
		}
		item, err := e.db.Get(ctx, src.table, asString(f["item_id"]))
		if errors.Is(err, store.ErrNotFound) {
			// The item was removed after it was saved.
			continue
		}
		if err != nil {
			return Result{}, failed("failed to load favorites", err)
		}
		records = append(records, src.record(item))
	}
	return succeed(records), nil
}
