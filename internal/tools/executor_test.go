package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	db, err := store.Open(context.Background(), store.DialectSQLite, t.TempDir()+"/tools.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e, err := NewExecutor(db, time.Second)
	require.NoError(t, err)
	e.now = func() time.Time { return time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC) }
	return e
}

func seed(t *testing.T, e *Executor, table string, rows ...store.Row) []store.Row {
	t.Helper()
	var out []store.Row
	for _, r := range rows {
		created, err := e.db.Insert(context.Background(), table, r)
		require.NoError(t, err)
		out = append(out, created)
	}
	return out
}

var member = Identity{UserID: "user-1"}

func TestExecuteUnknownTool(t *testing.T) {
	e := newTestExecutor(t)
	res := e.Execute(context.Background(), "launch_rocket", Args{}, member)
	assert.False(t, res.Success)
	assert.Equal(t, "Unknown tool: launch_rocket", res.Error)
}

func TestSearchListingsFiltersByCategoryAndLimit(t *testing.T) {
	e := newTestExecutor(t)
	for i := 0; i < 5; i++ {
		seed(t, e, store.TableListings, store.Row{"category": "apartment", "title": "Apartment", "price": 500.0 + float64(i)})
	}
	seed(t, e, store.TableListings,
		store.Row{"category": "house", "title": "House one"},
		store.Row{"category": "house", "title": "House two"},
	)

	res := e.Execute(context.Background(), "search_listings", Args{"category": "apartment", "limit": 3.0}, Identity{})
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Data, 3)
	for _, r := range res.Data {
		assert.Equal(t, "apartment", r.Category)
		assert.Equal(t, "listing", r.Source)
	}
}

func TestSearchListingsDefaultsAndClampsLimit(t *testing.T) {
	e := newTestExecutor(t)
	for i := 0; i < 25; i++ {
		seed(t, e, store.TableListings, store.Row{"category": "room", "title": "Room"})
	}

	res := e.Execute(context.Background(), "search_listings", Args{}, Identity{})
	require.True(t, res.Success)
	assert.Len(t, res.Data, defaultLimit)

	res = e.Execute(context.Background(), "search_listings", Args{"limit": 500.0}, Identity{})
	require.True(t, res.Success)
	assert.Len(t, res.Data, maxLimit)

	res = e.Execute(context.Background(), "search_listings", Args{"limit": "2"}, Identity{})
	require.True(t, res.Success)
	assert.Len(t, res.Data, 2)
}

func TestSearchListingsPriceAndDistrict(t *testing.T) {
	e := newTestExecutor(t)
	seed(t, e, store.TableListings,
		store.Row{"category": "apartment", "title": "Cheap", "price": 300.0, "district": "Son Tra"},
		store.Row{"category": "apartment", "title": "Mid", "price": 600.0, "district": "Son Tra", "bedrooms": 2},
		store.Row{"category": "apartment", "title": "Far", "price": 600.0, "district": "Hoa Vang"},
		store.Row{"category": "apartment", "title": "Pricey", "price": 1500.0, "district": "Son Tra"},
		store.Row{"category": "apartment", "title": "Gone", "price": 600.0, "district": "Son Tra", "status": "rented"},
	)

	res := e.Execute(context.Background(), "search_listings",
		Args{"district": "son tra", "min_price": 400.0, "max_price": "1000"}, Identity{})
	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Mid", res.Data[0].Title)
	require.NotNil(t, res.Data[0].Price)
	assert.Equal(t, 600.0, *res.Data[0].Price)
	assert.Equal(t, "Son Tra", res.Data[0].Location)
	assert.Contains(t, res.Data[0].Description, "2 BR")
}

func TestMutationsRequireIdentity(t *testing.T) {
	e := newTestExecutor(t)
	cases := map[string]Args{
		"create_community_post": {"body": "hello"},
		"create_listing":        {"title": "Flat", "category": "apartment"},
		"create_event":          {"title": "Meetup", "starts_at": "2026-11-01"},
		"rsvp_event":            {"event_id": "e1"},
		"get_my_favorites":      {},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			res := e.Execute(context.Background(), name, args, Identity{})
			assert.False(t, res.Success)
			assert.Contains(t, res.Error, "signed-in user")
		})
	}

	posts, err := e.db.Select(context.Background(), store.Query{Table: store.TableCommunityPosts})
	require.NoError(t, err)
	assert.Empty(t, posts, "no anonymous write may happen")
}

func TestCreateCommunityPostWithTelegramIdentity(t *testing.T) {
	e := newTestExecutor(t)
	seed(t, e, store.TableUsers, store.Row{"id": "user-tg", "telegram_id": int64(42), "display_name": "Linh"})

	res := e.Execute(context.Background(), "create_community_post", Args{"body": "hello"}, Identity{TelegramID: 42})
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "community", res.Data[0].Source)
	assert.Equal(t, "general", res.Data[0].Category)
	assert.Equal(t, "hello", res.Data[0].Title)

	rows, err := e.db.Select(context.Background(), store.Query{Table: store.TableCommunityPosts})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "user-tg", rows[0]["author_id"])

	res = e.Execute(context.Background(), "create_community_post", Args{"body": "hi"}, Identity{TelegramID: 7})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no user profile")
}

func TestCreateCommunityPostRequiresBody(t *testing.T) {
	e := newTestExecutor(t)
	res := e.Execute(context.Background(), "create_community_post", Args{}, member)
	assert.False(t, res.Success)
	assert.Equal(t, "body is required", res.Error)
}

func TestGetCommunityPostsNewestFirst(t *testing.T) {
	e := newTestExecutor(t)
	seed(t, e, store.TableCommunityPosts,
		store.Row{"author_id": "a", "body": "old", "topic": "visa", "created_at": "2026-01-01T00:00:00.000000000Z"},
		store.Row{"author_id": "a", "body": "new", "topic": "visa", "created_at": "2026-02-01T00:00:00.000000000Z"},
		store.Row{"author_id": "a", "body": "food", "topic": "food", "created_at": "2026-03-01T00:00:00.000000000Z"},
	)

	res := e.Execute(context.Background(), "get_community_posts", Args{"topic": "visa"}, Identity{})
	require.True(t, res.Success)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "new", res.Data[0].Description)
}

func TestCreateListingValidatesCategory(t *testing.T) {
	e := newTestExecutor(t)

	res := e.Execute(context.Background(), "create_listing", Args{"title": "Boat", "category": "yacht"}, member)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "category must be one of")

	res = e.Execute(context.Background(), "create_listing",
		Args{"title": "Sunny studio", "category": "studio", "price": 350.0, "district": "Hai Chau"}, member)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Sunny studio", res.Data[0].Title)
	assert.Equal(t, "Hai Chau", res.Data[0].Location)
	assert.NotEmpty(t, res.Data[0].ID)
}

func TestSearchEventsFromToday(t *testing.T) {
	e := newTestExecutor(t)
	seed(t, e, store.TableEvents,
		store.Row{"title": "Past quiz", "starts_at": "2026-10-01T19:00"},
		store.Row{"title": "Beach cleanup", "starts_at": "2026-10-20T07:00", "category": "volunteer"},
		store.Row{"title": "Language exchange", "starts_at": "2026-10-16T18:30"},
	)

	res := e.Execute(context.Background(), "search_events", Args{}, Identity{})
	require.True(t, res.Success)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "Language exchange", res.Data[0].Title)
	assert.Equal(t, "2026-10-16T18:30", res.Data[0].Date)

	res = e.Execute(context.Background(), "search_events", Args{"from_date": "2026-10-18"}, Identity{})
	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Beach cleanup", res.Data[0].Title)
}

func TestCreateEventAndRSVP(t *testing.T) {
	e := newTestExecutor(t)

	res := e.Execute(context.Background(), "create_event", Args{"title": "Run club", "starts_at": "tomorrow"}, member)
	assert.False(t, res.Success)

	res = e.Execute(context.Background(), "create_event", Args{"title": "Run club", "starts_at": "2026-10-18 06:00"}, member)
	require.True(t, res.Success, res.Error)
	eventID := res.Data[0].ID
	assert.Equal(t, "2026-10-18T06:00", res.Data[0].Date)

	res = e.Execute(context.Background(), "rsvp_event", Args{"event_id": "missing"}, member)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "event not found")

	res = e.Execute(context.Background(), "rsvp_event", Args{"event_id": eventID, "status": "maybe"}, member)
	assert.False(t, res.Success)

	res = e.Execute(context.Background(), "rsvp_event", Args{"event_id": eventID}, member)
	require.True(t, res.Success, res.Error)
	assert.Contains(t, res.Data[0].Description, "RSVP: going")

	res = e.Execute(context.Background(), "rsvp_event", Args{"event_id": eventID, "status": "interested"}, member)
	require.True(t, res.Success, res.Error)

	rsvps, err := e.db.Select(context.Background(), store.Query{Table: store.TableEventRSVPs})
	require.NoError(t, err)
	require.Len(t, rsvps, 1)
	assert.Equal(t, "interested", rsvps[0]["status"])
}

func TestGetMyFavoritesResolvesItems(t *testing.T) {
	e := newTestExecutor(t)
	listing := seed(t, e, store.TableListings, store.Row{"category": "villa", "title": "Villa"})[0]
	place := seed(t, e, store.TablePlaces, store.Row{"category": "cafe", "name": "Cong Caphe", "rating": 4.5})[0]
	seed(t, e, store.TableFavorites,
		store.Row{"user_id": "user-1", "item_type": "listing", "item_id": listing["id"], "created_at": "2026-01-01T00:00:00.000000000Z"},
		store.Row{"user_id": "user-1", "item_type": "place", "item_id": place["id"], "created_at": "2026-01-02T00:00:00.000000000Z"},
		store.Row{"user_id": "user-1", "item_type": "event", "item_id": "deleted", "created_at": "2026-01-03T00:00:00.000000000Z"},
		store.Row{"user_id": "someone-else", "item_type": "listing", "item_id": listing["id"]},
	)

	res := e.Execute(context.Background(), "get_my_favorites", Args{}, member)
	require.True(t, res.Success, res.Error)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "Cong Caphe", res.Data[0].Title)
	assert.Equal(t, "place", res.Data[0].Source)
	assert.Equal(t, "Villa", res.Data[1].Title)

	res = e.Execute(context.Background(), "get_my_favorites", Args{"item_type": "listing"}, member)
	require.True(t, res.Success)
	require.Len(t, res.Data, 1)

	res = e.Execute(context.Background(), "get_my_favorites", Args{"item_type": "boat"}, member)
	assert.False(t, res.Success)
}

func TestSearchPlacesAndMarket(t *testing.T) {
	e := newTestExecutor(t)
	seed(t, e, store.TablePlaces,
		store.Row{"category": "coworking", "name": "Enouvo Space", "rating": 4.2},
		store.Row{"category": "coworking", "name": "Dana Desk", "rating": 4.8},
		store.Row{"category": "cafe", "name": "Nam House"},
	)
	seed(t, e, store.TableMarketItems,
		store.Row{"title": "Honda Vision", "category": "bike", "price": 700.0, "condition": "used"},
		store.Row{"title": "Office chair", "category": "furniture", "price": 40.0, "condition": "like_new"},
	)

	res := e.Execute(context.Background(), "search_places", Args{"category": "coworking"}, Identity{})
	require.True(t, res.Success)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "Dana Desk", res.Data[0].Title)
	assert.Nil(t, res.Data[0].Price)

	res = e.Execute(context.Background(), "search_market", Args{"max_price": 100.0}, Identity{})
	require.True(t, res.Success)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "Office chair", res.Data[0].Title)
	assert.Contains(t, res.Data[0].Description, "like new")
}

func TestStoreFailureIsIsolated(t *testing.T) {
	e := newTestExecutor(t)
	require.NoError(t, e.db.Close())

	res := e.Execute(context.Background(), "search_listings", Args{}, Identity{})
	assert.False(t, res.Success)
	assert.Equal(t, "failed to search listings", res.Error, "driver detail must not leak")
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	e := newTestExecutor(t)
	e.handlers[SearchPlaces] = func(context.Context, Args, Identity) (Result, error) {
		panic("boom")
	}
	res := e.Execute(context.Background(), "search_places", Args{}, Identity{})
	assert.False(t, res.Success)
	assert.Equal(t, "search_places failed", res.Error)
}

func TestSlowHandlerIsCutOffByTimeout(t *testing.T) {
	db, err := store.Open(context.Background(), store.DialectSQLite, t.TempDir()+"/tools.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	e, err := NewExecutor(db, 50*time.Millisecond)
	require.NoError(t, err)

	e.handlers[SearchPlaces] = func(ctx context.Context, _ Args, _ Identity) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}

	done := make(chan Result, 1)
	go func() { done <- e.Execute(context.Background(), "search_places", Args{}, Identity{}) }()

	select {
	case res := <-done:
		assert.False(t, res.Success)
		assert.Equal(t, "search_places failed", res.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("tool call did not return after its timeout")
	}

	// The executor stays usable after a timed out call.
	res := e.Execute(context.Background(), "search_listings", Args{}, Identity{})
	assert.True(t, res.Success)
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, Args{}, ParseArgs(""))
	assert.Equal(t, Args{}, ParseArgs("{not json"))
	assert.Equal(t, Args{}, ParseArgs("[1,2]"))
	assert.Equal(t, Args{}, ParseArgs("null"))
	assert.Equal(t, Args{"limit": 3.0}, ParseArgs(`{"limit":3}`))
}

func TestResultJSONShape(t *testing.T) {
	b, err := json.Marshal(succeed(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":[]}`, string(b))

	b, err = json.Marshal(fail("nope"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"nope"}`, string(b))
}
