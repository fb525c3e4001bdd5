package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), DialectSQLite, t.TempDir()+"/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenRejectsUnknownDialect(t *testing.T) {
	_, err := Open(context.Background(), Dialect("mysql"), "whatever")
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
}

func TestRebind(t *testing.T) {
	sqlite := &DB{dialect: DialectSQLite}
	pg := &DB{dialect: DialectPostgres}

	q := "SELECT * FROM t WHERE a = ? AND b >= ?"
	assert.Equal(t, q, sqlite.Rebind(q))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b >= $2", pg.Rebind(q))
}

func TestTimestampIsFixedWidth(t *testing.T) {
	a := Timestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	b := Timestamp(time.Date(2026, 1, 2, 3, 4, 5, 120000000, time.UTC))
	assert.Len(t, a, len(b))
	assert.Less(t, a, b)
}

func TestInsertGetAndSelect(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, c := range []string{"apartment", "apartment", "house"} {
		_, err := db.Insert(ctx, TableListings, Row{
			"category": c,
			"title":    []string{"Sea view flat", "Studio near Han market", "Villa An Thuong"}[i],
			"price":    float64(400 + i*100),
		})
		require.NoError(t, err)
	}

	rows, err := db.Select(ctx, Query{
		Table:   TableListings,
		Filters: []Filter{Eq("category", "apartment")},
		OrderBy: "price",
		Desc:    true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 500.0, rows[0]["price"])
	assert.Equal(t, "active", rows[0]["status"])

	got, err := db.Get(ctx, TableListings, rows[1]["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "Sea view flat", got["title"])
}

func TestSelectRangeAndLikeFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, p := range []float64{100, 250, 900} {
		_, err := db.Insert(ctx, TableMarketItems, Row{"title": "Honda Vision scooter", "price": p})
		require.NoError(t, err)
	}
	_, err := db.Insert(ctx, TableMarketItems, Row{"title": "Desk lamp", "price": 10.0})
	require.NoError(t, err)

	rows, err := db.Select(ctx, Query{
		Table:   TableMarketItems,
		Filters: []Filter{Like("title", "SCOOTER"), Gte("price", 200), Lte("price", 900)},
		Limit:   1,
		OrderBy: "price",
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 250.0, rows[0]["price"])
}

func TestGetMissingRow(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Get(context.Background(), TableEvents, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpsertByUniqueKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := db.Upsert(ctx, TableEventRSVPs, Row{"event_id": "e1", "user_id": "u1", "status": "interested"}, "event_id", "user_id")
	require.NoError(t, err)
	second, err := db.Upsert(ctx, TableEventRSVPs, Row{"event_id": "e1", "user_id": "u1", "status": "going"}, "event_id", "user_id")
	require.NoError(t, err)

	assert.Equal(t, first["id"], second["id"])
	assert.Equal(t, "going", second["status"])

	rows, err := db.Select(ctx, Query{Table: TableEventRSVPs})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	row, err := db.Insert(ctx, TableConversations, Row{"updated_at": "a"})
	require.NoError(t, err)
	require.NoError(t, db.Update(ctx, TableConversations, row["id"].(string), Row{"updated_at": "b"}))

	got, err := db.Get(ctx, TableConversations, row["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "b", got["updated_at"])

	err = db.Update(ctx, TableConversations, "missing", Row{"updated_at": "c"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRejectsUnknownTablesAndColumns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.Select(ctx, Query{Table: "sqlite_master"})
	assert.Error(t, err)

	_, err = db.Select(ctx, Query{Table: TableListings, Filters: []Filter{Eq("title; DROP TABLE listings", 1)}})
	assert.Error(t, err)

	_, err = db.Insert(ctx, TableListings, Row{"Bad Column": 1})
	assert.Error(t, err)
}
