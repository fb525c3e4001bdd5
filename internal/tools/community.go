// In file: internal/tools/community.go
package tools

import (
	"context"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
)

const defaultTopic = "general"

func (e *Executor) getCommunityPosts(ctx context.Context, args Args, _ Identity) (Result, error) {
	var filters []store.Filter
	if t := args.String("topic"); t != "" {
		filters = append(filters, store.Eq("topic", t))
	}
	rows, err := e.db.Select(ctx, store.Query{
		Table:   store.TableCommunityPosts,
		Filters: filters,
		OrderBy: "created_at",
		Desc:    true,
		Limit:   args.Limit(),
	})
	if err != nil {
		return Result{}, failed("failed to load community posts", err)
	}
	return succeed(mapRows(rows, postRecord)), nil
}

func (e *Executor) createCommunityPost(ctx context.Context, args Args, id Identity) (Result, error) {
	userID, err := e.resolveUser(ctx, id)
	if err != nil {
		return Result{}, err
	}
	body := args.String("body")
	if body == "" {
		return Result{}, failed("body is required", nil)
	}
	topic := args.String("topic")
	if topic == "" {
		topic = defaultTopic
	}

	row := store.Row{"author_id": userID, "body": body, "topic": topic}
	setIf(row, args, "title")
	created, err := e.db.Insert(ctx, store.TableCommunityPosts, row)
	if err != nil {
		return Result{}, failed("failed to create community post", err)
	}
	return succeed([]Record{postRecord(created)}), nil
}
