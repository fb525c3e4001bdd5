package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/agent"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/api"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/llm"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/metrics"
)

type fakeTurner struct {
	resp *api.ChatResponse
	err  error
	got  agent.TurnRequest
}

func (f *fakeTurner) Turn(_ context.Context, req agent.TurnRequest) (*api.ChatResponse, error) {
	f.got = req
	return f.resp, f.err
}

func newTestEngine(t *testing.T, turner Turner, limiter *ipRateLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return newEngine(NewChatHandler(turner), NewProfileHandler(llm.NewProfiler(nil)), limiter, metrics.New(), GetBuildInfo())
}

func post(engine http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w, req)
	return w
}

func TestHandleChatSuccess(t *testing.T) {
	turner := &fakeTurner{resp: &api.ChatResponse{
		Message:        "Two flats in An Thuong.",
		ToolCalls:      []api.ToolCallSummary{{Name: "search_listings", Args: map[string]any{"district": "An Thuong"}, Result: map[string]any{"success": true}}},
		ConversationID: "conv-1",
	}}
	engine := newTestEngine(t, turner, nil)

	w := post(engine, "/api/chat", `{"messages":[{"role":"user","content":"flats?"}],"userId":"u-1","telegramId":42}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Two flats in An Thuong.", body["message"])
	assert.Equal(t, "conv-1", body["conversationId"])
	require.Len(t, body["toolCalls"], 1)

	assert.Equal(t, "u-1", turner.got.Identity.UserID)
	assert.EqualValues(t, 42, turner.got.Identity.TelegramID)
	require.Len(t, turner.got.Messages, 1)
	assert.Equal(t, "flats?", turner.got.Messages[0].Content)
}

func TestHandleChatVersionedRoute(t *testing.T) {
	turner := &fakeTurner{resp: &api.ChatResponse{Message: "hi", ToolCalls: []api.ToolCallSummary{}}}
	engine := newTestEngine(t, turner, nil)

	w := post(engine, "/api/v1/chat", `{"messages":[]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"hi","toolCalls":[]}`, w.Body.String())
}

func TestHandleChatBadRequests(t *testing.T) {
	engine := newTestEngine(t, &fakeTurner{}, nil)

	for _, body := range []string{
		`not json`,
		`{}`,
		`{"messages":null}`,
		`{"messages":"hello"}`,
	} {
		w := post(engine, "/api/chat", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Contains(t, w.Body.String(), `"error":"Invalid request"`, body)
	}
}

func TestHandleChatMapsErrors(t *testing.T) {
	invalid := &fakeTurner{err: fmt.Errorf("%w: messages[0] has unsupported role %q", agent.ErrInvalidInput, "system")}
	w := post(newTestEngine(t, invalid, nil), "/api/chat", `{"messages":[{"role":"system","content":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unsupported role")

	failing := &fakeTurner{err: fmt.Errorf("%w: gpt-4o-mini: %v", agent.ErrProvider, errors.New("secret upstream detail"))}
	w = post(newTestEngine(t, failing, nil), "/api/chat", `{"messages":[{"role":"user","content":"x"}]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to process chat request"}`, w.Body.String())
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	engine := newTestEngine(t, &fakeTurner{}, nil)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"version":"dev"`)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestChatRateLimit(t *testing.T) {
	turner := &fakeTurner{resp: &api.ChatResponse{Message: "ok", ToolCalls: []api.ToolCallSummary{}}}
	engine := newTestEngine(t, turner, newIPRateLimiter(RateLimit{RequestsPerMinute: 1, Burst: 2}))

	assert.Equal(t, http.StatusOK, post(engine, "/api/chat", `{"messages":[]}`).Code)
	assert.Equal(t, http.StatusOK, post(engine, "/api/chat", `{"messages":[]}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(engine, "/api/chat", `{"messages":[]}`).Code)

	// Health checks are not limited.
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func get(engine http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestProfileRoute(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	profiler := llm.NewProfiler(rdb)
	profiler.RecordSuccess(context.Background(), "gpt-4o-mini", 120*time.Millisecond, api.Usage{PromptTokens: 30, CompletionTokens: 12, TotalTokens: 42})

	gin.SetMode(gin.TestMode)
	engine := newEngine(NewChatHandler(&fakeTurner{}), NewProfileHandler(profiler), nil, metrics.New(), GetBuildInfo())

	w := get(engine, "/api/v1/profiles/gpt-4o-mini")
	require.Equal(t, http.StatusOK, w.Code)
	var profile llm.ModelProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, "gpt-4o-mini", profile.ModelID)
	assert.EqualValues(t, 1, profile.TotalSuccesses)
	assert.EqualValues(t, 30, profile.TotalInputTokens)
	assert.EqualValues(t, 12, profile.TotalOutputTokens)

	w = get(engine, "/api/v1/profiles/gemini-1.5-flash")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"online"`)

	mr.Close()
	w = get(engine, "/api/v1/profiles/gpt-4o-mini")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to read model profile"}`, w.Body.String())
}

func TestProfileRouteWithoutRedis(t *testing.T) {
	w := get(newTestEngine(t, &fakeTurner{}, nil), "/api/v1/profiles/gpt-4o-mini")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"model_id":"gpt-4o-mini","avg_latency_ms":0,"status":"online","error_rate":0,"total_successes":0,"total_failures":0,"total_input_tokens":0,"total_output_tokens":0,"last_call_at":"0001-01-01T00:00:00Z","tokens_this_month":0}`, w.Body.String())
}
