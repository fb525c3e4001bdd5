// In file: internal/llm/profiler.go
package llm

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/api"

	"github.com/redis/go-redis/v9"
)

// ModelProfile is the running usage record of one model, kept in a redis hash.
type ModelProfile struct {
	ModelID           string    `json:"model_id" redis:"model_id"`
	AvgLatencyMS      int64     `json:"avg_latency_ms" redis:"avg_latency_ms"`
	Status            string    `json:"status" redis:"status"`
	ErrorRate         float64   `json:"error_rate" redis:"error_rate"`
	TotalSuccesses    int64     `json:"total_successes" redis:"total_successes"`
	TotalFailures     int64     `json:"total_failures" redis:"total_failures"`
	TotalInputTokens  int64     `json:"total_input_tokens" redis:"total_input_tokens"`
	TotalOutputTokens int64     `json:"total_output_tokens" redis:"total_output_tokens"`
	LastCallAt        time.Time `json:"last_call_at" redis:"last_call_at"`
	TokensThisMonth   int64     `json:"tokens_this_month"`
}

const (
	statusOnline   = "online"
	statusDegraded = "degraded"

	// latencyAlpha weights the newest sample in the latency moving average.
	latencyAlpha = 0.1
)

// Profiler records per-model latency, token usage and failures. A Profiler with
// no redis client records nothing, so redis stays optional.
type Profiler struct {
	rdb *redis.Client
	now func() time.Time
}

func NewProfiler(rdb *redis.Client) *Profiler {
	return &Profiler{rdb: rdb, now: time.Now}
}

func (p *Profiler) enabled() bool {
	return p != nil && p.rdb != nil
}

func (p *Profiler) getProfileKey(modelID string) string {
	return fmt.Sprintf("profile:%s", modelID)
}

func (p *Profiler) getMonthlyKey(modelID string) string {
	return fmt.Sprintf("tokens:%s:%s", modelID, p.now().Format("2006-01"))
}

// GetProfile returns the stored profile of a model. A model that was never
// called has an empty profile with status "online".
func (p *Profiler) GetProfile(ctx context.Context, modelID string) (*ModelProfile, error) {
	profile := &ModelProfile{ModelID: modelID, Status: statusOnline}
	if !p.enabled() {
		return profile, nil
	}
	data, err := p.rdb.HGetAll(ctx, p.getProfileKey(modelID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return profile, nil
	}

	profile.AvgLatencyMS, _ = strconv.ParseInt(data["avg_latency_ms"], 10, 64)
	if s := data["status"]; s != "" {
		profile.Status = s
	}
	profile.ErrorRate, _ = strconv.ParseFloat(data["error_rate"], 64)
	profile.TotalSuccesses, _ = strconv.ParseInt(data["total_successes"], 10, 64)
	profile.TotalFailures, _ = strconv.ParseInt(data["total_failures"], 10, 64)
	profile.TotalInputTokens, _ = strconv.ParseInt(data["total_input_tokens"], 10, 64)
	profile.TotalOutputTokens, _ = strconv.ParseInt(data["total_output_tokens"], 10, 64)
	profile.LastCallAt, _ = time.Parse(time.RFC3339Nano, data["last_call_at"])

	monthly, err := p.rdb.Get(ctx, p.getMonthlyKey(modelID)).Int64()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	profile.TokensThisMonth = monthly
	return profile, nil
}

// RecordSuccess folds one successful call into the model's profile.
func (p *Profiler) RecordSuccess(ctx context.Context, modelID string, latency time.Duration, usage api.Usage) {
	if !p.enabled() {
		return
	}
	key := p.getProfileKey(modelID)

	err := p.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "avg_latency_ms").Result()
		if err != nil && err != redis.Nil {
			return err
		}
		newLatency := latency.Milliseconds()
		if avg, perr := strconv.ParseInt(current, 10, 64); perr == nil {
			newLatency = int64(latencyAlpha*float64(latency.Milliseconds()) + (1.0-latencyAlpha)*float64(avg))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "avg_latency_ms", newLatency)
			return nil
		})
		return err
	}, key)
	if err != nil {
		log.Printf("WARNING: failed to update latency for %s: %v", modelID, err)
	}

	monthlyKey := p.getMonthlyKey(modelID)
	pipe := p.rdb.Pipeline()
	successes := pipe.HIncrBy(ctx, key, "total_successes", 1)
	failures := pipe.HGet(ctx, key, "total_failures")
	pipe.HIncrBy(ctx, key, "total_input_tokens", int64(usage.PromptTokens))
	pipe.HIncrBy(ctx, key, "total_output_tokens", int64(usage.CompletionTokens))
	pipe.HSet(ctx, key, "model_id", modelID, "status", statusOnline, "last_call_at", p.now().Format(time.RFC3339Nano))
	pipe.IncrBy(ctx, monthlyKey, int64(usage.PromptTokens+usage.CompletionTokens))
	pipe.Expire(ctx, monthlyKey, 35*24*time.Hour)

	// HGet of a missing total_failures yields redis.Nil, which Exec reports.
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		log.Printf("WARNING: failed to record success for %s: %v", modelID, err)
		return
	}
	totalFailures, _ := strconv.ParseInt(failures.Val(), 10, 64)
	p.updateErrorRate(ctx, key, successes.Val(), totalFailures)
}

// RecordFailure counts a failed call and marks the model degraded.
func (p *Profiler) RecordFailure(ctx context.Context, modelID string) {
	if !p.enabled() {
		return
	}
	key := p.getProfileKey(modelID)
	pipe := p.rdb.Pipeline()
	failures := pipe.HIncrBy(ctx, key, "total_failures", 1)
	successes := pipe.HGet(ctx, key, "total_successes")
	pipe.HSet(ctx, key, "model_id", modelID, "status", statusDegraded, "last_call_at", p.now().Format(time.RFC3339Nano))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		log.Printf("WARNING: failed to record failure for %s: %v", modelID, err)
		return
	}
	totalSuccesses, _ := strconv.ParseInt(successes.Val(), 10, 64)
	p.updateErrorRate(ctx, key, totalSuccesses, failures.Val())
}

func (p *Profiler) updateErrorRate(ctx context.Context, key string, successes, failures int64) {
	total := successes + failures
	if total == 0 {
		return
	}
	if err := p.rdb.HSet(ctx, key, "error_rate", float64(failures)/float64(total)).Err(); err != nil {
		log.Printf("WARNING: failed to update error rate of %s: %v", key, err)
	}
}
