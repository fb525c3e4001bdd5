// In file: internal/llm/router.go
package llm

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/tools"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ErrNoProvider is returned when no provider has credentials.
var ErrNoProvider = errors.New("no model provider is configured")

// Provider is one configured model backend.
type Provider struct {
	Name string
	// DefaultModel is used when the configured model belongs to a provider
	// that is not available.
	DefaultModel string
	Client       LLMClient
}

// Router selects the provider serving a model name and wraps it so every call
// is profiled.
type Router struct {
	providers []Provider
	profiler  *Profiler
}

// NewRouter keeps the providers that have a client, in the given order. The
// first one is the fallback.
func NewRouter(profiler *Profiler, providers ...Provider) *Router {
	r := &Router{profiler: profiler}
	for _, p := range providers {
		if p.Client != nil {
			r.providers = append(r.providers, p)
		}
	}
	return r
}

// Available reports whether any provider can be called.
func (r *Router) Available() bool {
	return r != nil && len(r.providers) > 0
}

// ProviderForModel maps a model name to the provider that serves it. Anything
// that is not a Gemini model goes to the OpenAI-compatible endpoint.
func ProviderForModel(model string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gemini") {
		return ProviderGemini
	}
	return ProviderOpenAI
}

// Select returns the client for model and the model name to send. When the
// provider of model has no credentials the first available provider is used
// with its default model.
func (r *Router) Select(model string) (LLMClient, string, error) {
	if !r.Available() {
		return nil, "", ErrNoProvider
	}
	want := ProviderForModel(model)
	for _, p := range r.providers {
		if p.Name == want {
			return r.wrap(p.Client, model), model, nil
		}
	}
	fallback := r.providers[0]
	log.Printf("WARNING: no %s credentials for model %q, falling back to %s (%s).", want, model, fallback.Name, fallback.DefaultModel)
	return r.wrap(fallback.Client, fallback.DefaultModel), fallback.DefaultModel, nil
}

func (r *Router) wrap(c LLMClient, model string) LLMClient {
	if !r.profiler.enabled() {
		return c
	}
	return &profiledClient{next: c, model: model, profiler: r.profiler}
}

// profiledClient records latency, tokens and failures of each call.
type profiledClient struct {
	next     LLMClient
	model    string
	profiler *Profiler
}

func (c *profiledClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	start := time.Now()
	res, err := c.next.Generate(ctx, messages, config, availableTools)

	// Profiling must not be cut short by the caller's deadline.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err != nil {
		c.profiler.RecordFailure(pctx, c.model)
		return nil, err
	}
	c.profiler.RecordSuccess(pctx, c.model, time.Since(start), res.Usage)
	return res, nil
}
