// In file: internal/agent/orchestrator.go

// Package agent runs one chat turn: it loads the agent configuration, resolves
// the caller's conversation, asks the model, executes the tools it requested in
// order, asks the model again with the results and records the transcript.
//
// A turn makes at most two model calls. The first may request tools; the second
// is made without tools and must answer in prose.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/agentconfig"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/api"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/conversation"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/llm"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/metrics"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/tools"
)

var (
	// ErrInvalidInput marks a request whose message list is malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProvider marks a failed model call. Its detail is for logs only.
	ErrProvider = errors.New("model provider failed")
)

const (
	DefaultProviderTimeout = 60 * time.Second
	DefaultWriteTimeout    = 5 * time.Second
	DefaultDrainTimeout    = 2 * DefaultWriteTimeout

	// unknownToolLabel is the metrics label of tool names outside the registry.
	unknownToolLabel = "unknown"

	// NotConfiguredMessage is the reply when no model provider has credentials.
	NotConfiguredMessage = "The assistant is not configured yet. Please try again later."
)

// ToolExecutor runs one tool call. It never fails; failures are in the Result.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args tools.Args, id tools.Identity) tools.Result
}

// ConfigLoader returns the configuration of the current turn.
type ConfigLoader interface {
	Load(ctx context.Context) agentconfig.Configuration
}

// ConversationStore is the persistence surface of transcripts.
type ConversationStore interface {
	FindOrCreate(ctx context.Context, owner *string) (string, error)
	AppendMessage(ctx context.Context, m conversation.Message) error
	Touch(ctx context.Context, id string) error
}

// ModelRouter picks the client that serves a model.
type ModelRouter interface {
	Available() bool
	Select(model string) (llm.LLMClient, string, error)
}

// Options tunes an Orchestrator. Zero values select the defaults.
type Options struct {
	ProviderTimeout time.Duration
	WriteTimeout    time.Duration
	// DrainTimeout bounds how long a turn waits for its transcript writes
	// before it returns.
	DrainTimeout    time.Duration
	Metrics         *metrics.Metrics
}

// Orchestrator holds no per-turn state and is safe for concurrent use.
type Orchestrator struct {
	router        ModelRouter
	config        ConfigLoader
	conversations ConversationStore
	executor      ToolExecutor

	providerTimeout time.Duration
	writeTimeout    time.Duration
	drainTimeout    time.Duration
	metrics         *metrics.Metrics
}

func New(router ModelRouter, config ConfigLoader, conversations ConversationStore, executor ToolExecutor, opts Options) *Orchestrator {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = DefaultProviderTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	return &Orchestrator{
		router:          router,
		config:          config,
		conversations:   conversations,
		executor:        executor,
		providerTimeout: opts.ProviderTimeout,
		writeTimeout:    opts.WriteTimeout,
		drainTimeout:    opts.DrainTimeout,
		metrics:         opts.Metrics,
	}
}

// TurnRequest is one inbound chat message list and the caller behind it.
type TurnRequest struct {
	Messages []api.ChatMessage
	Identity tools.Identity
}

// Turn answers the last message of req. Errors wrap ErrInvalidInput or
// ErrProvider; every other failure is absorbed.
func (o *Orchestrator) Turn(ctx context.Context, req TurnRequest) (resp *api.ChatResponse, err error) {
	start := time.Now()
	outcome := metrics.OutcomeOK
	defer func() {
		switch {
		case errors.Is(err, ErrInvalidInput):
			outcome = metrics.OutcomeInvalid
		case err != nil:
			outcome = metrics.OutcomeError
		}
		o.metrics.Turn(outcome, time.Since(start))
	}()

	if err := validate(req.Messages); err != nil {
		return nil, err
	}
	if o.router == nil || !o.router.Available() {
		log.Println("WARNING: no model provider configured, sending the not-configured reply.")
		outcome = metrics.OutcomeDegraded
		return &api.ChatResponse{Message: NotConfiguredMessage, ToolCalls: []api.ToolCallSummary{}}, nil
	}

	// A client that goes away must not abort store writes or tool mutations
	// half way.
	ctx = context.WithoutCancel(ctx)

	cfg := o.config.Load(ctx)
	client, model, err := o.router.Select(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	tw := startTranscript(ctx, o.conversations, o.resolveConversation(ctx, req.Identity), o.writeTimeout, o.drainTimeout, o.metrics)
	defer tw.Close()

	if last, ok := lastUserMessage(req.Messages); ok {
		tw.append(conversation.Message{Role: conversation.RoleUser, Content: &last})
	}
	tw.touch()

	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: cfg.SystemPrompt})
	for _, m := range req.Messages {
		messages = append(messages, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}
	genCfg := &llm.GenerationConfig{Model: model, Temperature: &cfg.Temperature, MaxTokens: cfg.MaxTokens}

	first, err := o.generate(ctx, client, messages, genCfg, tools.Definitions(cfg.EnabledTools))
	if err != nil {
		return nil, err
	}
	if len(first.ToolCalls) == 0 {
		tw.append(conversation.Message{Role: conversation.RoleAssistant, Content: &first.Content})
		return &api.ChatResponse{Message: first.Content, ToolCalls: []api.ToolCallSummary{}}, nil
	}

	calls := withCallIDs(first.ToolCalls)
	followUp := append(messages, llm.Message{Role: llm.RoleAssistant, Content: first.Content, ToolCalls: calls})
	summaries := make([]api.ToolCallSummary, 0, len(calls))

	for i, call := range calls {
		name := call.Function.Name
		args := tools.ParseArgs(call.Function.Arguments)
		log.Printf("🛠️ Executing tool: %s (ID: %s) with args: %s", name, call.ID, call.Function.Arguments)

		started := time.Now()
		result := o.executor.Execute(ctx, name, args, req.Identity)
		o.metrics.ToolExecution(toolLabel(name), result.Success, time.Since(started))
		if !result.Success {
			log.Printf("WARNING: tool %s returned an error: %s", name, result.Error)
		}

		content := encodeResult(result)
		request := conversation.Message{Role: conversation.RoleAssistant, ToolCalls: []tools.Call{call}}
		if i == 0 && first.Content != "" {
			// Prose the model sent along with its tool calls.
			prose := first.Content
			request.Content = &prose
		}
		tw.append(request)
		tw.append(conversation.Message{Role: conversation.RoleTool, Content: &content, ToolCallID: call.ID, Name: name})

		followUp = append(followUp, llm.Message{Role: llm.RoleTool, Content: content, ToolCallID: call.ID, Name: name})
		summaries = append(summaries, api.ToolCallSummary{Name: name, Args: args, Result: result})
	}

	second, err := o.generate(ctx, client, followUp, genCfg, nil)
	if err != nil {
		return nil, err
	}
	tw.append(conversation.Message{Role: conversation.RoleAssistant, Content: &second.Content})

	return &api.ChatResponse{
		Message:        second.Content,
		ToolCalls:      summaries,
		ConversationID: tw.conversationID,
	}, nil
}

// generate makes one bounded model call.
func (o *Orchestrator) generate(ctx context.Context, client llm.LLMClient, messages []llm.Message, cfg *llm.GenerationConfig, defs []tools.Tool) (*llm.GenerationResult, error) {
	cctx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	start := time.Now()
	res, err := client.Generate(cctx, messages, cfg, defs)
	if err != nil {
		o.metrics.ModelCall(cfg.Model, time.Since(start), 0, 0, err)
		log.Printf("❌ Model call to %s failed: %v", cfg.Model, err)
		return nil, fmt.Errorf("%w: %s: %v", ErrProvider, cfg.Model, err)
	}
	o.metrics.ModelCall(cfg.Model, time.Since(start), res.Usage.PromptTokens, res.Usage.CompletionTokens, nil)
	return res, nil
}

// resolveConversation returns "" when the conversation cannot be resolved; the
// turn then runs without a transcript.
func (o *Orchestrator) resolveConversation(ctx context.Context, id tools.Identity) string {
	if o.conversations == nil {
		return ""
	}
	cctx, cancel := context.WithTimeout(ctx, o.writeTimeout)
	defer cancel()
	convID, err := o.conversations.FindOrCreate(cctx, conversation.OwnerKey(id))
	if err != nil {
		log.Printf("WARNING: failed to resolve conversation, continuing without a transcript: %v", err)
		o.metrics.TranscriptWriteFailed()
		return ""
	}
	return convID
}

// toolLabel keeps the cardinality of the tool metrics bounded by the registry.
func toolLabel(name string) string {
	if tools.Known(name) {
		return name
	}
	return unknownToolLabel
}

func validate(messages []api.ChatMessage) error {
	if messages == nil {
		return fmt.Errorf("%w: messages must be a list", ErrInvalidInput)
	}
	for i, m := range messages {
		switch conversation.Role(m.Role) {
		case conversation.RoleUser, conversation.RoleAssistant, conversation.RoleTool:
		default:
			return fmt.Errorf("%w: messages[%d] has unsupported role %q", ErrInvalidInput, i, m.Role)
		}
	}
	return nil
}

func lastUserMessage(messages []api.ChatMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == string(conversation.RoleUser) {
			return messages[i].Content, true
		}
	}
	return "", false
}

// withCallIDs fills in ids for providers that do not assign them, so every
// tool message can be matched to its request.
func withCallIDs(calls []tools.Call) []tools.Call {
	out := make([]tools.Call, len(calls))
	for i, c := range calls {
		if c.ID == "" {
			c.ID = fmt.Sprintf("call_%d", i)
		}
		if c.Type == "" {
			c.Type = tools.ToolTypeFunction
		}
		out[i] = c
	}
	return out
}

func encodeResult(r tools.Result) string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"unencodable tool result"}`
	}
	return string(b)
}
