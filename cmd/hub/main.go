// In file: cmd/hub/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Leogelv/danang-expat-hub-sub000/internal/agent"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/agentconfig"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/conversation"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/llm"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/metrics"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/store"
	"github.com/Leogelv/danang-expat-hub-sub000/internal/tools"
)

// main is the composition root: it loads configuration, initializes all
// services, injects dependencies and starts the server.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	buildInfo := GetBuildInfo()
	log.Printf("🚀 Starting Danang Expat Hub agent | Version: %s | Commit: %s", buildInfo.Version, buildInfo.GitCommit)

	// 1. LOAD CONFIGURATION
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("❌ FATAL: Configuration Error: %v", err)
	}
	log.Println("✅ Configuration loaded.")

	// 2. INITIALIZE SERVICES
	ctx := context.Background()
	db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ FATAL: Could not open the %s database: %v", cfg.DatabaseDriver, err)
	}
	defer db.Close()

	rdb := connectRedis(ctx, cfg.RedisAddr)
	if rdb != nil {
		defer rdb.Close()
	}

	providers, closeProviders, err := initializeProviders(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ FATAL: %v", err)
	}
	defer closeProviders()

	executor, err := tools.NewExecutor(db, cfg.Tunables.ToolTimeout)
	if err != nil {
		log.Fatalf("❌ FATAL: %v", err)
	}
	log.Printf("✅ Tool executor initialized with %d tools.", len(tools.ListTools()))

	m := metrics.New()
	profiler := llm.NewProfiler(rdb)
	orchestrator := agent.New(
		llm.NewRouter(profiler, providers...),
		agentconfig.NewLoader(db, cfg.AgentConfigName),
		conversation.NewStore(db),
		executor,
		agent.Options{
			ProviderTimeout: cfg.Tunables.ProviderTimeout,
			WriteTimeout:    cfg.Tunables.WriteTimeout,
			DrainTimeout:    cfg.Tunables.DrainTimeout,
			Metrics:         m,
		},
	)
	log.Println("✅ All services initialized.")

	// 3. SETUP AND RUN THE WEB SERVER
	gin.SetMode(os.Getenv("GIN_MODE"))
	engine := newEngine(NewChatHandler(orchestrator), NewProfileHandler(profiler), newIPRateLimiter(cfg.Tunables.RateLimit), m, buildInfo)

	// Two model calls plus tool work must fit in the write timeout.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2*cfg.Tunables.ProviderTimeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	runServerWithGracefulShutdown(srv)
}

// newEngine registers every route of the service.
func newEngine(chat *ChatHandler, profiles *ProfileHandler, limiter *ipRateLimiter, m *metrics.Metrics, buildInfo BuildInfo) *gin.Engine {
	engine := gin.Default()

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "build": buildInfo})
	})
	if m != nil {
		engine.GET("/metrics", gin.WrapH(m.Handler()))
	}

	chatRoutes := engine.Group("/api", limiter.Middleware())
	{
		chatRoutes.POST("/chat", chat.HandleChat)
		chatRoutes.POST("/v1/chat", chat.HandleChat)
	}
	if profiles != nil {
		engine.GET("/api/v1/profiles/:model", profiles.HandleGetProfile)
	}
	return engine
}

// connectRedis returns nil when no address is configured or the server does not
// answer; usage profiling is then disabled.
func connectRedis(ctx context.Context, addr string) *redis.Client {
	if addr == "" {
		log.Println("WARNING: REDIS_ADDR is not set, model usage profiling is disabled.")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(pingCtx).Result(); err != nil {
		log.Printf("WARNING: Could not connect to Redis at %s, model usage profiling is disabled: %v", addr, err)
		rdb.Close()
		return nil
	}
	log.Printf("✅ Connected to Redis at %s.", addr)
	return rdb
}

// initializeProviders creates a client for every provider with credentials. The
// OpenAI-compatible provider comes first so it is the fallback of choice.
func initializeProviders(ctx context.Context, cfg *AppConfig) ([]llm.Provider, func(), error) {
	var providers []llm.Provider
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.OpenAIAPIKey != "" {
		client, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		providers = append(providers, llm.Provider{Name: llm.ProviderOpenAI, DefaultModel: cfg.Tunables.OpenAIDefaultModel, Client: client})
	}
	if cfg.GeminiAPIKey != "" {
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, closeAll, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		closers = append(closers, func() { client.Close() })
		providers = append(providers, llm.Provider{Name: llm.ProviderGemini, DefaultModel: cfg.Tunables.GeminiDefaultModel, Client: client})
	}

	log.Printf("✅ %d model providers initialized.", len(providers))
	return providers, closeAll, nil
}

// runServerWithGracefulShutdown handles the server lifecycle.
func runServerWithGracefulShutdown(srv *http.Server) {
	go func() {
		log.Printf("👂 Hub is listening on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Listen error: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Println("❌ Server shutdown failed:", err)
		return
	}

	log.Println("👋 Server exited gracefully.")
}
