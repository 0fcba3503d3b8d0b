package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/stockwise-ai/server/internal/agent/graph"
	"github.com/stockwise-ai/server/internal/agent/graph/conversations"
	"github.com/stockwise-ai/server/internal/agent/model"
	"github.com/stockwise-ai/server/internal/agent/repo"
	"github.com/stockwise-ai/server/internal/agent/session"
	"github.com/stockwise-ai/server/internal/core"
	"github.com/stockwise-ai/server/internal/handler"
	"github.com/stockwise-ai/server/internal/inventory"
	"github.com/stockwise-ai/server/internal/server"
	"github.com/stockwise-ai/server/internal/shell"
	logx "github.com/stockwise-ai/server/pkg/logger"
	pkgredis "github.com/stockwise-ai/server/pkg/redis"
)

const version = "0.1.0"

// AppConfig defines all configurable parameters of the assistant,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis   pkgredis.Config
	Storage model.StorageConfig

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Analyzer     model.AnalyzerModelConfig
	SQL          model.SQLModelConfig
	Agent        model.AgentConfig
	Conversation model.ConversationConfig

	// HTTP shell
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	CORSOrigins string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
}

func main() {
	mode := flag.String("mode", "cli", "Front end: cli, http or mcp")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load .env file
	envErr := godotenv.Load(".env")

	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		logx.Init()
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}

	// stdout belongs to the conversation in cli and mcp modes
	var logOut io.Writer = os.Stdout
	if *mode != "http" {
		logOut = os.Stderr
	}
	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(envCfg.Environment),
		Level:       envCfg.LogLevel,
		Writer:      logOut,
	})
	if envErr != nil {
		logx.Warn().Err(envErr).Msg("Could not load .env file")
	}

	store, err := inventory.Open(envCfg.Storage.DatabasePath)
	if err != nil {
		logx.Fatal().Err(err).Str("path", envCfg.Storage.DatabasePath).Msg("Failed to open inventory database")
	}
	defer store.Close()

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		logx.Fatal().Err(err).Str("ttl", envCfg.Conversation.TTL).Msg("Invalid CONVERSATION_TTL")
	}

	conversationRepo, closeRepo, err := newConversationRepo(ctx, envCfg, ttl)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise conversation store")
	}
	defer closeRepo()

	mm := conversations.NewMessagesManager(conversationRepo, 0)
	runner, err := graph.BuildAgentGraph(ctx, graph.Config{
		APIKey:          envCfg.APIKey,
		BaseURL:         envCfg.BaseURL,
		AnalyzerModel:   envCfg.Analyzer,
		SQLModel:        envCfg.SQL,
		Agent:           envCfg.Agent,
		Store:           store,
		MessagesManager: mm,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build agent graph")
	}
	sessions := session.NewManager(runner, mm, envCfg.Agent.MaxClarifications, session.WithIdleTimeout(ttl))

	switch *mode {
	case "cli":
		if err := shell.NewCLI(sessions, os.Stdin, os.Stdout).Run(ctx); err != nil {
			logx.Fatal().Err(err).Msg("Console error")
		}
	case "http":
		runHTTP(ctx, envCfg, handler.NewChatHandler(sessions, store))
	case "mcp":
		logx.Info().Msg("MCP server starting (stdio)")
		if err := server.New(sessions, store, version).Run(ctx, &mcp.StdioTransport{}); err != nil {
			logx.Fatal().Err(err).Msg("MCP server error")
		}
	default:
		logx.Fatal().Str("mode", *mode).Msg("Unknown mode (use cli, http or mcp)")
	}
}

// newConversationRepo selects where conversation checkpoints live.
func newConversationRepo(ctx context.Context, cfg AppConfig, ttl time.Duration) (model.ConversationRepository, func(), error) {
	if cfg.Conversation.Store != "redis" {
		return repo.NewMemoryConversationRepository(), func() {}, nil
	}

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	logx.Info().Dur("ttl", ttl).Msg("Connected to Redis conversation store")
	return repo.NewRedisConversationRepository(rdb, ttl), func() { rdb.Close() }, nil
}

func runHTTP(ctx context.Context, cfg AppConfig, h *handler.ChatHandler) {
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      handler.NewRouter(h, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logx.Error().Err(err).Msg("HTTP shutdown failed")
		}
	}()

	logx.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logx.Fatal().Err(err).Msg("HTTP server error")
	}
}
