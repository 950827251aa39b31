package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aschepis/backscratcher/scribe/agent"
	"github.com/aschepis/backscratcher/scribe/config"
	"github.com/aschepis/backscratcher/scribe/conversations"
	"github.com/aschepis/backscratcher/scribe/llm"
	"github.com/aschepis/backscratcher/scribe/llm/transport"
	scribelogger "github.com/aschepis/backscratcher/scribe/logger"
	"github.com/aschepis/backscratcher/scribe/mcp"
	"github.com/aschepis/backscratcher/scribe/migrations"
	"github.com/aschepis/backscratcher/scribe/runtime"
	"github.com/aschepis/backscratcher/scribe/stream"
	"github.com/aschepis/backscratcher/scribe/tools"
	"github.com/aschepis/backscratcher/scribe/ui"
	"github.com/aschepis/backscratcher/scribe/vault"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath     = flag.String("config", "", "Path to config file (default: ~/.scribe/config.yaml)")
		logFile        = flag.String("logfile", "", "Path to log file. If not set, logs to stdout/stderr")
		pretty         = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		dbPath         = flag.String("db", "", "Path to SQLite database file (overrides config)")
		vaultPath      = flag.String("vault", "", "Path to the note vault (overrides config)")
		notePath       = flag.String("note", "", "Note to stream output into (default: scribe/<date>.md)")
		migrationsPath = flag.String("migrations", "./migrations", "Path to database migration files")
		headless       = flag.Bool("headless", false, "Auto-approve gated tool results instead of prompting")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	logger, err := scribelogger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.GetConfigPath()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info().Str("config", cfgPath).Msg("scribed starting")

	// Database and session store
	database := cfg.Database
	if *dbPath != "" {
		database = *dbPath
	}
	database = config.ExpandPath(database)
	if err := os.MkdirAll(filepath.Dir(database), 0o750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	if err := migrations.Run(db, *migrationsPath, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	store := conversations.NewStore(db)

	// Note vault
	root := cfg.Vault.Path
	if *vaultPath != "" {
		root = *vaultPath
	}
	v, err := vault.Open(config.ExpandPath(root))
	if err != nil {
		return fmt.Errorf("failed to open vault: %w", err)
	}

	// Provider resolution and transport
	registry := llm.NewProviderRegistry(cfg.ProviderConfig(), cfg.LLMProviders)
	key, err := registry.Resolve(cfg.Preferences())
	if err != nil {
		return fmt.Errorf("failed to resolve provider: %w", err)
	}
	client, err := transport.New(*key, logger)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}
	logger.Info().Str("provider", key.Provider).Str("model", key.Model).Msg("Resolved LLM provider")

	// Tools
	toolRegistry := tools.NewRegistry(logger)
	toolRegistry.RegisterVaultTools(v)
	toolRegistry.RegisterNotificationTools(store.DB())

	mcpCtx, cancelMCP := context.WithTimeout(context.Background(), 30*time.Second)
	registerMCPServers(mcpCtx, logger, toolRegistry, cfg.MCPServers)
	cancelMCP()

	var gate agent.ApprovalGate
	if *headless {
		gate = ui.AutoApproveGate{}
	} else {
		gate = ui.NewApprovalView(logger)
	}

	// Capability refresh
	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()
	scheduler, err := runtime.NewScheduler(registry, runtime.NewHTTPModelLister(cfg.ProviderConfig()), cfg.LLMProviders, cfg.CapabilityRefresh, logger)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	go scheduler.Start(schedulerCtx)

	// First interrupt aborts the in-flight response; a second one exits.
	token := stream.NewCancellationToken()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("Interrupt received, aborting current response")
		token.Abort()
		<-sigChan
		logger.Info().Msg("Second interrupt received, exiting")
		os.Exit(1)
	}()

	note := *notePath
	if note == "" {
		note = filepath.Join("scribe", time.Now().Format("2006-01-02")+".md")
	}
	sink, err := v.NewNoteSink(note, logger)
	if err != nil {
		return fmt.Errorf("failed to open note sink: %w", err)
	}

	var temperature *float64
	for _, pref := range cfg.LLM {
		if pref.Provider == key.Provider && pref.Temperature != nil {
			temperature = pref.Temperature
			break
		}
	}

	aggregator := agent.NewAggregator(client, sink, token, toolRegistry, gate, store, agent.Config{
		System:      cfg.System,
		Tools:       toolRegistry.Specs(),
		GatedTools:  cfg.GatedTools,
		MaxRounds:   cfg.MaxToolRounds,
		MaxTokens:   cfg.MaxTokens,
		Temperature: temperature,
	}, logger)

	return promptLoop(logger, store, aggregator)
}

// promptLoop reads prompts from stdin and streams each response into the
// note sink. The aggregator persists each exchange, tool activity included,
// to the session store.
func promptLoop(logger zerolog.Logger, store *conversations.Store, aggregator *agent.Aggregator) error {
	ctx := context.Background()

	session, err := store.CreateSession(ctx, time.Now().Format("2006-01-02 15:04"))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	logger.Info().Str("session", session.ID).Msg("Session started")

	fmt.Println("scribe ready. Enter a prompt, or an empty line to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			break
		}

		history, err := store.History(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}

		response, err := aggregator.Respond(ctx, session.ID, prompt, history)
		if err != nil {
			logger.Error().Err(err).Msg("Request failed")
			fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
			continue
		}
		if response.Aborted {
			fmt.Println("(aborted)")
			continue
		}

		fmt.Println(response.Text)
	}
	return scanner.Err()
}

// registerMCPServers starts each configured MCP server and registers its
// tools. A server that fails to start is skipped, not fatal.
func registerMCPServers(ctx context.Context, logger zerolog.Logger, registry *tools.Registry, servers map[string]*config.MCPServerConfig) {
	for name, serverCfg := range servers {
		if serverCfg == nil || serverCfg.Command == "" {
			logger.Warn().Str("server", name).Msg("Skipping MCP server with no command")
			continue
		}

		client, err := mcp.NewStdioClient(logger, serverCfg.Command, serverCfg.Args, serverCfg.Env)
		if err != nil {
			logger.Error().Str("server", name).Err(err).Msg("Failed to create MCP client")
			continue
		}
		if err := client.Start(ctx); err != nil {
			logger.Error().Str("server", name).Err(err).Msg("Failed to start MCP client")
			continue
		}
		if err := registry.RegisterMCPTools(ctx, name, client); err != nil {
			logger.Error().Str("server", name).Err(err).Msg("Failed to register MCP tools")
		}
	}
}
