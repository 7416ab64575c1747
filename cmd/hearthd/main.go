package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hearthlabs/hearth/config"
	"github.com/hearthlabs/hearth/devices"
	hearthlogger "github.com/hearthlabs/hearth/logger"
	"github.com/hearthlabs/hearth/memory"
	"github.com/hearthlabs/hearth/migrations"
	"github.com/hearthlabs/hearth/oracle"
	"github.com/hearthlabs/hearth/oracle/anthropic"
	"github.com/hearthlabs/hearth/oracle/ollama"
	"github.com/hearthlabs/hearth/oracle/openai"
	"github.com/hearthlabs/hearth/profiler"
	"github.com/hearthlabs/hearth/runtime"
	"github.com/hearthlabs/hearth/server"
	mongostore "github.com/hearthlabs/hearth/store/mongo"
	"github.com/hearthlabs/hearth/store/sqlite"
	"github.com/hearthlabs/hearth/trigger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		listenAddr = flag.String("listen", "", "TCP address to listen on (overrides config)")
		configPath = flag.String("config", "", "Path to config file (default: ~/.hearth/hearth.yaml)")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stdout/stderr")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		dbPath     = flag.String("db", "", "Path to SQLite database file (overrides config)")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	logger, err := hearthlogger.InitWithOptions(*logFile, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.GetServerConfigPath()
	}
	cfg, err := config.LoadServerConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}
	if *listenAddr != "" {
		cfg.Server.Listen = *listenAddr
	}
	if *dbPath != "" {
		cfg.Store.SQLite.Path = *dbPath
	}

	logger.Info().
		Str("listen", cfg.Server.Listen).
		Str("store", cfg.Store.Driver).
		Str("devices", cfg.Devices.Source).
		Str("oracle", cfg.Oracle.Provider).
		Msg("hearthd starting")

	pollInterval, err := time.ParseDuration(cfg.Poller.Interval)
	if err != nil {
		return fmt.Errorf("invalid poller.interval %q: %w", cfg.Poller.Interval, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---------------------------
	// 1. Open Store
	// ---------------------------

	var (
		triggerStore  trigger.Store
		memoryStore   memory.Store
		storeMongo    *mongo.Client
		storeMongoURI string
	)
	switch cfg.Store.Driver {
	case "sqlite", "":
		path := config.ExpandPath(cfg.Store.SQLite.Path)
		logger.Info().Str("path", path).Msg("Opening SQLite store")
		db, err := sqlite.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close() //nolint:errcheck // No remedy for db close errors

		if err := migrations.RunMigrations(db, cfg.Store.SQLite.Migrations, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		triggerStore = sqlite.NewTriggerStore(db, logger)
		memoryStore = sqlite.NewMemoryStore(db, logger)

	case "mongo":
		logger.Info().Str("database", cfg.Store.Mongo.Database).Msg("Connecting to MongoDB store")
		client, err := mongostore.Connect(ctx, cfg.Store.Mongo.URI)
		if err != nil {
			return fmt.Errorf("failed to connect to mongodb: %w", err)
		}
		defer func() {
			disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer disconnectCancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Warn().Err(err).Msg("Failed to disconnect from mongodb")
			}
		}()

		db := client.Database(cfg.Store.Mongo.Database)
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			return fmt.Errorf("failed to ensure mongodb indexes: %w", err)
		}
		triggerStore = mongostore.NewTriggerStore(db, logger)
		memoryStore = mongostore.NewMemoryStore(db, logger)
		storeMongo = client
		storeMongoURI = cfg.Store.Mongo.URI

	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	// ---------------------------
	// 2. Device State Source
	// ---------------------------

	var source devices.Source
	switch cfg.Devices.Source {
	case "http", "":
		token := os.Getenv(cfg.Devices.HTTP.TokenEnv)
		if cfg.Devices.HTTP.BaseURL == "" {
			return fmt.Errorf("devices.http.base_url is required for the http source")
		}
		source = devices.NewHTTPSource(cfg.Devices.HTTP.BaseURL, token,
			time.Duration(cfg.Devices.HTTP.Timeout)*time.Second, logger)

	case "mongo":
		uri := cfg.Devices.Mongo.URI
		if uri == "" {
			uri = cfg.Store.Mongo.URI
		}
		dbName := cfg.Devices.Mongo.Database
		if dbName == "" {
			dbName = cfg.Store.Mongo.Database
		}

		// Reuse the store's connection when it points at the same server.
		if storeMongo != nil && uri == storeMongoURI {
			source = devices.NewMongoSource(storeMongo.Database(dbName), cfg.Devices.Mongo.Collection, logger)
		} else {
			client, err := mongostore.Connect(ctx, uri)
			if err != nil {
				return fmt.Errorf("failed to connect to device-state mongodb: %w", err)
			}
			defer func() {
				disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer disconnectCancel()
				if err := client.Disconnect(disconnectCtx); err != nil {
					logger.Warn().Err(err).Msg("Failed to disconnect device-state mongodb")
				}
			}()
			source = devices.NewMongoSource(client.Database(dbName), cfg.Devices.Mongo.Collection, logger)
		}

	default:
		return fmt.Errorf("unknown devices source %q", cfg.Devices.Source)
	}

	// ---------------------------
	// 3. Oracle (Embeddings + Summaries)
	// ---------------------------

	var embedOracle, summaryOracle oracle.Oracle
	switch cfg.Oracle.Provider {
	case "ollama", "":
		cli, err := ollama.New(cfg.Oracle.Ollama.Host, cfg.Oracle.EmbedModel, cfg.Oracle.SummaryModel,
			time.Duration(cfg.Oracle.Ollama.Timeout)*time.Second)
		if err != nil {
			return fmt.Errorf("failed to create ollama oracle: %w", err)
		}
		embedOracle, summaryOracle = cli, cli

	case "openai":
		cli, err := openai.New(cfg.Oracle.OpenAI.APIKey, cfg.Oracle.OpenAI.BaseURL,
			cfg.Oracle.OpenAI.Organization, cfg.Oracle.EmbedModel, cfg.Oracle.SummaryModel)
		if err != nil {
			return fmt.Errorf("failed to create openai oracle: %w", err)
		}
		embedOracle, summaryOracle = cli, cli

	case "anthropic":
		// Anthropic has no embeddings API, so the memory index stays on Ollama.
		summarizer, err := anthropic.New(cfg.Oracle.Anthropic.APIKey, cfg.Oracle.SummaryModel)
		if err != nil {
			return fmt.Errorf("failed to create anthropic oracle: %w", err)
		}
		embedder, err := ollama.New(cfg.Oracle.Ollama.Host, cfg.Oracle.EmbedModel, "",
			time.Duration(cfg.Oracle.Ollama.Timeout)*time.Second)
		if err != nil {
			return fmt.Errorf("failed to create ollama embedder: %w", err)
		}
		embedOracle, summaryOracle = embedder, summarizer

	default:
		return fmt.Errorf("unknown oracle provider %q", cfg.Oracle.Provider)
	}

	// ---------------------------
	// 4. Core Services
	// ---------------------------

	registry := trigger.NewRegistry(triggerStore, logger)
	bank := memory.NewBank(memoryStore, embedOracle, logger)
	prof := profiler.New(bank, summaryOracle, logger)

	// ---------------------------
	// 5. Dispatcher + MCP Forwarding
	// ---------------------------

	var forwarder runtime.ActionForwarder
	if cfg.Dispatch.MCP.Command != "" {
		f, err := runtime.NewMCPForwarder(ctx, cfg.Dispatch.MCP.Command, cfg.Dispatch.MCP.Tool,
			cfg.Dispatch.MCP.Args, cfg.Dispatch.MCP.Env, logger)
		if err != nil {
			return fmt.Errorf("failed to create MCP forwarder: %w", err)
		}
		defer f.Close() //nolint:errcheck // No remedy for close errors at shutdown
		forwarder = f
	}
	dispatcher := runtime.NewDispatcher(cfg.Dispatch.QueueSize, cfg.Dispatch.Notify, forwarder, logger)

	// ---------------------------
	// 6. Background Loops
	// ---------------------------

	poller := runtime.NewPoller(registry, source, dispatcher, pollInterval, logger)
	go poller.Start(ctx)

	if cfg.Profiles.RefreshSchedule != "" {
		job, err := runtime.NewProfileJob(prof, cfg.Profiles.RefreshSchedule, logger)
		if err != nil {
			return fmt.Errorf("invalid profiles.refresh_schedule: %w", err)
		}
		go job.Start(ctx)
	}

	// ---------------------------
	// 7. HTTP Server
	// ---------------------------

	srv := server.New(server.Config{
		Listen: cfg.Server.Listen,
		Logger: logger,
	}, registry, bank, prof, dispatcher, poller)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("listen", cfg.Server.Listen).Msg("Starting HTTP server")
		serverErr <- srv.Start()
	}()

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server shutdown was not clean")
		}
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info().Msg("hearthd shutdown complete")
	return nil
}
