package main

// @title Snapbuy API
// @version 1.0
// @description Screenshot-to-purchase saga orchestration service
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/snapbuy/snapbuy
// @contact.email support@snapbuy.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /
// @schemes http https

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"

	"github.com/snapbuy/snapbuy/config"
	"github.com/snapbuy/snapbuy/pkg/api"
	"github.com/snapbuy/snapbuy/pkg/api/events"
	"github.com/snapbuy/snapbuy/pkg/api/handlers"
	"github.com/snapbuy/snapbuy/pkg/budget"
	grpcsrv "github.com/snapbuy/snapbuy/pkg/grpc"
	"github.com/snapbuy/snapbuy/pkg/logger"
	"github.com/snapbuy/snapbuy/pkg/metrics"
	"github.com/snapbuy/snapbuy/pkg/saga"
	"github.com/snapbuy/snapbuy/pkg/sink"
	"github.com/snapbuy/snapbuy/pkg/stages"
	"github.com/snapbuy/snapbuy/pkg/telemetry/tracing"
	"github.com/snapbuy/snapbuy/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

func main() {
	flag.Parse()

	// Print help
	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	// Print version
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	// Build CLI overrides map
	overrides := buildOverrides()

	// Load configuration
	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	// Initialize logger with configuration
	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting Snapbuy",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)

	log.Debug("Configuration loaded", "config", cfg.String())

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize tracing
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Token budgets shared by the stage set and the engine.
	budgets := budget.NewRegistry(buildBudgetConfig(cfg))

	// Stage collaborators
	set, fallbacks, err := buildStageSet(cfg, budgets)
	if err != nil {
		log.Error("Failed to build stage set", "error", err)
		os.Exit(1)
	}
	log.Info("Initialized stages", "mode", cfg.Stages.Mode)

	// Initialize run store backend
	var store saga.RunStore
	var badgerDB *badger.DB
	switch cfg.Storage.Type {
	case "badger":
		opts := badger.DefaultOptions(cfg.Storage.Badger.Path).
			WithSyncWrites(cfg.Storage.Badger.SyncWrites).
			WithLogger(nil)
		badgerDB, err = badger.Open(opts)
		if err != nil {
			log.Error("Failed to open Badger database", "error", err, "path", cfg.Storage.Badger.Path)
			os.Exit(1)
		}
		store, err = saga.NewBadgerRunStore(badgerDB)
		if err != nil {
			log.Error("Failed to create Badger run store", "error", err)
			os.Exit(1)
		}
		log.Info("Initialized Badger run store", "path", cfg.Storage.Badger.Path)
	case "memory":
		store = saga.NewMemoryRunStore()
		log.Info("Initialized memory run store")
	default:
		store = saga.NewMemoryRunStore()
		log.Warn("Unknown storage type, using memory run store", "type", cfg.Storage.Type)
	}
	defer func() {
		if badgerDB != nil {
			if err := badgerDB.Close(); err != nil {
				log.Error("Error closing Badger database", "error", err)
			}
		}
	}()

	// Initialize receipt store; Redis keeps checkout idempotent across restarts.
	var receipts saga.ReceiptStore
	if cfg.Storage.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		receipts = saga.NewRedisReceiptStore(client, cfg.Stages.Checkout.ReceiptTTL)
		log.Info("Initialized Redis receipt store", "address", cfg.Storage.Redis.Address)
	} else {
		receipts = saga.NewMemoryReceiptStore()
		log.Info("Initialized memory receipt store")
	}

	// Initialize metrics manager
	metricsCfg := metrics.Config{
		Enabled:              cfg.Metrics.Enabled,
		Port:                 cfg.Metrics.Port,
		Path:                 cfg.Metrics.Path,
		RunDurationBuckets:   metrics.DefaultConfig().RunDurationBuckets,
		StageDurationBuckets: metrics.DefaultConfig().StageDurationBuckets,
		HTTPDurationBuckets:  metrics.DefaultConfig().HTTPDurationBuckets,
	}
	metricsManager := metrics.NewManager(metricsCfg)
	budgets.SetRecorder(metricsManager)

	// Start metrics server if enabled
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Trace sink: JSONL file plus the in-process broadcaster feeding websockets.
	broadcaster := events.NewBroadcaster()
	sinkOpts := []sink.Option{
		sink.WithBroadcaster(broadcaster),
		sink.WithBufferSize(cfg.Sink.BufferSize),
		sink.WithMaxSamples(cfg.Sink.MaxSamples),
		sink.WithSinkLogger(log),
	}
	var traceFile *os.File
	if cfg.Sink.Path != "" {
		traceFile, err = os.OpenFile(cfg.Sink.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Error("Failed to open trace file", "error", err, "path", cfg.Sink.Path)
			os.Exit(1)
		}
		sinkOpts = append(sinkOpts, sink.WithWriter(traceFile))
		log.Info("Writing traces", "path", cfg.Sink.Path)
	}
	trace := sink.New(sinkOpts...)

	// Assemble the saga engine.
	engine := saga.NewEngine(set,
		saga.WithFallbacks(fallbacks),
		saga.WithLogger(log),
		saga.WithStore(store),
		saga.WithReceiptStore(receipts),
		saga.WithMetrics(metricsManager),
		saga.WithSink(trace),
		saga.WithPolicy(saga.CompensationPolicy{
			MaxCompensations:   cfg.Saga.Compensation.MaxCompensations,
			TopK:               cfg.Saga.Compensation.TopK,
			PriceWindowPct:     cfg.Saga.Compensation.PriceWindowPct,
			ExtraLatencyBudget: cfg.Saga.Compensation.ExtraLatencyBudget,
		}),
		saga.WithStageTimeouts(saga.StageTimeouts{
			Capture:  cfg.Saga.Timeouts.Capture,
			Confirm:  cfg.Saga.Timeouts.Confirm,
			Sourcing: cfg.Saga.Timeouts.Sourcing,
			Trust:    cfg.Saga.Timeouts.Trust,
			Checkout: cfg.Saga.Timeouts.Checkout,
		}),
		saga.WithBudgets(budgets),
		saga.WithMaxConcurrentRuns(cfg.Saga.MaxConcurrentRuns),
	)

	// Initialize HTTP server with handlers
	runHandler := handlers.NewRunHandler(engine, trace, log)
	healthHandler := handlers.NewHealthHandler(engine)
	wsHandler := handlers.NewWebSocketHandler(log, handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
	})

	// Republish sink events to websocket subscribers.
	eventCh := broadcaster.Subscribe(cfg.Sink.BufferSize)
	go func() {
		for ev := range eventCh {
			if err := wsHandler.Broadcast(handlers.EventMessage{
				Type:      ev.Type,
				Timestamp: ev.Timestamp,
				Payload:   ev.Payload,
			}); err != nil {
				log.Debug("Websocket broadcast failed", "error", err)
			}
		}
	}()

	apiHandlers := &api.Handlers{
		Run:       runHandler,
		Health:    healthHandler,
		WebSocket: wsHandler,
	}
	if metricsManager.Enabled() {
		apiHandlers.Metrics = metricsManager
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	// Start HTTP server in a separate goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	// Optional gRPC endpoint for infrastructure health probes.
	var grpcServer *grpcsrv.Server
	if cfg.Server.GRPC.Enabled {
		grpcServer, err = grpcsrv.New(cfg.Server.GRPC.ToGRPCConfig(), log)
		if err != nil {
			log.Error("Failed to create gRPC server", "error", err)
			os.Exit(1)
		}
		if err := grpcServer.Start(); err != nil {
			log.Error("Failed to start gRPC server", "error", err)
			os.Exit(1)
		}
	}

	// Watch the config file for hot-reloadable settings.
	var watcher *config.Watcher
	if *configPath != "" {
		watcher, err = config.NewWatcher(*configPath, config.NewLoader())
		if err != nil {
			log.Warn("Config watcher unavailable", "error", err)
		} else {
			current := config.ExtractHotReloadable(cfg)
			watcher.OnChange(func(next *config.Config) {
				reloaded := config.ExtractHotReloadable(next)
				if !current.Changed(reloaded) {
					return
				}
				log.Info("Applying hot-reloaded configuration")
				logger.SetLevel(logger.ParseLevel(reloaded.LogLevel))
				engine.SetPolicy(saga.CompensationPolicy{
					MaxCompensations:   reloaded.MaxCompensations,
					TopK:               reloaded.TopK,
					PriceWindowPct:     reloaded.PriceWindowPct,
					ExtraLatencyBudget: cfg.Saga.Compensation.ExtraLatencyBudget,
				})
				current = reloaded
			})
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					log.Warn("Config watcher stopped", "error", err)
				}
			}()
		}
	}

	log.Info("Snapbuy is running",
		"http_port", cfg.Server.Port,
		"grpc_enabled", cfg.Server.GRPC.Enabled,
		"metrics_port", cfg.Metrics.Port,
	)
	log.Info("Press Ctrl+C to stop")

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			log.Error("Error stopping config watcher", "error", err)
		}
	}

	// Shutdown HTTP server first so no new runs arrive.
	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	if grpcServer != nil {
		grpcServer.SetServing(false)
		log.Info("Shutting down gRPC server")
		if err := grpcServer.Stop(shutdownCtx); err != nil {
			log.Error("Error shutting down gRPC server", "error", err)
		}
	}

	wsHandler.Close()
	trace.Close()
	broadcaster.Close()

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("Error shutting down tracing", "error", err)
	}

	log.Info("Snapbuy stopped gracefully")
}

// buildBudgetConfig merges configured per-stage caps over the stock budgets.
func buildBudgetConfig(cfg *config.Config) budget.Config {
	bc := budget.DefaultConfig()
	if cfg.Budget.Policy != "" {
		bc.Policy = budget.Action(cfg.Budget.Policy)
	}
	for stage, tokens := range cfg.Budget.Caps {
		sb, ok := bc.Stages[stage]
		if !ok {
			sb = budget.StageBudget{EstTokens: tokens / 2}
		}
		sb.CapTokens = tokens
		bc.Stages[stage] = sb
	}
	return bc
}

// buildStageSet wires the five stage contracts according to the configured
// mode. Remote mode points every contract at HTTP stage services and binds
// the heuristic implementations as their deterministic fallbacks; heuristic
// mode runs everything in-process with no separate fallback.
func buildStageSet(cfg *config.Config, budgets *budget.Registry) (set, fallbacks stages.Set, err error) {
	switch cfg.Stages.Mode {
	case "remote":
		rc := cfg.Stages.Remote
		remote := stages.NewRemote(stages.RemoteConfig{
			VisionURL:         rc.CaptureURL,
			IntentURL:         rc.ConfirmURL,
			SourcingURL:       rc.SourcingURL,
			TrustURL:          rc.TrustURL,
			CheckoutURL:       rc.CheckoutURL,
			RequestsPerSecond: rc.RequestsPerSecond,
			Burst:             rc.Burst,
		}, &http.Client{Timeout: 30 * time.Second}, budgets)
		return stages.Set{
			Vision:   remote,
			Intent:   remote,
			Sourcing: remote,
			Trust:    remote,
			Checkout: remote,
		}, heuristicStageSet(cfg), nil
	case "heuristic", "":
		return heuristicStageSet(cfg), stages.Set{}, nil
	default:
		return stages.Set{}, stages.Set{}, fmt.Errorf("unknown stage mode %q", cfg.Stages.Mode)
	}
}

func heuristicStageSet(cfg *config.Config) stages.Set {
	return stages.Set{
		Vision:   stages.NewHeuristicVision(),
		Intent:   stages.NewHeuristicIntent(),
		Sourcing: stages.NewCatalogSourcing(nil, cfg.Stages.SourcingTopK),
		Trust:    stages.NewHeuristicTrust(nil),
		Checkout: stages.NewLocalCheckout(stages.CheckoutConfig{
			MaxAmountUSD:      cfg.Stages.Checkout.MaxAmountUSD,
			BlockedVendors:    cfg.Stages.Checkout.BlockedVendors,
			VelocityThreshold: cfg.Stages.Checkout.VelocityThreshold,
		}),
	}
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Snapbuy - Purchase Saga Orchestration Engine\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Snapbuy - Screenshot-to-purchase saga orchestration service\n\n")
	fmt.Printf("Usage: snapbuy [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  snapbuy                                   # Run with default config\n")
	fmt.Printf("  snapbuy -config config.yaml               # Use specific config file\n")
	fmt.Printf("  snapbuy -port 9090 -log-level debug       # Override specific options\n")
	fmt.Printf("  snapbuy -version                          # Print version info\n")
}
