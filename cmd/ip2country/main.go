package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TomasB/ip2country/internal/config"
	"github.com/TomasB/ip2country/internal/data"
	"github.com/TomasB/ip2country/internal/geoip"
	"github.com/TomasB/ip2country/internal/handler/check"
	"github.com/TomasB/ip2country/internal/handler/country"
	grpchandler "github.com/TomasB/ip2country/internal/handler/grpc"
	"github.com/TomasB/ip2country/internal/handler/health"
	"github.com/TomasB/ip2country/internal/handler/stats"
	"github.com/TomasB/ip2country/internal/storage"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var Version = "0.1.0"

func main() {
	configPath := os.Getenv("IP2COUNTRY_CONFIG")
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}

	command := "serve"
	var args []string
	if len(os.Args) > 1 {
		command = os.Args[1]
		args = os.Args[2:]
	}

	var err error
	switch command {
	case "serve":
		err = runServe(configPath)
	case "lookup":
		err = runLookup(configPath, args)
	case "visitor":
		err = runVisitor(configPath, args)
	case "countries":
		err = runCountries()
	case "selfcheck":
		err = runSelfCheck(configPath)
	case "db-status":
		err = runDBStatus(configPath)
	case "stats":
		err = runStats(configPath, args)
	case "cleanup":
		err = runCleanup(configPath)
	case "config":
		err = runConfig(configPath, args)
	case "version":
		fmt.Printf("ip2country version %s\n", Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fatal("%v", err)
	}
}

func printUsage() {
	fmt.Println(`Usage: ip2country [command] [options]

Commands:
  serve                        Run HTTP and gRPC servers (default)
  lookup [-code] <addr>        Resolve an address
  visitor [-country XX] <addr> Resolve a visitor country with default fallback
  countries                    List selectable countries
  selfcheck                    Resolve well known hosts and compare
  db-status                    Show database file metadata
  stats [-d N] [-recent N]     Show lookup statistics (last N days, default 7)
  cleanup                      Manually run retention cleanup
  config validate              Validate configuration
  config show                  Show active configuration
  version                      Show version
  help                         Show this help

Environment:
  IP2COUNTRY_CONFIG            Path to config file (default: /etc/ip2country/config.yaml)`)
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize structured logging
	logLevel := getLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("service starting", "log_level", logLevel.String(), "version", Version)

	settings, err := cfg.Settings()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	engine := geoip.New(settings, geoip.WithLogger(logger))
	defer engine.Close()

	if engine.DatabaseModeEnabled() {
		slog.Info("database mode", "paths", cfg.DatabasePaths())
	} else {
		slog.Info("lookup command mode", "command", cfg.LookupCommand, "exec_enabled", cfg.ExecEnabled)
	}

	watcher, err := data.NewWatcher(cfg.DatabasePaths(), logger)
	if err != nil {
		return fmt.Errorf("failed to watch database files: %w", err)
	}
	defer watcher.Close()

	checks := []health.Check{{Name: "databases", Fn: watcher.Ready}}

	var store *storage.Storage
	var recorder country.Recorder
	if cfg.StoragePath != "" {
		store, err = storage.New(cfg.StoragePath)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()
		recorder = store
		checks = append(checks, health.Check{Name: "storage", Fn: store.Ping})
		slog.Info("lookup log enabled", "path", cfg.StoragePath, "retention_days", cfg.RetentionDays)
	}

	// Set Gin mode based on log level
	if logLevel == slog.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(ginLogger(logger))
	router.Use(gin.Recovery())

	healthHandler := health.NewHandler(checks...)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	api := router.Group("/api/v1")
	{
		api.POST("/check", check.NewHandler(engine).Check)
		country.NewHandler(engine, recorder).Register(api)
		if store != nil {
			api.GET("/stats", stats.NewHandler(store).Stats)
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	grpcServer := grpc.NewServer()
	grpchandler.Register(grpcServer, grpchandler.NewHandler(engine))
	healthServer := grpchealth.NewServer()
	healthServer.SetServingStatus(grpchandler.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port %s: %w", cfg.GRPCPort, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("grpc server started", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(grpcLis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		watcher.Run(gctx)
		return nil
	})

	if store != nil {
		g.Go(func() error {
			runRetention(gctx, store, cfg.RetentionDays, logger)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("service shutting down")
		healthServer.Shutdown()

		// Graceful shutdown with 30s timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		grpcServer.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("service stopped with error", "error", err)
		return err
	}

	slog.Info("service stopped")
	return nil
}

// runRetention deletes expired lookup log rows once at start and then daily.
func runRetention(ctx context.Context, store *storage.Storage, days int, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		deleted, err := store.Cleanup(days)
		if err != nil {
			logger.Error("retention cleanup failed", "error", err)
		} else if deleted > 0 {
			logger.Info("retention cleanup completed", "deleted", deleted)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// getLogLevel converts string log level to slog.Level
func getLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ginLogger creates a Gin middleware that logs using slog
func ginLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		attrs := []any{
			"method", method,
			"path", path,
			"status", statusCode,
			"client_ip", c.ClientIP(),
			"duration_ms", duration.Milliseconds(),
		}

		if len(c.Errors) > 0 {
			logger.Error("request completed with errors", append(attrs, "errors", c.Errors.String())...)
		} else if statusCode >= 500 {
			logger.Error("request completed", attrs...)
		} else if statusCode >= 400 {
			logger.Warn("request completed", attrs...)
		} else {
			logger.Info("request completed", attrs...)
		}
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
