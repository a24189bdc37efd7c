package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	errors2 "msgboard/errors"
	"msgboard/internal"
	"msgboard/observability"
	"msgboard/relay"
	"msgboard/runtime/workers"
	"msgboard/storage"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle the two-phase graceful shutdown (listener, then pool).
func run() (int, error) {
	// 1. Configuration & Logger
	// Validation happens before anything binds: a bad configuration must
	// never leave a half-started process behind.
	_ = godotenv.Load()
	config, err := internal.LoadRelayConfig()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx := context.Background()

	// 2. Document store backend
	dialer, db, err := openStore(ctx, config, logger)
	if err != nil {
		return exitRuntime, err
	}
	if db != nil {
		defer func() {
			// Defer ensures the database lock is released and buffers are flushed before the function returns.
			logger.Info("Closing BadgerDB...")
			_ = db.Close()
		}()
	}

	// 3. Persistence pool & client
	// NewPool warms MinPoolSize connections, so an unreachable store is
	// caught here instead of on the first submission.
	pool, err := storage.NewPool(ctx, dialer, storage.PoolConfig{
		MinSize:          config.MinPoolSize,
		MaxSize:          config.MaxPoolSize,
		MaxIdleTime:      config.MaxIdleTime,
		WaitQueueTimeout: config.WaitQueueTimeout,
	}, logger)
	if err != nil {
		if errors.Is(err, errors2.ErrInvalidConfig) {
			return exitConfig, err
		}
		return exitRuntime, fmt.Errorf("store connection failed: %w", err)
	}

	client := storage.NewClient(pool, logger)
	monitor := observability.NewMonitor()

	if db != nil && logger.Enabled(ctx, slog.LevelDebug) {
		debugPort := 8081
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s", debugPort, endpoint)
		logger.Info("Debug board inspector available", "url", url)
		internal.StartDebugServer(db, debugPort, endpoint, internal.MessageMapper, relayStats(monitor, pool))
	}

	// 4. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Relay server with its pool of connection workers
	connSup := workers.NewSupervisor(logger, config.RestartInterval)
	server := relay.NewServer(logger, config, client, monitor, connSup)
	if err := server.Start(ctx); err != nil {
		_ = pool.Close(ctx)
		return exitRuntime, err
	}

	// 6. Background telemetry under its own supervisor: it dies with the
	// signal context while connection workers get the grace period.
	telemetrySup := workers.NewSupervisor(logger, config.RestartInterval)
	telemetrySup.Add(workers.NewTelemetryWorker(logger, monitor, pool, config.MetricInterval))
	go telemetrySup.Run(ctx)

	// 7. Wait for Stop
	// Runtime errors never escape a connection worker, so the only way
	// out is the termination signal.
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// 8. Final Cleanup (Graceful Shutdown)
	// Listener first, then in-flight workers up to the grace period,
	// then the persistence pool.
	code := exitOK
	var shutdownErr error

	graceCtx, cancelGrace := context.WithTimeout(context.Background(), config.GracePeriod)
	defer cancelGrace()
	if err := server.Shutdown(graceCtx); err != nil {
		code = exitRuntime
		shutdownErr = err
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), config.GracePeriod)
	defer cancelDrain()
	if err := pool.Close(drainCtx); err != nil {
		logger.Error("Pool drain failed", "error", err)
		if code == exitOK {
			code = exitRuntime
			shutdownErr = err
		}
	}

	if code == exitOK {
		logger.Info("Relay stopped cleanly")
	}
	return code, shutdownErr
}

// openStore builds the dialer for the configured backend. The badger
// handle is returned so run() can expose the debug inspector over it
// and close it last; the mongo backend owns nothing process-wide.
func openStore(ctx context.Context, config internal.RelayConfig, logger *slog.Logger) (storage.Dialer, *badger.DB, error) {
	switch config.StoreBackend {
	case "badger":
		db, err := badger.Open(buildBadgerOpts(ctx, config, logger))
		if err != nil {
			return nil, nil, fmt.Errorf("database opening failed: %w", err)
		}
		return storage.NewBadgerDialer(db), db, nil
	default:
		return storage.NewMongoDialer(config.MongoURI, config.Database, config.Collection), nil, nil
	}
}

func buildBadgerOpts(ctx context.Context, config internal.RelayConfig, logger *slog.Logger) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// relayStats feeds the inspector header with live counters.
func relayStats(monitor *observability.Monitor, pool *storage.Pool) internal.StatsProvider {
	return func() map[string]any {
		snap := monitor.Snapshot()
		poolStats := pool.Stats()
		return map[string]any{
			"Accepted":    snap.Accepted,
			"Persisted":   snap.Persisted,
			"Rejected":    snap.Rejected,
			"TimedOut":    snap.TimedOut,
			"Dropped":     snap.Dropped,
			"Pool open":   poolStats.Open,
			"Pool in use": poolStats.InUse,
		}
	}
}
