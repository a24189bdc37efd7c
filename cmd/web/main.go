package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	errors2 "msgboard/errors"
	"msgboard/ingress"
	"msgboard/internal"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Web server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the HTTP ingress to the relay forwarder and blocks until a
// termination signal or a listener failure. The web process never
// touches the store: its only downstream is the relay's TCP port.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := internal.LoadWebConfig()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. One-shot forwarder & route table
	forwarder := ingress.NewForwarder(logger, config.RelayAddr(), config.DialTimeout, config.WriteTimeout)
	server := ingress.NewServer(logger, config, forwarder)

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Use an error channel to capture ListenAndServe() issues asynchronously.
	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 4. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 5. Final Cleanup (Graceful Shutdown)
	// In-flight requests get the grace period; each holds at most one
	// short-lived TCP connection to the relay.
	graceCtx, cancel := context.WithTimeout(context.Background(), config.GracePeriod)
	defer cancel()
	if err := server.Shutdown(graceCtx); err != nil {
		return exitRuntime, fmt.Errorf("%w: %v", errors2.ErrShutdownTimeout, err)
	}

	logger.Info("Web server stopped cleanly")
	return exitOK, nil
}
