package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"msgboard/contract"
	"msgboard/errors"
	"msgboard/internal"
	"msgboard/observability"
	"msgboard/storage"
)

// Server owns the TCP listener and the pool of connection worker
// slots. Messages flow one way: a client connects, writes a payload,
// closes. The relay never writes back.
type Server struct {
	log     *slog.Logger
	cfg     internal.RelayConfig
	writer  storage.DocumentWriter
	monitor *observability.Monitor
	sup     contract.ISupervisor
	lis     net.Listener
}

func NewServer(
	log *slog.Logger,
	cfg internal.RelayConfig,
	writer storage.DocumentWriter,
	monitor *observability.Monitor,
	sup contract.ISupervisor,
) *Server {
	return &Server{
		log:     log,
		cfg:     cfg,
		writer:  writer,
		monitor: monitor,
		sup:     sup,
	}
}

// Start binds the listener and launches the worker slots. It returns
// once the relay is accepting; supervision runs in the background.
func (s *Server) Start(ctx context.Context) error {
	lis, err := listenTCP(s.cfg.Addr(), s.cfg.Backlog)
	if err != nil {
		return fmt.Errorf("binding %s: %w", s.cfg.Addr(), err)
	}
	s.lis = lis

	for i := 0; i < s.cfg.Workers; i++ {
		s.sup.Add(NewConnWorker(s.log, lis, s.writer, s.monitor, s.cfg.ReadTimeout, s.cfg.BufferSize))
	}

	// Worker lifetime is sequenced by Shutdown, not by the caller's
	// cancellation: in-flight connections get the grace period even
	// after the stop signal fires.
	go s.sup.Run(context.WithoutCancel(ctx))

	s.log.Info("Relay listening",
		"address", lis.Addr().String(),
		"workers", s.cfg.Workers,
		"backlog", s.cfg.Backlog,
	)
	return nil
}

// Addr reports the bound address, which differs from the configured
// one when the port was 0.
func (s *Server) Addr() net.Addr {
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Shutdown closes the listener, then waits for every worker slot to
// finish its current connection. Once the context expires the
// remaining slots are canceled and abandoned.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.lis != nil {
		_ = s.lis.Close()
	}

	select {
	case <-s.sup.Done():
		s.log.Info("All worker slots drained")
		return nil
	case <-ctx.Done():
		s.sup.Stop()
		s.log.Error("Grace period expired, abandoning in-flight connections")
		return errors.ErrShutdownTimeout
	}
}
