package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"msgboard/domain"
	"msgboard/ingress"
	"msgboard/internal"
	"msgboard/observability"
	"msgboard/relay"
	"msgboard/runtime/workers"
	"msgboard/storage"
)

// BaseBoardSuite boots the complete pipeline in-process: an HTTP
// ingress in front of a real relay listener, backed by a badger store
// in a temp dir. Both network hops cross real loopback sockets.
type BaseBoardSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseBoardSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

// Step prints a colorized header for a scenario step in logs
func (s *BaseBoardSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Board is one running stack: web ingress in front of a relay in
// front of a badger store.
type Board struct {
	DB        *badger.DB
	Web       *httptest.Server
	RelayAddr string

	s     *BaseBoardSuite
	pool  *storage.Pool
	relay *relay.Server
}

// BootBoard starts a full stack on random loopback ports and registers
// its teardown with the test.
func (s *BaseBoardSuite) BootBoard() *Board {
	req := s.Require()
	log := logs.GetLoggerFromLevel(slog.LevelWarn)

	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)

	pool, err := storage.NewPool(context.Background(), storage.NewBadgerDialer(db), storage.PoolConfig{
		MinSize:          1,
		MaxSize:          5,
		MaxIdleTime:      time.Minute,
		WaitQueueTimeout: time.Second,
	}, log)
	req.NoError(err)

	relayCfg := internal.RelayConfig{
		Host:        "127.0.0.1",
		Port:        0,
		ReadTimeout: s.Config.ReadTimeout,
		Backlog:     10,
		BufferSize:  1024,
		Workers:     s.Config.Workers,
	}
	server := relay.NewServer(log, relayCfg, storage.NewClient(pool, log),
		observability.NewMonitor(), workers.NewSupervisor(log, 50*time.Millisecond))
	req.NoError(server.Start(context.Background()))
	relayAddr := server.Addr().String()

	webCfg := internal.WebConfig{
		Host:         "127.0.0.1",
		Port:         3000,
		RelayHost:    "127.0.0.1",
		RelayPort:    5000,
		DialTimeout:  time.Second,
		WriteTimeout: time.Second,
		GracePeriod:  time.Second,
		LogLevel:     "WARN",
	}
	forwarder := ingress.NewForwarder(log, relayAddr, time.Second, time.Second)
	web := httptest.NewServer(ingress.NewServer(log, webCfg, forwarder).Handler())

	board := &Board{
		DB:        db,
		Web:       web,
		RelayAddr: relayAddr,
		s:         s,
		pool:      pool,
		relay:     server,
	}
	s.T().Cleanup(board.Stop)
	return board
}

// Stop tears the stack down front to back: web first, then the relay
// with a grace period, then the store.
func (b *Board) Stop() {
	b.Web.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = b.relay.Shutdown(ctx)
	_ = b.pool.Close(ctx)
	_ = b.DB.Close()
}

// StopRelay shuts the relay down alone, leaving the web ingress
// talking to a dead socket.
func (b *Board) StopRelay() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return b.relay.Shutdown(ctx)
}

// SubmitForm posts a submission through the ingress without following
// the success redirect.
func (b *Board) SubmitForm(form string) *http.Response {
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Post(b.Web.URL+"/message", "application/x-www-form-urlencoded",
		strings.NewReader(form))
	b.s.Require().NoError(err)
	b.s.T().Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// StoredDocuments reads the whole board back in insertion order.
func (b *Board) StoredDocuments() []domain.Document {
	docs, err := storage.Documents(b.DB, nil)
	b.s.Require().NoError(err)
	return docs
}
