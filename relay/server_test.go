package relay_test

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"msgboard/domain"
	"msgboard/errors"
	"msgboard/internal"
	"msgboard/mocks"
	"msgboard/observability"
	"msgboard/relay"
	"msgboard/runtime/workers"
)

func testConfig() internal.RelayConfig {
	return internal.RelayConfig{
		Host:        "127.0.0.1",
		Port:        0,
		ReadTimeout: 500 * time.Millisecond,
		Backlog:     10,
		BufferSize:  1024,
		Workers:     4,
	}
}

// startRelay boots a relay on a random loopback port and returns its
// address plus a shutdown helper bounded by the given grace period.
func startRelay(t *testing.T, cfg internal.RelayConfig, writer *mocks.MockDocumentWriter, monitor *observability.Monitor) (string, func(grace time.Duration) error) {
	t.Helper()
	req := require.New(t)

	log := slog.Default()
	sup := workers.NewSupervisor(log, 50*time.Millisecond)
	server := relay.NewServer(log, cfg, writer, monitor, sup)
	req.NoError(server.Start(context.Background()))

	return server.Addr().String(), func(grace time.Duration) error {
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return server.Shutdown(ctx)
	}
}

// submit opens one connection, writes the payload in the given chunks
// and closes, mirroring the ingress forwarder.
func submit(t *testing.T, addr string, chunks ...[]byte) {
	t.Helper()
	req := require.New(t)

	conn, err := net.Dial("tcp", addr)
	req.NoError(err)
	defer conn.Close()

	for i, chunk := range chunks {
		if i > 0 {
			time.Sleep(50 * time.Millisecond)
		}
		_, err = conn.Write(chunk)
		req.NoError(err)
	}
}

func Test_Relay_PersistsWellFormedSubmission(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	before := time.Now().UTC()
	persisted := make(chan domain.Document, 1)
	writer := mocks.NewMockDocumentWriter(ctrl)
	writer.EXPECT().
		Write(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, doc domain.Document) error {
			persisted <- doc
			return nil
		}).
		Times(1)

	monitor := observability.NewMonitor()
	addr, shutdown := startRelay(t, testConfig(), writer, monitor)
	defer shutdown(time.Second)

	submit(t, addr, []byte(`{"username":"Test","message":"Hello World!"}`))

	select {
	case doc := <-persisted:
		req.Equal("Test", doc.Username)
		req.Equal("Hello World!", doc.Message)
		stamped, err := time.Parse(domain.TimestampLayout, doc.Timestamp)
		req.NoError(err)
		req.False(stamped.Before(before.Truncate(time.Microsecond)), "timestamp must be assigned after submission time")
	case <-time.After(2 * time.Second):
		req.Fail("document never reached the writer")
	}
}

func Test_Relay_RejectsMalformedPayloadAndKeepsServing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	persisted := make(chan domain.Document, 1)
	writer := mocks.NewMockDocumentWriter(ctrl)
	// Only the trailing well-formed submission may land.
	writer.EXPECT().
		Write(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, doc domain.Document) error {
			persisted <- doc
			return nil
		}).
		Times(1)

	monitor := observability.NewMonitor()
	addr, shutdown := startRelay(t, testConfig(), writer, monitor)
	defer shutdown(time.Second)

	submit(t, addr, []byte("username=Test&message=not json"))
	submit(t, addr, []byte(`{"username":"only one field"}`))
	submit(t, addr, []byte(`{"username":"survivor","message":"still up"}`))

	select {
	case doc := <-persisted:
		req.Equal("survivor", doc.Username)
	case <-time.After(2 * time.Second):
		req.Fail("relay stopped serving after a malformed payload")
	}
	req.Eventually(func() bool {
		return monitor.Snapshot().Rejected == 2
	}, 2*time.Second, 20*time.Millisecond)
}

func Test_Relay_ReassemblesSplitPayload(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	persisted := make(chan domain.Document, 1)
	writer := mocks.NewMockDocumentWriter(ctrl)
	writer.EXPECT().
		Write(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, doc domain.Document) error {
			persisted <- doc
			return nil
		}).
		Times(1)

	monitor := observability.NewMonitor()
	addr, shutdown := startRelay(t, testConfig(), writer, monitor)
	defer shutdown(time.Second)

	// No length prefix on the wire: the reader must stitch the chunks
	// back together before decoding.
	payload := []byte(`{"username":"Test","message":"split across reads"}`)
	submit(t, addr, payload[:12], payload[12:30], payload[30:])

	select {
	case doc := <-persisted:
		req.Equal("split across reads", doc.Message)
	case <-time.After(2 * time.Second):
		req.Fail("split payload was never reassembled")
	}
}

func Test_Relay_TimesOutSilentConnection(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	writer := mocks.NewMockDocumentWriter(ctrl)
	// Nothing may ever be written.

	monitor := observability.NewMonitor()
	cfg := testConfig()
	cfg.ReadTimeout = 100 * time.Millisecond
	addr, shutdown := startRelay(t, cfg, writer, monitor)
	defer shutdown(time.Second)

	conn, err := net.Dial("tcp", addr)
	req.NoError(err)
	defer conn.Close()

	req.Eventually(func() bool {
		return monitor.Snapshot().TimedOut == 1
	}, 2*time.Second, 20*time.Millisecond, "silent connection should time out")
}

func Test_Relay_ConcurrentSubmissionsAllPersisted(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	const n = 20

	var mu sync.Mutex
	seen := make(map[string]struct{}, n)
	writer := mocks.NewMockDocumentWriter(ctrl)
	writer.EXPECT().
		Write(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, doc domain.Document) error {
			mu.Lock()
			defer mu.Unlock()
			seen[doc.Message] = struct{}{}
			return nil
		}).
		Times(n)

	monitor := observability.NewMonitor()
	addr, shutdown := startRelay(t, testConfig(), writer, monitor)
	defer shutdown(2 * time.Second)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			submit(t, addr, []byte(fmt.Sprintf(`{"username":"client-%d","message":"message-%d"}`, i, i)))
		}(i)
	}
	wg.Wait()

	req.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == n
	}, 5*time.Second, 20*time.Millisecond, "every concurrent submission must land exactly once")
	req.Eventually(func() bool {
		return monitor.Snapshot().Persisted == n
	}, 2*time.Second, 20*time.Millisecond)
}

func Test_Relay_PersistenceFailureDropsMessageOnly(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	persisted := make(chan domain.Document, 1)
	writer := mocks.NewMockDocumentWriter(ctrl)
	writer.EXPECT().
		Write(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, doc domain.Document) error {
			if doc.Message == "lost to the pool" {
				return errors.ErrPoolExhausted
			}
			persisted <- doc
			return nil
		}).
		Times(2)

	monitor := observability.NewMonitor()
	addr, shutdown := startRelay(t, testConfig(), writer, monitor)
	defer shutdown(time.Second)

	submit(t, addr, []byte(`{"username":"Test","message":"lost to the pool"}`))
	submit(t, addr, []byte(`{"username":"Test","message":"made it"}`))

	select {
	case doc := <-persisted:
		req.Equal("made it", doc.Message)
	case <-time.After(2 * time.Second):
		req.Fail("relay stopped serving after a persistence failure")
	}
	req.Eventually(func() bool {
		return monitor.Snapshot().Dropped == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func Test_Relay_ShutdownPersistsInFlightWork(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	persisted := make(chan domain.Document, 1)
	writer := mocks.NewMockDocumentWriter(ctrl)
	writer.EXPECT().
		Write(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, doc domain.Document) error {
			persisted <- doc
			return nil
		}).
		Times(1)

	monitor := observability.NewMonitor()
	cfg := testConfig()
	addr, shutdown := startRelay(t, cfg, writer, monitor)

	// Connection already accepted, payload not yet complete.
	conn, err := net.Dial("tcp", addr)
	req.NoError(err)
	_, err = conn.Write([]byte(`{"username":"Test",`))
	req.NoError(err)
	time.Sleep(100 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- shutdown(2 * time.Second) }()

	// Finish the in-flight submission during the grace period.
	time.Sleep(100 * time.Millisecond)
	_, err = conn.Write([]byte(`"message":"beat the grace period"}`))
	req.NoError(err)
	req.NoError(conn.Close())

	req.NoError(<-done)
	select {
	case doc := <-persisted:
		req.Equal("beat the grace period", doc.Message)
	default:
		req.Fail("in-flight document must be persisted before shutdown completes")
	}
}

func Test_Relay_ShutdownAbandonsWorkAfterGracePeriod(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	writer := mocks.NewMockDocumentWriter(ctrl)

	monitor := observability.NewMonitor()
	cfg := testConfig()
	cfg.ReadTimeout = 10 * time.Second
	addr, shutdown := startRelay(t, cfg, writer, monitor)

	// A connection that will never finish within the grace period.
	conn, err := net.Dial("tcp", addr)
	req.NoError(err)
	defer conn.Close()
	_, err = conn.Write([]byte(`{"username":"stuck"`))
	req.NoError(err)
	time.Sleep(100 * time.Millisecond)

	err = shutdown(200 * time.Millisecond)
	req.ErrorIs(err, errors.ErrShutdownTimeout)
}
