package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"msgboard/domain"
	"msgboard/observability"
	"msgboard/protocol"
	"msgboard/storage"
)

// ConnWorker is one slot of the relay pool. Each slot accepts from the
// shared listener and owns a single connection from accept to close,
// so the pool size caps concurrent submissions; excess connections
// queue in the kernel backlog.
type ConnWorker struct {
	log         *slog.Logger
	lis         net.Listener
	writer      storage.DocumentWriter
	monitor     *observability.Monitor
	readTimeout time.Duration
	bufferSize  int
}

func NewConnWorker(
	log *slog.Logger,
	lis net.Listener,
	writer storage.DocumentWriter,
	monitor *observability.Monitor,
	readTimeout time.Duration,
	bufferSize int,
) *ConnWorker {
	return &ConnWorker{
		log:         log,
		lis:         lis,
		writer:      writer,
		monitor:     monitor,
		readTimeout: readTimeout,
		bufferSize:  bufferSize,
	}
}

// Run accepts connections until the listener closes or the context is
// canceled. Connection handling never returns an error: a bad payload
// or a failed insert is logged and counted, then the slot moves on.
func (w *ConnWorker) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := w.lis.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				// Listener closed: the slot has drained its work.
				return nil
			}
			w.log.Warn("Accept failed", "error", err)
			continue
		}
		w.handle(ctx, conn)
	}
}

func (w *ConnWorker) handle(ctx context.Context, conn net.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	// One correlation id per connection so interleaved worker logs stay readable.
	log := w.log.With("conn", uuid.NewString(), "remote", conn.RemoteAddr().String())
	w.monitor.IncrAccepted()

	payload, err := w.read(conn)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			w.monitor.IncrTimedOut()
			log.Warn("Connection sent nothing within the read window")
			return
		}
		w.monitor.IncrRejected()
		log.Warn("Reading payload failed", "error", err)
		return
	}

	sub, err := protocol.Decode(payload)
	if err != nil {
		w.monitor.IncrRejected()
		log.Warn("Rejecting malformed payload", "error", err)
		return
	}

	doc := domain.Stamp(sub, time.Now())
	if err := w.writer.Write(ctx, doc); err != nil {
		w.monitor.IncrDropped()
		log.Error("Message dropped", "username", sub.Username, "error", err)
		return
	}

	w.monitor.IncrPersisted()
	log.Info("Message persisted", "username", sub.Username)
}

// read drains the connection until the sender closes it, the buffer
// fills, or the read deadline passes. There is no length prefix on the
// wire: end-of-payload is the peer's close. Bytes already received
// when the deadline hits are still decoded.
func (w *ConnWorker) read(conn net.Conn) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(w.readTimeout)); err != nil {
		return nil, err
	}

	buf := make([]byte, w.bufferSize)
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if total > 0 {
				break
			}
			return nil, err
		}
	}
	return buf[:total], nil
}
