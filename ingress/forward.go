//go:generate go run go.uber.org/mock/mockgen -source=forward.go -destination=../mocks/mock_ingress.go -package=mocks
package ingress

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"msgboard/domain"
	"msgboard/errors"
	"msgboard/protocol"
)

// Sender pushes one submission towards the relay.
type Sender interface {
	Send(ctx context.Context, sub domain.Submission) error
}

var _ Sender = (*Forwarder)(nil)

// Forwarder opens exactly one TCP connection per submission, writes
// the payload and closes. The relay never acknowledges, so a nil
// return means handed to the network, not persisted.
type Forwarder struct {
	log          *slog.Logger
	addr         string
	dialTimeout  time.Duration
	writeTimeout time.Duration
}

func NewForwarder(log *slog.Logger, addr string, dialTimeout, writeTimeout time.Duration) *Forwarder {
	return &Forwarder{
		log:          log,
		addr:         addr,
		dialTimeout:  dialTimeout,
		writeTimeout: writeTimeout,
	}
}

// Send performs the one-shot delivery. Dial and write failures map to
// ErrRelayUnreachable; there is no retry, the submission is lost.
func (f *Forwarder) Send(ctx context.Context, sub domain.Submission) error {
	payload, err := protocol.Encode(sub)
	if err != nil {
		return fmt.Errorf("encoding submission: %w", err)
	}

	dialer := net.Dialer{Timeout: f.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", f.addr)
	if err != nil {
		return fmt.Errorf("%w: dialing %s: %v", errors.ErrRelayUnreachable, f.addr, err)
	}
	defer func() {
		// Closing signals end-of-payload to the relay.
		_ = conn.Close()
	}()

	if f.writeTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(f.writeTimeout))
	}
	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("%w: writing payload: %v", errors.ErrRelayUnreachable, err)
	}

	f.log.Debug("Submission forwarded", "username", sub.Username, "bytes", len(payload))
	return nil
}
