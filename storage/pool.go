package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"msgboard/errors"
)

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	// MinSize connections are opened eagerly and kept warm.
	MinSize int
	// MaxSize caps the total number of open connections.
	MaxSize int
	// MaxIdleTime is how long a connection beyond MinSize may sit idle
	// before the reaper closes it.
	MaxIdleTime time.Duration
	// WaitQueueTimeout bounds how long Acquire blocks when every
	// connection is checked out and the pool cannot grow.
	WaitQueueTimeout time.Duration
}

// PoolStats is a point-in-time snapshot for telemetry.
type PoolStats struct {
	Open  int
	Idle  int
	InUse int
}

type idleConn struct {
	conn     Conn
	lastUsed time.Time
}

// Pool keeps a bounded set of store connections. It grows on demand up
// to MaxSize, shrinks back towards MinSize when connections idle past
// MaxIdleTime, and fails acquisition with ErrPoolExhausted once the
// wait queue timeout elapses.
type Pool struct {
	dialer Dialer
	cfg    PoolConfig
	log    *slog.Logger

	// slots holds one permit per connection the pool may still open.
	// Dialing consumes a permit, closing a connection returns it.
	slots chan struct{}
	idle  chan idleConn

	done      chan struct{}
	closeOnce sync.Once
	reaperWG  sync.WaitGroup
}

// NewPool opens MinSize connections up front and starts the idle
// reaper. It fails when the store is unreachable so the caller can
// refuse to start at all.
func NewPool(ctx context.Context, dialer Dialer, cfg PoolConfig, log *slog.Logger) (*Pool, error) {
	if cfg.MaxSize < 1 || cfg.MinSize < 0 || cfg.MinSize > cfg.MaxSize {
		return nil, fmt.Errorf("%w: pool sizes min=%d max=%d", errors.ErrInvalidConfig, cfg.MinSize, cfg.MaxSize)
	}

	p := &Pool{
		dialer: dialer,
		cfg:    cfg,
		log:    log,
		slots:  make(chan struct{}, cfg.MaxSize),
		idle:   make(chan idleConn, cfg.MaxSize),
		done:   make(chan struct{}),
	}
	for i := 0; i < cfg.MaxSize; i++ {
		p.slots <- struct{}{}
	}

	for i := 0; i < cfg.MinSize; i++ {
		conn, err := p.dial(ctx)
		if err != nil {
			_ = p.Close(ctx)
			return nil, fmt.Errorf("warming up pool: %w", err)
		}
		p.idle <- idleConn{conn: conn, lastUsed: time.Now()}
	}

	if cfg.MaxIdleTime > 0 {
		p.reaperWG.Add(1)
		go p.reapLoop()
	}

	log.Info("Connection pool ready", "min", cfg.MinSize, "max", cfg.MaxSize)
	return p, nil
}

// Acquire returns a connection within the wait queue timeout. The
// caller must hand the connection back with Release or Discard.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	select {
	case <-p.done:
		return nil, errors.ErrPoolClosed
	default:
	}
	select {
	case ic := <-p.idle:
		return ic.conn, nil
	default:
	}

	timer := time.NewTimer(p.cfg.WaitQueueTimeout)
	defer timer.Stop()

	select {
	case ic := <-p.idle:
		return ic.conn, nil
	case <-p.slots:
		conn, err := p.dialer.Dial(ctx)
		if err != nil {
			p.slots <- struct{}{}
			return nil, fmt.Errorf("%w: dialing store: %v", errors.ErrPersistence, err)
		}
		return conn, nil
	case <-timer.C:
		return nil, errors.ErrPoolExhausted
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, errors.ErrPoolClosed
	}
}

// Release puts a healthy connection back into the idle set.
func (p *Pool) Release(conn Conn) {
	select {
	case <-p.done:
		p.retire(conn)
		return
	default:
	}
	p.idle <- idleConn{conn: conn, lastUsed: time.Now()}
}

// Discard closes a broken connection and frees its slot so the pool
// can dial a replacement.
func (p *Pool) Discard(conn Conn) {
	p.retire(conn)
}

// Stats reports how many connections are open, idle and in use.
func (p *Pool) Stats() PoolStats {
	open := cap(p.slots) - len(p.slots)
	idle := len(p.idle)
	return PoolStats{Open: open, Idle: idle, InUse: open - idle}
}

// Close drains the pool: idle connections are closed immediately,
// checked out ones as they come home. It returns the context error
// when connections are still out once the deadline passes.
func (p *Pool) Close(ctx context.Context) error {
	p.closeOnce.Do(func() { close(p.done) })
	p.reaperWG.Wait()

	for i := 0; i < cap(p.slots); i++ {
		select {
		case <-p.slots:
		case ic := <-p.idle:
			p.closeConn(ic.conn)
		case <-ctx.Done():
			return fmt.Errorf("draining pool: %w", ctx.Err())
		}
	}
	p.log.Info("Connection pool drained")
	return nil
}

func (p *Pool) dial(ctx context.Context) (Conn, error) {
	<-p.slots
	conn, err := p.dialer.Dial(ctx)
	if err != nil {
		p.slots <- struct{}{}
		return nil, fmt.Errorf("%w: dialing store: %v", errors.ErrPersistence, err)
	}
	return conn, nil
}

// retire closes a connection and returns its slot.
func (p *Pool) retire(conn Conn) {
	p.closeConn(conn)
	p.slots <- struct{}{}
}

func (p *Pool) closeConn(conn Conn) {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Close(closeCtx); err != nil {
		p.log.Warn("Closing store connection failed", "error", err)
	}
}

func (p *Pool) reapLoop() {
	defer p.reaperWG.Done()
	ticker := time.NewTicker(p.cfg.MaxIdleTime)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case now := <-ticker.C:
			p.reap(now)
		}
	}
}

// reap closes idle connections older than MaxIdleTime, never dropping
// the pool below MinSize.
func (p *Pool) reap(now time.Time) {
	for i := len(p.idle); i > 0; i-- {
		var ic idleConn
		select {
		case ic = <-p.idle:
		default:
			return
		}
		open := cap(p.slots) - len(p.slots)
		if open > p.cfg.MinSize && now.Sub(ic.lastUsed) > p.cfg.MaxIdleTime {
			p.log.Debug("Reaping idle store connection", "idle_for", now.Sub(ic.lastUsed).String())
			p.retire(ic.conn)
			continue
		}
		p.idle <- ic
	}
}
