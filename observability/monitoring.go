package observability

import (
	"runtime"
	"sync/atomic"
)

// RelayStats is a point-in-time view of connection outcomes, served by
// the debug inspector and logged by the telemetry worker.
type RelayStats struct {
	Accepted  uint64 `json:"accepted"`
	Persisted uint64 `json:"persisted"`
	Rejected  uint64 `json:"rejected"`
	TimedOut  uint64 `json:"timed_out"`
	Dropped   uint64 `json:"dropped"`

	AllocMemMb uint64 `json:"alloc_mem_mb"`
	NumGC      uint32 `json:"num_gc"`
}

// Monitor counts what happens to every accepted connection. All
// counters are atomic so the worker slots share one instance without
// coordination.
type Monitor struct {
	accepted  atomic.Uint64
	persisted atomic.Uint64
	rejected  atomic.Uint64
	timedOut  atomic.Uint64
	dropped   atomic.Uint64
}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// IncrAccepted records a connection handed to a worker slot.
func (m *Monitor) IncrAccepted() {
	m.accepted.Add(1)
}

// IncrPersisted records a message written to the store.
func (m *Monitor) IncrPersisted() {
	m.persisted.Add(1)
}

// IncrRejected records a payload that could not be decoded.
func (m *Monitor) IncrRejected() {
	m.rejected.Add(1)
}

// IncrTimedOut records a connection that sent nothing in time.
func (m *Monitor) IncrTimedOut() {
	m.timedOut.Add(1)
}

// IncrDropped records a decoded message lost to a persistence failure.
func (m *Monitor) IncrDropped() {
	m.dropped.Add(1)
}

func (m *Monitor) Snapshot() RelayStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RelayStats{
		Accepted:   m.accepted.Load(),
		Persisted:  m.persisted.Load(),
		Rejected:   m.rejected.Load(),
		TimedOut:   m.timedOut.Load(),
		Dropped:    m.dropped.Load(),
		AllocMemMb: mem.Alloc / 1024 / 1024,
		NumGC:      mem.NumGC,
	}
}
