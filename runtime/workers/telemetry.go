package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"msgboard/observability"
	"msgboard/storage"
)

// TelemetryWorker periodically logs connection outcomes, pool usage
// and process health (CPU, RAM, OS status) while the relay runs.
type TelemetryWorker struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	pool     *storage.Pool
	interval time.Duration
}

func NewTelemetryWorker(
	log *slog.Logger,
	monitor *observability.Monitor,
	pool *storage.Pool,
	interval time.Duration,
) *TelemetryWorker {
	return &TelemetryWorker{
		log:      log,
		monitor:  monitor,
		pool:     pool,
		interval: interval,
	}
}

// Run executes the main loop of the worker, reporting relay metrics on every tick.
func (w *TelemetryWorker) Run(ctx context.Context) error {
	w.log.Info("Starting relay telemetry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, status, err := getRelaySelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			snap := w.monitor.Snapshot()
			poolStats := w.pool.Stats()

			w.log.Info("Relay status",
				"accepted", snap.Accepted,
				"persisted", snap.Persisted,
				"rejected", snap.Rejected,
				"timed_out", snap.TimedOut,
				"dropped", snap.Dropped,
				"pool_open", poolStats.Open,
				"pool_idle", poolStats.Idle,
				"pool_in_use", poolStats.InUse,
				"ram_bytes", rss,
				"cpu_percent", cpu,
				"pid_status", status,
			)
		}
	}
}

// getRelaySelfStats retrieves technical metrics (Memory, CPU, and OS Status) for the given process.
func getRelaySelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
