package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// StatsSource reports the hub's live population.
type StatsSource interface {
	Stats() (connections, users, groups int)
}

// TelemetryWorker periodically samples the process (cpu, ram via gopsutil),
// the Go runtime (heap, goroutines, gc) and the hub registry, and emits one
// log line per interval. Losing a sample is fine; the next tick replaces it.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	stats          StatsSource
}

func NewTelemetryWorker(log *slog.Logger, metricInterval time.Duration, stats StatsSource) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		metricInterval: metricInterval,
		stats:          stats,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			w.sample(proc)
		}
	}
}

func (w *TelemetryWorker) sample(proc *process.Process) {
	connections, users, groups := w.stats.Stats()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	attrs := []any{
		"connections", connections,
		"online_users", users,
		"chat_groups", groups,
		"goroutines", runtime.NumGoroutine(),
		"heap_alloc_mb", mem.HeapAlloc / 1024 / 1024,
		"num_gc", mem.NumGC,
	}

	if cpu, err := proc.CPUPercent(); err == nil {
		attrs = append(attrs, "cpu_percent", cpu)
	} else {
		w.log.Debug("Error while finding process cpu usage", "err", err)
	}
	if ram, err := proc.MemoryPercent(); err == nil {
		attrs = append(attrs, "ram_percent", ram)
	} else {
		w.log.Debug("Error while finding process ram usage", "err", err)
	}

	w.log.Info("Telemetry", attrs...)
}
