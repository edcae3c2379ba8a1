package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

var perfMeter = otel.Meter("mtuciassist.perf")

var (
	cpuGauge, _         = perfMeter.Float64Gauge("process.cpu_percent")
	heapGauge, _        = perfMeter.Int64Gauge("process.heap_mb")
	liveObjectsGauge, _ = perfMeter.Int64Gauge("process.live_objects")
	goroutineGauge, _   = perfMeter.Int64Gauge("process.goroutines")
)

// InstrumentPerfStats samples process health every half minute until
// the context ends. Browser sessions are memory hungry, the heap gauge
// is the one worth watching.
func InstrumentPerfStats(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Second * 30)
		defer ticker.Stop()

		var memStats runtime.MemStats
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)
				heapGauge.Record(ctx, int64(memStats.Alloc/1_000_000))
				liveObjectsGauge.Record(ctx, int64(memStats.Mallocs-memStats.Frees))
				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))

				usage, err := cpu.Percent(0, false)
				if err != nil || len(usage) == 0 {
					slog.WarnContext(ctx, "cpu usage unavailable", "err", err)
					continue
				}
				cpuGauge.Record(ctx, usage[0])
			}
		}
	}()
}
