package metrics

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const namespace = "appointmentbot"

// processGauges describe the serving process next to the webhook and store
// metrics: its own footprint plus how much memory the host has left
type processGauges struct {
	cpuPercent     prometheus.Gauge
	residentBytes  prometheus.Gauge
	openFDs        prometheus.Gauge
	goroutines     prometheus.Gauge
	startTime      prometheus.Gauge
	hostMemoryUsed prometheus.Gauge
}

var (
	procGauges *processGauges
	procOnce   sync.Once
)

func initializeProcessMetrics() *processGauges {
	procOnce.Do(func() {
		gauge := func(name, help string) prometheus.Gauge {
			return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
		}
		g := &processGauges{
			cpuPercent:     gauge("process_cpu_percent", "CPU used by the process since the previous sample, in percent of one core"),
			residentBytes:  gauge("process_resident_memory_bytes", "Resident set size of the process"),
			openFDs:        gauge("process_open_fds", "Open file descriptors, including store and Redis connections"),
			goroutines:     gauge("goroutines", "Goroutines alive, one per in-flight webhook plus driver workers"),
			startTime:      gauge("process_start_time_seconds", "Process start time since the unix epoch"),
			hostMemoryUsed: gauge("host_memory_used_percent", "Host memory in use"),
		}
		registry.MustRegister(
			g.cpuPercent,
			g.residentBytes,
			g.openFDs,
			g.goroutines,
			g.startTime,
			g.hostMemoryUsed,
		)
		procGauges = g
	})
	return procGauges
}

// StartSystemMetrics samples the process gauges every interval until ctx is done
func StartSystemMetrics(ctx context.Context, interval time.Duration) {
	g := initializeProcessMetrics()

	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		log.Warn().Err(err).Msg("Process inspection unavailable, sampling runtime gauges only")
		self = nil
	} else if created, err := self.CreateTimeWithContext(ctx); err == nil {
		g.startTime.Set(float64(created) / 1000)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			g.sample(ctx, self)

			select {
			case <-ctx.Done():
				log.Debug().Msg("System metrics collector stopped")
				return
			case <-ticker.C:
			}
		}
	}()
}

func (g *processGauges) sample(ctx context.Context, self *process.Process) {
	g.goroutines.Set(float64(runtime.NumGoroutine()))

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		g.hostMemoryUsed.Set(vm.UsedPercent)
	}

	if self == nil {
		return
	}
	if pct, err := self.PercentWithContext(ctx, 0); err == nil {
		g.cpuPercent.Set(pct)
	}
	if info, err := self.MemoryInfoWithContext(ctx); err == nil {
		g.residentBytes.Set(float64(info.RSS))
	}
	if fds, err := self.NumFDsWithContext(ctx); err == nil {
		g.openFDs.Set(float64(fds))
	}
}
