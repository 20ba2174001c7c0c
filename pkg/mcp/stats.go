package mcp

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mackerelio/go-osstat/cpu"
	"github.com/mackerelio/go-osstat/loadavg"
	"github.com/mackerelio/go-osstat/memory"
	"github.com/mackerelio/go-osstat/uptime"
)

// cpuSampleInterval is the window used to estimate CPU usage.
const cpuSampleInterval = 200 * time.Millisecond

// SystemStats is a host snapshot. Sections that could not be read are nil.
type SystemStats struct {
	Memory  *MemoryStats
	Load    *loadavg.Stats
	Uptime  time.Duration
	CPUUsed *float64
}

// MemoryStats holds the portable subset of the OS memory counters.
type MemoryStats struct {
	Total uint64
	Used  uint64
	Free  uint64
}

// StatsFunc produces a snapshot. A partial snapshot may come with an error.
type StatsFunc func() (*SystemStats, error)

// ReadSystemStats samples the host through go-osstat.
func ReadSystemStats() (*SystemStats, error) {
	var (
		st   SystemStats
		errs []error
	)
	if mem, err := memory.Get(); err == nil {
		st.Memory = &MemoryStats{Total: mem.Total, Used: mem.Used, Free: mem.Free}
	} else {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	}
	if la, err := loadavg.Get(); err == nil {
		st.Load = la
	} else {
		errs = append(errs, fmt.Errorf("loadavg: %w", err))
	}
	if up, err := uptime.Get(); err == nil {
		st.Uptime = up
	} else {
		errs = append(errs, fmt.Errorf("uptime: %w", err))
	}
	if pct, err := cpuUsagePercent(cpuSampleInterval); err == nil {
		st.CPUUsed = &pct
	} else {
		errs = append(errs, fmt.Errorf("cpu: %w", err))
	}
	return &st, errors.Join(errs...)
}

func cpuUsagePercent(interval time.Duration) (float64, error) {
	before, err := cpu.Get()
	if err != nil {
		return 0, err
	}
	time.Sleep(interval)
	after, err := cpu.Get()
	if err != nil {
		return 0, err
	}
	idle := float64(after.Idle - before.Idle)
	total := float64(after.Total - before.Total)
	if total == 0 {
		return 0, errors.New("no cpu ticks elapsed")
	}
	return (1.0 - idle/total) * 100.0, nil
}

// String renders the snapshot as the tool's text output.
func (st *SystemStats) String() string {
	var sb strings.Builder
	if m := st.Memory; m != nil {
		pct := 0.0
		if m.Total > 0 {
			pct = float64(m.Used) / float64(m.Total) * 100
		}
		fmt.Fprintf(&sb, "Memory: %s used / %s total (%.1f%%), %s free\n",
			humanBytes(m.Used), humanBytes(m.Total), pct, humanBytes(m.Free))
	} else {
		sb.WriteString("Memory: unavailable\n")
	}
	if st.CPUUsed != nil {
		fmt.Fprintf(&sb, "CPU: %.1f%%\n", *st.CPUUsed)
	}
	if la := st.Load; la != nil {
		fmt.Fprintf(&sb, "Load average: %.2f %.2f %.2f\n", la.Loadavg1, la.Loadavg5, la.Loadavg15)
	} else {
		sb.WriteString("Load average: unavailable\n")
	}
	if st.Uptime > 0 {
		fmt.Fprintf(&sb, "Uptime: %s\n", st.Uptime.Truncate(time.Second))
	} else {
		sb.WriteString("Uptime: unavailable\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
