package detectors

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/25smoking/mcpscan/internal/config"
	"github.com/25smoking/mcpscan/internal/core"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// MemoryStats is a snapshot of the scanner process memory.
type MemoryStats struct {
	HeapUsed uint64
	RSS      uint64
}

// MemoryProbe reads current memory statistics.
type MemoryProbe func(ctx context.Context) (MemoryStats, error)

// ProcessMemory reads the Go heap from the runtime and the resident set size from the OS.
// RSS is best effort and left at zero when the platform does not expose it.
func ProcessMemory(ctx context.Context) (MemoryStats, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats := MemoryStats{HeapUsed: ms.HeapAlloc}

	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		core.LoggerFrom(ctx).Debug("rss unavailable", zap.Error(err))
		return stats, nil
	}
	if info, err := proc.MemoryInfoWithContext(ctx); err == nil {
		stats.RSS = info.RSS
	} else {
		core.LoggerFrom(ctx).Debug("rss unavailable", zap.Error(err))
	}
	return stats, nil
}

type MemoryDetector struct {
	threshold   uint64
	bufferLimit int64
	probe       MemoryProbe
}

// NewMemoryDetector builds the detector; a nil probe means ProcessMemory.
func NewMemoryDetector(cfg config.EngineConfig, probe MemoryProbe) *MemoryDetector {
	if probe == nil {
		probe = ProcessMemory
	}
	return &MemoryDetector{
		threshold:   cfg.MemoryThreshold(),
		bufferLimit: cfg.BufferLimit,
		probe:       probe,
	}
}

func (d *MemoryDetector) Name() string {
	return "Memory"
}

func (d *MemoryDetector) Detect(ctx context.Context, sc *core.ScanContext) ([]core.Finding, error) {
	var findings []core.Finding

	// 1. 堆内存占用
	stats, err := d.probe(ctx)
	if err != nil {
		return nil, fmt.Errorf("read memory stats: %w", err)
	}
	if stats.HeapUsed > d.threshold {
		details := fmt.Sprintf("High memory usage detected: %dMB", stats.HeapUsed/1024/1024)
		if stats.RSS > 0 {
			details += fmt.Sprintf(" (rss %dMB)", stats.RSS/1024/1024)
		}
		findings = append(findings, core.Finding{
			Type:           core.VulnMemoryLeak,
			Severity:       core.SeverityHigh,
			Details:        details,
			Location:       "process",
			Recommendation: "Implement proper memory management and garbage collection",
		})
	}

	// 2. 缓冲区大小
	if size, ok := sc.BufferSizeValue(); ok && size > d.bufferLimit {
		location := sc.BufferLocation
		if location == "" {
			location = "unknown"
		}
		findings = append(findings, core.Finding{
			Type:           core.VulnBufferOverflow,
			Severity:       core.SeverityCritical,
			Details:        fmt.Sprintf("Potential buffer overflow detected: size %d exceeds %d", size, d.bufferLimit),
			Location:       location,
			Recommendation: "Implement proper buffer size checks",
		})
	}

	return findings, nil
}
