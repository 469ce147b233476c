// Package memmon samples process memory pressure on a fixed interval and
// drives tiered cache/usage eviction as pressure rises.
package memmon

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Pressure is a classified memory pressure level.
type Pressure string

const (
	Normal   Pressure = "normal"
	Moderate Pressure = "moderate"
	High     Pressure = "high"
	Critical Pressure = "critical"
)

// Thresholds are the heapUsed/maxMemoryMb ratios that separate pressure
// levels.
var Thresholds = struct {
	Normal, Moderate, High, Critical float64
}{Normal: 0.5, Moderate: 0.7, High: 0.85, Critical: 0.95}

// Sample is one point-in-time memory reading.
type Sample struct {
	HeapUsed  uint64
	HeapTotal uint64
	Available uint64
}

// PressureSampler abstracts the memory source, letting tests substitute a
// deterministic reading instead of runtime.ReadMemStats.
type PressureSampler interface {
	Sample() Sample
}

// RuntimeSampler backs PressureSampler with runtime.ReadMemStats.
type RuntimeSampler struct {
	MaxMemoryMb int
}

// Sample implements PressureSampler.
func (s RuntimeSampler) Sample() Sample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	maxBytes := uint64(s.MaxMemoryMb) * 1024 * 1024
	var available uint64
	if maxBytes > ms.HeapAlloc {
		available = maxBytes - ms.HeapAlloc
	}
	return Sample{HeapUsed: ms.HeapAlloc, HeapTotal: maxBytes, Available: available}
}

// Classify maps a sample to a pressure level given the configured max.
func Classify(s Sample, maxMemoryMb int) Pressure {
	maxBytes := float64(maxMemoryMb) * 1024 * 1024
	if maxBytes <= 0 {
		return Normal
	}
	ratio := float64(s.HeapUsed) / maxBytes
	switch {
	case ratio >= Thresholds.Critical:
		return Critical
	case ratio >= Thresholds.High:
		return High
	case ratio >= Thresholds.Moderate:
		return Moderate
	default:
		return Normal
	}
}

// CleanupPass records the outcome of one Cleaner invocation.
type CleanupPass struct {
	Pressure     Pressure
	Cleaned      map[string]int
	FreedBytes   uint64
	DurationMs   int64
	Timestamp    time.Time
}

// Cleaner is invoked by Monitor on each tick with the classified pressure.
// Implementations evict from cache tiers and usage records per the pressure
// level; Monitor guarantees non-reentrant invocation.
type Cleaner interface {
	Clean(ctx context.Context, pressure Pressure) CleanupPass
}

// Monitor (C8) periodically samples memory pressure and invokes a Cleaner,
// guaranteeing only one cleanup pass runs at a time.
type Monitor struct {
	log      *slog.Logger
	sampler  PressureSampler
	cleaner  Cleaner
	interval time.Duration
	maxMemMb int

	isBusy atomic.Bool

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	lastPass atomic.Pointer[CleanupPass]
}

// NewMonitor constructs a Monitor with the default 30s sampling interval.
func NewMonitor(log *slog.Logger, sampler PressureSampler, cleaner Cleaner, maxMemoryMb int) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{log: log, sampler: sampler, cleaner: cleaner, interval: 30 * time.Second, maxMemMb: maxMemoryMb}
}

// Start begins the sampling loop. It is a no-op if already running.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	go m.run(ctx)
}

// Stop halts the sampling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.stopCh)
	done := m.doneCh
	m.mu.Unlock()
	<-done
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	defer func() {
		m.mu.Lock()
		m.running = false
		close(m.doneCh)
		m.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	if !m.isBusy.CompareAndSwap(false, true) {
		m.log.Debug("memory cleanup already in progress, skipping tick")
		return
	}
	defer m.isBusy.Store(false)

	sample := m.sampler.Sample()
	pressure := Classify(sample, m.maxMemMb)
	m.log.Debug("memory sample", "heapUsed", sample.HeapUsed, "pressure", pressure)

	start := time.Now()
	pass := m.cleaner.Clean(ctx, pressure)
	pass.Pressure = pressure
	pass.DurationMs = time.Since(start).Milliseconds()
	pass.Timestamp = time.Now()
	m.lastPass.Store(&pass)

	if pressure != Normal {
		m.log.Info("memory cleanup pass", "pressure", pressure, "cleaned", pass.Cleaned, "freedBytes", pass.FreedBytes, "durationMs", pass.DurationMs)
	}
}

// LastPass returns the most recent cleanup pass, if any has run.
func (m *Monitor) LastPass() (CleanupPass, bool) {
	p := m.lastPass.Load()
	if p == nil {
		return CleanupPass{}, false
	}
	return *p, true
}
