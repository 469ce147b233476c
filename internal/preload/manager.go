// Package preload warms cache tiers in the background for skills likely to
// execute again soon, based on usage frequency, confidence, and recency.
package preload

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/skillrt/internal/memmon"
	"github.com/haasonsaas/skillrt/internal/skills"
	"github.com/haasonsaas/skillrt/internal/usage"
)

// Weights controls how usage signals combine into a preload priority.
type Weights struct {
	Frequency float64
	Confidence float64
	Recency    float64
}

// DefaultWeights weights frequency slightly above confidence and recency.
var DefaultWeights = Weights{Frequency: 0.4, Confidence: 0.3, Recency: 0.3}

// RecencyHalfLife is the decay constant used to turn time-since-last-run
// into a [0,1] recency score.
const RecencyHalfLife = 6 * time.Hour

func decay(since time.Duration) float64 {
	if since <= 0 {
		return 1
	}
	return math.Exp(-float64(since) / float64(RecencyHalfLife))
}

// Manager (C9) periodically ranks skills by preload priority and warms the
// top-K's metadata/content into cache when memory pressure allows.
type Manager struct {
	log     *slog.Logger
	tracker *usage.Tracker
	loader  *skills.SkillsLoader
	sampler memmon.PressureSampler
	maxMemMb int

	weights     Weights
	topK        int
	minMemoryMb int
	interval    time.Duration

	hits   atomic.Uint64
	misses atomic.Uint64

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	isBusy  atomic.Bool
}

// NewManager constructs a Manager with the default top-5 preload count and
// 60s sweep interval.
func NewManager(log *slog.Logger, tracker *usage.Tracker, loader *skills.SkillsLoader, sampler memmon.PressureSampler, maxMemoryMb, minMemoryMb int) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		log:         log,
		tracker:     tracker,
		loader:      loader,
		sampler:     sampler,
		maxMemMb:    maxMemoryMb,
		weights:     DefaultWeights,
		topK:        5,
		minMemoryMb: minMemoryMb,
		interval:    time.Minute,
	}
}

// Start begins the periodic preload sweep. No-op if already running.
func (m *Manager) Start(ctx context.Context) {
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

// Stop halts the sweep loop and waits for it to exit.
func (m *Manager) Stop() {
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

func (m *Manager) run(ctx context.Context) {
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
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	if !m.isBusy.CompareAndSwap(false, true) {
		return
	}
	defer m.isBusy.Store(false)

	sample := m.sampler.Sample()
	pressure := memmon.Classify(sample, m.maxMemMb)
	if pressure == memmon.High || pressure == memmon.Critical {
		return
	}
	if int(sample.Available/(1024*1024)) < m.minMemoryMb {
		return
	}

	records := m.tracker.All()
	type ranked struct {
		name     string
		priority float64
	}
	now := time.Now()
	rs := make([]ranked, 0, len(records))
	for _, r := range records {
		freq := float64(r.ExecutionCount)
		rec := decay(now.Sub(r.LastExecutedAt))
		priority := m.weights.Frequency*freq + m.weights.Confidence*r.AverageConfidence + m.weights.Recency*rec
		rs = append(rs, ranked{name: r.SkillName, priority: priority})
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].priority > rs[j].priority })

	warmed := 0
	for _, r := range rs {
		if warmed >= m.topK {
			break
		}
		if m.alreadyCached(r.name) {
			m.hits.Add(1)
			continue
		}
		if _, err := m.loader.LoadSkill(r.name, skills.LoadSkillOptions{IncludeContent: true}); err != nil {
			m.log.Debug("preload failed", "skill", r.name, "err", err)
			continue
		}
		m.misses.Add(1)
		warmed++
	}
}

func (m *Manager) alreadyCached(name string) bool {
	_, hit := m.loader.ContentCache().Get(name)
	return hit
}

// HitRate reports the fraction of preload candidates that were already
// cached when considered (a proxy for how well the ranking anticipates
// subsequent execution).
func (m *Manager) HitRate() float64 {
	hits, misses := m.hits.Load(), m.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
