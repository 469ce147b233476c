// Package usage implements the per-skill execution counters the preload
// manager and memory cleaner read to decide what to warm or evict.
package usage

import (
	"sync"
	"time"
)

// Window is the default sliding window after which a skill's usage record is
// dropped from reads/cleanup if it hasn't executed again.
const Window = 24 * time.Hour

// Record is one skill's cumulative usage counters.
type Record struct {
	SkillName            string
	ExecutionCount       int64
	FirstExecutedAt      time.Time
	LastExecutedAt       time.Time
	AverageConfidence    float64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	CacheHits            int64
	CacheHitRate         float64
	RequiresResources     bool
	ExecutionType        string
}

type skillTracker struct {
	mu     sync.Mutex
	record Record
}

// Tracker (C7) records per-execution outcomes and answers point-in-time
// reads, pruning records whose LastExecutedAt has fallen outside window.
type Tracker struct {
	mu       sync.RWMutex
	bySkill  map[string]*skillTracker
	window   time.Duration
}

// NewTracker constructs a Tracker with the default 24h sliding window.
func NewTracker() *Tracker {
	return &Tracker{bySkill: make(map[string]*skillTracker), window: Window}
}

func (t *Tracker) getOrCreate(skillName string) *skillTracker {
	t.mu.RLock()
	st, ok := t.bySkill[skillName]
	t.mu.RUnlock()
	if ok {
		return st
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.bySkill[skillName]; ok {
		return st
	}
	st = &skillTracker{record: Record{SkillName: skillName}}
	t.bySkill[skillName] = st
	return st
}

// RecordExecution updates a skill's counters after one execution completes.
func (t *Tracker) RecordExecution(skillName string, confidence float64, duration time.Duration, cacheHit bool, executionType string, requiresResources bool) {
	st := t.getOrCreate(skillName)

	st.mu.Lock()
	defer st.mu.Unlock()

	r := &st.record
	now := time.Now()
	if r.ExecutionCount == 0 {
		r.FirstExecutedAt = now
	}
	r.ExecutionCount++
	r.AverageConfidence += (confidence - r.AverageConfidence) / float64(r.ExecutionCount)
	r.TotalExecutionTime += duration
	r.AverageExecutionTime = r.TotalExecutionTime / time.Duration(r.ExecutionCount)
	if cacheHit {
		r.CacheHits++
	}
	r.CacheHitRate = float64(r.CacheHits) / float64(r.ExecutionCount)
	r.LastExecutedAt = now
	r.RequiresResources = requiresResources
	if executionType != "" {
		r.ExecutionType = executionType
	}
}

// Get returns a copy of a skill's current usage record.
func (t *Tracker) Get(skillName string) (Record, bool) {
	t.mu.RLock()
	st, ok := t.bySkill[skillName]
	t.mu.RUnlock()
	if !ok {
		return Record{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if time.Since(st.record.LastExecutedAt) > t.window {
		return Record{}, false
	}
	return st.record, true
}

// All returns a snapshot of every non-expired usage record.
func (t *Tracker) All() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Record, 0, len(t.bySkill))
	cutoff := time.Now().Add(-t.window)
	for _, st := range t.bySkill {
		st.mu.Lock()
		if st.record.LastExecutedAt.After(cutoff) {
			out = append(out, st.record)
		}
		st.mu.Unlock()
	}
	return out
}

// ClearExpired drops every record whose LastExecutedAt is older than window,
// returning how many were dropped.
func (t *Tracker) ClearExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-t.window)
	removed := 0
	for name, st := range t.bySkill {
		st.mu.Lock()
		expired := st.record.LastExecutedAt.Before(cutoff)
		st.mu.Unlock()
		if expired {
			delete(t.bySkill, name)
			removed++
		}
	}
	return removed
}

// SetWindow overrides the sliding window (used by the memory cleaner to
// tighten retention under pressure).
func (t *Tracker) SetWindow(d time.Duration) {
	t.mu.Lock()
	t.window = d
	t.mu.Unlock()
}
