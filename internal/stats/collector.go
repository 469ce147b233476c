// Package stats implements the execution profiler (C15): per-skill counters
// kept in memory for fast introspection, mirrored into Prometheus instruments
// for the same observability surface the rest of the runtime uses.
package stats

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PhaseTimings records how long each stage of one execution took, when the
// caller chooses to report them. Any zero-valued field is treated as "not
// measured" rather than "took 0ns".
type PhaseTimings struct {
	Extraction  time.Duration
	Dependency  time.Duration
	Compilation time.Duration
	Security    time.Duration
	Sandbox     time.Duration
}

// SkillStats is the accumulated profile for one skill.
type SkillStats struct {
	Total                int
	Successful           int
	Failed               int
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	CacheHits            int
	CacheMisses          int
	TokenUsage           int
	LastExecutionAt      time.Time
}

// Collector accumulates per-skill execution statistics and mirrors them into
// Prometheus counters, histograms, and gauges registered on construction.
type Collector struct {
	mu   sync.RWMutex
	byName map[string]*SkillStats

	executions    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	phaseDuration *prometheus.HistogramVec
	tokens        *prometheus.CounterVec
	cacheOutcome  *prometheus.CounterVec
	activeSkills  prometheus.Gauge
}

// New constructs a Collector and registers its Prometheus instruments.
func New() *Collector {
	return &Collector{
		byName: make(map[string]*SkillStats),

		executions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillrt_executions_total",
				Help: "Total number of skill executions by skill name and outcome",
			},
			[]string{"skill", "outcome"},
		),
		duration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skillrt_execution_duration_seconds",
				Help:    "Duration of skill executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"skill"},
		),
		phaseDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skillrt_execution_phase_duration_seconds",
				Help:    "Duration of individual execution phases in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"skill", "phase"},
		),
		tokens: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillrt_token_usage_total",
				Help: "Total estimated tokens consumed rendering skill descriptions and results",
			},
			[]string{"skill"},
		),
		cacheOutcome: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skillrt_cache_outcomes_total",
				Help: "Cache hits and misses observed while loading skills",
			},
			[]string{"skill", "outcome"},
		),
		activeSkills: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "skillrt_skills_profiled",
				Help: "Number of distinct skills with at least one recorded execution",
			},
		),
	}
}

// Record accumulates the outcome of one execution into skillName's profile.
func (c *Collector) Record(skillName string, success bool, duration time.Duration, tokenUsage int) {
	c.mu.Lock()
	s, ok := c.byName[skillName]
	if !ok {
		s = &SkillStats{}
		c.byName[skillName] = s
		c.activeSkills.Set(float64(len(c.byName)))
	}
	s.Total++
	if success {
		s.Successful++
	} else {
		s.Failed++
	}
	s.TotalExecutionTime += duration
	s.AverageExecutionTime = s.TotalExecutionTime / time.Duration(s.Total)
	s.TokenUsage += tokenUsage
	s.LastExecutionAt = time.Now()
	c.mu.Unlock()

	outcome := "success"
	if !success {
		outcome = "error"
	}
	c.executions.WithLabelValues(skillName, outcome).Inc()
	c.duration.WithLabelValues(skillName).Observe(duration.Seconds())
	if tokenUsage > 0 {
		c.tokens.WithLabelValues(skillName).Add(float64(tokenUsage))
	}
}

// RecordPhase records one named phase's duration within an execution.
func (c *Collector) RecordPhase(skillName, phase string, d time.Duration) {
	c.phaseDuration.WithLabelValues(skillName, phase).Observe(d.Seconds())
}

// RecordPhases records all non-zero fields of t as individual phase samples.
func (c *Collector) RecordPhases(skillName string, t PhaseTimings) {
	if t.Extraction > 0 {
		c.RecordPhase(skillName, "extraction", t.Extraction)
	}
	if t.Dependency > 0 {
		c.RecordPhase(skillName, "dependency", t.Dependency)
	}
	if t.Compilation > 0 {
		c.RecordPhase(skillName, "compilation", t.Compilation)
	}
	if t.Security > 0 {
		c.RecordPhase(skillName, "security", t.Security)
	}
	if t.Sandbox > 0 {
		c.RecordPhase(skillName, "sandbox", t.Sandbox)
	}
}

// RecordCacheOutcome records whether a skill load hit or missed its cache.
func (c *Collector) RecordCacheOutcome(skillName string, hit bool) {
	c.mu.Lock()
	s, ok := c.byName[skillName]
	if !ok {
		s = &SkillStats{}
		c.byName[skillName] = s
		c.activeSkills.Set(float64(len(c.byName)))
	}
	if hit {
		s.CacheHits++
	} else {
		s.CacheMisses++
	}
	c.mu.Unlock()

	outcome := "hit"
	if !hit {
		outcome = "miss"
	}
	c.cacheOutcome.WithLabelValues(skillName, outcome).Inc()
}

// Get returns a copy of skillName's accumulated stats, if any executions
// have been recorded for it.
func (c *Collector) Get(skillName string) (SkillStats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byName[skillName]
	if !ok {
		return SkillStats{}, false
	}
	return *s, true
}

// All returns a copy of every skill's accumulated stats, keyed by name.
func (c *Collector) All() map[string]SkillStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]SkillStats, len(c.byName))
	for name, s := range c.byName {
		out[name] = *s
	}
	return out
}
