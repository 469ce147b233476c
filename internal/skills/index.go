package skills

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haasonsaas/skillrt/internal/skillerr"
)

// DiscoverySource is one root the index scans for skill directories. Priority
// is stored with every entry the source contributes and reused when the
// watcher reloads it. On a name collision the most recently scanned entry
// replaces the earlier one whatever the two priorities are: every scan takes
// a fresh, larger sequence number, so an earlier higher-priority entry is
// never kept over a later one.
type DiscoverySource struct {
	Root     string
	Priority int
}

// IndexStats are the cumulative counters exposed by SkillIndex.
type IndexStats struct {
	TotalSkills   int
	CacheHits     uint64
	CacheMisses   uint64
	LastIndexedAt time.Time
}

// FindOptions narrows a relevance query.
type FindOptions struct {
	MinConfidence    float64
	RequiredKeywords []string
	Limit            int
	Domain           string
}

// Match is one scored result from findRelevantSkills.
type Match struct {
	Record     *Record
	Confidence float64
}

type entry struct {
	record   *Record
	priority int
	seq      uint64
}

// SkillIndex (C1) holds the in-memory name -> Record map built by scanning
// one or more DiscoverySource roots, and answers relevance queries over it.
type SkillIndex struct {
	log *slog.Logger

	mu      sync.RWMutex
	byName  map[string]*entry
	seqNext uint64

	hits   atomic.Uint64
	misses atomic.Uint64
	lastAt atomic.Int64 // unix nanos
}

// NewSkillIndex constructs an empty index.
func NewSkillIndex(log *slog.Logger) *SkillIndex {
	if log == nil {
		log = slog.Default()
	}
	return &SkillIndex{log: log, byName: make(map[string]*entry)}
}

// DiscoverAll scans every source in order and merges their results into the
// index; on a name collision the later-scanned entry wins, as described on
// DiscoverySource.
func (idx *SkillIndex) DiscoverAll(ctx context.Context, sources []DiscoverySource) error {
	for _, src := range sources {
		if err := idx.discoverOne(ctx, src); err != nil {
			idx.log.Warn("skill discovery source failed", "root", src.Root, "err", err)
		}
	}
	idx.lastAt.Store(time.Now().UnixNano())
	return nil
}

func (idx *SkillIndex) discoverOne(ctx context.Context, src DiscoverySource) error {
	dirEntries, err := os.ReadDir(src.Root)
	if err != nil {
		return err
	}
	for _, de := range dirEntries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		dir := filepath.Join(src.Root, de.Name())
		idx.loadAndStore(dir, src.Priority)
	}
	return nil
}

func (idx *SkillIndex) loadAndStore(dir string, priority int) {
	res, err := LoadMetadata(dir, LoadOptions{})
	if err != nil {
		idx.log.Warn("skipping invalid skill", "dir", dir, "err", err)
		return
	}
	for _, w := range res.Warnings {
		idx.log.Warn("skill metadata warning", "skill", w.SkillName, "message", w.Message)
	}

	rec := &Record{
		Metadata:          res.Metadata,
		AbsolutePath:      dir,
		DescriptionTokens: estimateTokens(res.Metadata.Description),
		Warnings:          res.Warnings,
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.seqNext++
	rec.ScanSeq = idx.seqNext

	name := strings.ToLower(res.Metadata.Name)
	existing, ok := idx.byName[name]
	if ok && existing.priority > priority {
		// An entry from a higher-priority source is kept only if it is not
		// older than this scan; rec.ScanSeq was just taken from seqNext, so
		// it is always newer and this scan replaces the entry.
		if rec.ScanSeq <= existing.seq {
			return
		}
	}
	if ok && existing.record.AbsolutePath != dir {
		idx.log.Warn("duplicate skill name, later scan replaces earlier one", "skill", name, "previous", existing.record.AbsolutePath, "dir", dir)
	}
	idx.byName[name] = &entry{record: rec, priority: priority, seq: rec.ScanSeq}
}

// ReloadSkill re-runs metadata loading for a known skill's path, or returns
// skillerr.ErrSkillNotFound if the name isn't indexed.
func (idx *SkillIndex) ReloadSkill(name string) (*Record, error) {
	idx.mu.RLock()
	e, ok := idx.byName[strings.ToLower(name)]
	idx.mu.RUnlock()
	if !ok {
		return nil, skillerr.Wrap(skillerr.SkillNotFound, skillerr.ErrSkillNotFound).WithSkill(name)
	}

	res, err := LoadMetadata(e.record.AbsolutePath, LoadOptions{})
	if err != nil {
		return nil, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.seqNext++
	rec := &Record{
		Metadata:          res.Metadata,
		AbsolutePath:       e.record.AbsolutePath,
		DescriptionTokens: estimateTokens(res.Metadata.Description),
		Warnings:          res.Warnings,
		ScanSeq:           idx.seqNext,
	}
	idx.byName[strings.ToLower(name)] = &entry{record: rec, priority: e.priority, seq: rec.ScanSeq}
	return rec, nil
}

// Get returns the indexed Record for name, tracking a cache hit/miss on the
// lookup itself.
func (idx *SkillIndex) Get(name string) (*Record, bool) {
	idx.mu.RLock()
	e, ok := idx.byName[strings.ToLower(name)]
	idx.mu.RUnlock()
	if !ok {
		idx.misses.Add(1)
		return nil, false
	}
	idx.hits.Add(1)
	return e.record, true
}

// Stats reports the index's cumulative counters.
func (idx *SkillIndex) Stats() IndexStats {
	idx.mu.RLock()
	total := len(idx.byName)
	idx.mu.RUnlock()
	var last time.Time
	if n := idx.lastAt.Load(); n != 0 {
		last = time.Unix(0, n)
	}
	return IndexStats{
		TotalSkills:   total,
		CacheHits:     idx.hits.Load(),
		CacheMisses:   idx.misses.Load(),
		LastIndexedAt: last,
	}
}

func normalizeIntent(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	return fields
}

func tokenScore(tokens []string, text string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	textTokens := make(map[string]struct{})
	for _, t := range normalizeIntent(text) {
		textTokens[t] = struct{}{}
	}
	matched := 0
	for _, t := range tokens {
		if _, ok := textTokens[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

func containsAll(haystack []string, needles []string) bool {
	set := make(map[string]struct{}, len(haystack))
	for _, h := range haystack {
		set[strings.ToLower(h)] = struct{}{}
	}
	for _, n := range needles {
		if _, ok := set[strings.ToLower(n)]; !ok {
			return false
		}
	}
	return true
}

// confidence implements the scoring formula: 0.6*keywordScore +
// 0.3*descriptionScore + 0.1*domainScore, raised to the trigger score when
// the skill declares triggers, then boosted by the trigger priority.
func confidence(meta *Metadata, intent string, domainHint string) float64 {
	kw := tokenScore(meta.Keywords, intent)
	desc := tokenScore(normalizeIntent(meta.Description), intent)
	var domainScore float64
	if domainHint != "" && strings.EqualFold(domainHint, meta.Domain) {
		domainScore = 1
	}
	score := 0.6*kw + 0.3*desc + 0.1*domainScore

	if meta.Triggers != nil {
		trig := triggerScore(meta.Triggers, intent)
		if trig > score {
			score = trig
		}
		if meta.Triggers.Priority > 0 {
			boost := 0.1 * meta.Triggers.Priority
			score += boost
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

func triggerScore(t *Triggers, intent string) float64 {
	lower := strings.ToLower(intent)
	for _, in := range t.Intents {
		if strings.EqualFold(in, intent) {
			return 1.0
		}
		if strings.Contains(lower, strings.ToLower(in)) {
			return 0.9
		}
	}
	for _, ph := range t.Phrases {
		if strings.EqualFold(ph, intent) {
			return 1.0
		}
		if strings.Contains(lower, strings.ToLower(ph)) {
			return 0.7
		}
	}
	return 0
}

// FindRelevantSkills scores every indexed skill against intent and returns
// matches at or above MinConfidence, sorted by confidence descending with
// ties broken by skill name. A Limit of zero or less means 3 and a
// MinConfidence of zero or less means 0.15. An intent with no letters or
// digits yields no matches.
func (idx *SkillIndex) FindRelevantSkills(intent string, opts FindOptions) []Match {
	if len(normalizeIntent(intent)) == 0 {
		return nil
	}
	if opts.Limit <= 0 {
		opts.Limit = 3
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.15
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var matches []Match
	for _, e := range idx.byName {
		meta := e.record.Metadata
		if len(opts.RequiredKeywords) > 0 && !containsAll(meta.Keywords, opts.RequiredKeywords) {
			continue
		}
		c := confidence(meta, intent, opts.Domain)
		if c < opts.MinConfidence {
			continue
		}
		matches = append(matches, Match{Record: e.record, Confidence: c})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].Record.Metadata.Name < matches[j].Record.Metadata.Name
	})

	if opts.Limit > 0 && len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}
	return matches
}

// All returns every indexed record, sorted by name, for catalog rendering.
func (idx *SkillIndex) All() []*Record {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*Record, 0, len(idx.byName))
	for _, e := range idx.byName {
		out = append(out, e.record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metadata.Name < out[j].Metadata.Name })
	return out
}
