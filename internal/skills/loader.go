package skills

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/haasonsaas/skillrt/internal/cache"
	"github.com/haasonsaas/skillrt/internal/skillerr"
)

// LoadSkillOptions narrows what SkillsLoader.LoadSkill composes.
type LoadSkillOptions struct {
	IncludeContent   bool
	IncludeResources bool
	MinConfidence    float64
}

// Handle is the protocol-neutral result of SkillsLoader.LoadSkill: metadata
// is always populated; content/resources are populated only if requested.
type Handle struct {
	Metadata  *Metadata
	Content   *Content
	Resources *ResourceListing
	CacheHit  bool
}

// SkillsLoader (C6) is the single façade composing C1 (SkillIndex), whose
// records carry the C2 metadata validated when the skill was indexed, with
// C4 (InstructionLoader) and C5 (ResourceLoader), consulting the cache tiers
// at each stage. A metadata cache miss stores the index record's metadata;
// it does not re-read or re-validate the skill's descriptor.
type SkillsLoader struct {
	index *SkillIndex

	metaCache      *cache.TTLCache[string, *Metadata]
	contentCache   *cache.TTLCache[string, *Content]
	resourcesCache *cache.TTLCache[string, *ResourceListing]
}

// NewSkillsLoader wires a loader on top of an existing index, with the
// default-sized cache tiers.
func NewSkillsLoader(index *SkillIndex) *SkillsLoader {
	return &SkillsLoader{
		index:          index,
		metaCache:      cache.New[string, *Metadata](cache.Config{MaxSize: cache.MetadataMaxSize, DefaultTTL: cache.MetadataTTL}),
		contentCache:   cache.New[string, *Content](cache.Config{MaxSize: cache.ContentMaxSize, DefaultTTL: cache.ContentTTL}),
		resourcesCache: cache.New[string, *ResourceListing](cache.Config{MaxSize: cache.ResourcesMaxSize, DefaultTTL: cache.ResourcesTTL}),
	}
}

// LoadSkill composes the full skill handle: index lookup, cached metadata,
// and optionally cached content/resources.
func (l *SkillsLoader) LoadSkill(name string, opts LoadSkillOptions) (*Handle, error) {
	rec, ok := l.index.Get(name)
	if !ok {
		return nil, skillerr.Wrap(skillerr.SkillNotFound, skillerr.ErrSkillNotFound).WithSkill(name)
	}

	cacheHit := true
	meta, ok := l.metaCache.Get(rec.Metadata.Name)
	if !ok {
		cacheHit = false
		meta = rec.Metadata
		ttl := time.Duration(meta.TTL) * time.Second
		if ttl <= 0 {
			ttl = cache.MetadataTTL
		}
		l.metaCache.SetWithTTL(meta.Name, meta, ttl)
	}

	handle := &Handle{Metadata: meta, CacheHit: cacheHit}

	if opts.IncludeContent {
		content, hit := l.contentCache.Get(meta.Name)
		if !hit {
			loaded, err := LoadContent(rec.AbsolutePath)
			if err != nil {
				return nil, skillerr.Wrap(skillerr.ParseFailed, err).WithSkill(name)
			}
			content = loaded
			ttl := time.Duration(meta.TTL) * time.Second
			if ttl <= 0 {
				ttl = cache.ContentTTL
			}
			l.contentCache.SetWithTTL(meta.Name, content, ttl)
			cacheHit = false
		}
		handle.Content = content
	}

	if opts.IncludeResources {
		resources, hit := l.resourcesCache.Get(meta.Name)
		if !hit {
			loaded, err := LoadResources(rec.AbsolutePath)
			if err != nil {
				return nil, skillerr.Wrap(skillerr.ParseFailed, err).WithSkill(name)
			}
			resources = loaded
			ttl := time.Duration(meta.TTL) * time.Second
			if ttl <= 0 {
				ttl = cache.ResourcesTTL
			}
			l.resourcesCache.SetWithTTL(meta.Name, resources, ttl)
			cacheHit = false
		}
		handle.Resources = resources
	}

	handle.CacheHit = cacheHit
	return handle, nil
}

// MetadataCache exposes the metadata tier for the memory cleaner.
func (l *SkillsLoader) MetadataCache() *cache.TTLCache[string, *Metadata] { return l.metaCache }

// ContentCache exposes the content tier for the memory cleaner.
func (l *SkillsLoader) ContentCache() *cache.TTLCache[string, *Content] { return l.contentCache }

// ResourcesCache exposes the resources tier for the memory cleaner.
func (l *SkillsLoader) ResourcesCache() *cache.TTLCache[string, *ResourceListing] {
	return l.resourcesCache
}

// Index exposes the underlying SkillIndex for callers that need raw lookups
// or relevance queries (the ToolDescriptionGenerator, the ChatLoop adapter).
func (l *SkillsLoader) Index() *SkillIndex { return l.index }

// InvalidateSkill drops a skill from every cache tier, forcing the next
// LoadSkill call to re-read from disk.
func (l *SkillsLoader) InvalidateSkill(name string) {
	l.metaCache.Delete(name)
	l.contentCache.Delete(name)
	l.resourcesCache.Delete(name)
}

var protocolByExtension = map[string]string{
	".py": "python",
	".sh": "shell",
	".js": "node",
	".ts": "node",
	".rb": "ruby",
	".go": "go",
}

// DetectProtocol reports the execution protocol for a skill: its declared
// metadata.protocol if set, else inferred from its entry file's extension,
// defaulting to "generic".
func (l *SkillsLoader) DetectProtocol(name string) (string, error) {
	rec, ok := l.index.Get(name)
	if !ok {
		return "", skillerr.Wrap(skillerr.SkillNotFound, skillerr.ErrSkillNotFound).WithSkill(name)
	}
	if p := strings.TrimSpace(rec.Metadata.Protocol); p != "" {
		return p, nil
	}
	ext := strings.ToLower(filepath.Ext(rec.Metadata.ResourceSpec.Entry))
	if p, ok := protocolByExtension[ext]; ok {
		return p, nil
	}
	return "generic", nil
}

// GetToolDefinitions returns a skill's declared tool surface, synthesizing a
// single default tool from its metadata when none is declared.
func (l *SkillsLoader) GetToolDefinitions(name string) ([]ToolSpec, error) {
	rec, ok := l.index.Get(name)
	if !ok {
		return nil, skillerr.Wrap(skillerr.SkillNotFound, skillerr.ErrSkillNotFound).WithSkill(name)
	}
	meta := rec.Metadata
	if len(meta.Tools) > 0 {
		return meta.Tools, nil
	}
	return []ToolSpec{{
		Name:        meta.Name,
		Description: meta.Description,
		Returns:     ReturnSpec{Type: "object", Description: "skill execution result"},
	}}, nil
}
