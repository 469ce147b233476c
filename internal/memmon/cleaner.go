package memmon

import (
	"context"
	"runtime"
	"time"

	"github.com/haasonsaas/skillrt/internal/cache"
	"github.com/haasonsaas/skillrt/internal/skills"
	"github.com/haasonsaas/skillrt/internal/usage"
)

// SkillsCleaner (C8's Cleaner half) evicts from the loader's cache tiers and
// tightens usage retention as classified pressure rises.
type SkillsCleaner struct {
	Metadata  *cache.TTLCache[string, *skills.Metadata]
	Content   *cache.TTLCache[string, *skills.Content]
	Resources *cache.TTLCache[string, *skills.ResourceListing]
	Usage     *usage.Tracker
}

// NewSkillsCleaner wires a Cleaner against a loader's cache tiers and the
// shared usage tracker.
func NewSkillsCleaner(loader *skills.SkillsLoader, tracker *usage.Tracker) *SkillsCleaner {
	return &SkillsCleaner{
		Metadata:  loader.MetadataCache(),
		Content:   loader.ContentCache(),
		Resources: loader.ResourcesCache(),
		Usage:     tracker,
	}
}

// Clean implements Cleaner.
func (c *SkillsCleaner) Clean(_ context.Context, pressure Pressure) CleanupPass {
	cleaned := map[string]int{}

	cleaned["expiredUsage"] = c.Usage.ClearExpired()

	switch pressure {
	case Normal:
		// prune expired usage records only; nothing else.
	case Moderate:
		cleaned["content"] = c.Content.EvictFraction(0.5)
		cleaned["resources"] = c.Resources.EvictFraction(0.3)
	case High:
		cleaned["content"] = c.Content.EvictFraction(0.5)
		cleaned["resources"] = c.Resources.EvictFraction(0.8)
		c.Usage.SetWindow(24 * time.Hour)
	case Critical:
		cleaned["metadata"] = c.Metadata.EvictFraction(0.8)
		cleaned["content"] = c.Content.EvictFraction(0.8)
		cleaned["resources"] = c.Resources.EvictFraction(0.8)
		c.Usage.SetWindow(12 * time.Hour)
		runtime.GC()
	}

	return CleanupPass{Cleaned: cleaned}
}
