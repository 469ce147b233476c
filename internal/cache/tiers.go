package cache

import "time"

// Default sizes/TTLs for the three named cache tiers the skills runtime
// keeps: metadata (hot, large), content (warm, medium), resources (cold,
// small). Each tier holds a different value type, so callers instantiate
// New[string, V] directly with these defaults rather than sharing one
// generic struct across tiers.
const (
	MetadataMaxSize  = 256
	ContentMaxSize   = 32
	ResourcesMaxSize = 16
)

const (
	MetadataTTL  = time.Hour
	ContentTTL   = 30 * time.Minute
	ResourcesTTL = 15 * time.Minute
)
