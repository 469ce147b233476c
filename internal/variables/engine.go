// Package variables implements the priority-ordered placeholder expansion
// pipeline: {{namespace:arg1:arg2}} spans in a composed prompt are resolved
// by the first registered Provider that claims their namespace.
package variables

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/skillrt/internal/cache"
)

// Context carries whatever a Provider needs to expand a placeholder. It is
// intentionally sparse — providers type-assert or look up what they need
// from Data.
type Context struct {
	SessionID string
	Data      map[string]any
}

// Fingerprint derives the cache key component that varies with context: the
// session ID plus a stable hash of Data's string representation. Two
// contexts with the same session and same data expand to the same cached
// result.
func (c Context) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(c.SessionID))
	keys := make([]string, 0, len(c.Data))
	for k := range c.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, c.Data[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Provider resolves placeholders within one namespace. Expand returns
// (value, true) on success, or ("", false) to fall through to the next
// provider registered for the same namespace.
type Provider interface {
	Namespace() string
	Priority() int
	Expand(ctx context.Context, placeholder string, args []string, vctx Context) (string, bool)
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)((?::[^{}]*)?)\s*\}\}`)

// CacheTTL is the default per-(placeholder, contextFingerprint) expansion
// cache lifetime.
const CacheTTL = 60 * time.Second

// Engine (C11) is the registry of Providers and the regex-based scanner that
// applies them to a composed prompt.
type Engine struct {
	log       *slog.Logger
	providers map[string][]Provider // namespace -> providers, ascending priority
	expandCache *cache.TTLCache[string, string]
}

// New constructs an empty Engine with the default expansion cache.
func New(log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		log:         log,
		providers:   make(map[string][]Provider),
		expandCache: cache.New[string, string](cache.Config{MaxSize: 512, DefaultTTL: CacheTTL}),
	}
}

// Register adds a Provider, keeping each namespace's slice sorted ascending
// by priority. Among providers of equal priority the latest registration is
// tried first, and registering one logs a warning.
func (e *Engine) Register(p Provider) {
	for _, existing := range e.providers[p.Namespace()] {
		if existing.Priority() == p.Priority() {
			e.log.Warn("variable provider registered at an existing priority; the later registration wins", "namespace", p.Namespace(), "priority", p.Priority())
			break
		}
	}
	list := append([]Provider{p}, e.providers[p.Namespace()]...)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Priority() < list[j].Priority() })
	e.providers[p.Namespace()] = list
}

// Expand replaces every {{ns:arg...}} placeholder in text. Expansion is
// cooperative: on ctx deadline, any placeholder not yet resolved is left
// verbatim and logged, and the partial result is still returned.
func (e *Engine) Expand(ctx context.Context, text string, vctx Context) string {
	var out strings.Builder
	last := 0

	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(text, -1) {
		if ctx.Err() != nil {
			e.log.Warn("variable expansion cancelled, leaving remaining placeholders verbatim")
			out.WriteString(text[last:])
			return out.String()
		}

		full := text[loc[0]:loc[1]]
		ns := text[loc[2]:loc[3]]
		argsRaw := ""
		if loc[4] >= 0 {
			argsRaw = text[loc[4]:loc[5]]
		}
		args := splitArgs(argsRaw)

		out.WriteString(text[last:loc[0]])

		value, ok := e.expandOne(ctx, ns, full, args, vctx)
		if ok {
			out.WriteString(value)
		} else {
			out.WriteString(full)
		}
		last = loc[1]
	}
	out.WriteString(text[last:])
	return out.String()
}

func splitArgs(raw string) []string {
	raw = strings.TrimPrefix(raw, ":")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ":")
}

func (e *Engine) expandOne(ctx context.Context, ns, placeholder string, args []string, vctx Context) (string, bool) {
	cacheKey := placeholder + "|" + vctx.Fingerprint()
	if v, ok := e.expandCache.Get(cacheKey); ok {
		return v, true
	}

	providers, ok := e.providers[ns]
	if !ok {
		return "", false
	}

	for _, p := range providers {
		if ctx.Err() != nil {
			return "", false
		}
		value, ok := p.Expand(ctx, placeholder, args, vctx)
		if ok {
			e.expandCache.Set(cacheKey, value)
			return value, true
		}
	}
	return "", false
}

// --- value-coercion helpers, adapted from the corpus's template function
// map: the semantics are identical to toString/toInt/toBool/default even
// though this engine doesn't dispatch through text/template.

func toString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any, fallback int) int {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func toBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "" && val != "false" && val != "0"
	default:
		return v != nil
	}
}

func defaultValue(def, value string) string {
	if value == "" {
		return def
	}
	return value
}
