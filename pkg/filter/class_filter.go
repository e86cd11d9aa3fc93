// Package filter provides class name filtering for the shared snippet cache.
// It decides which classes have their relationship snippets persisted across
// runs; excluded classes are still verified, their data just stays local.
package filter

import (
	"strings"
	"sync"
)

// ClassFilter decides whether a class is eligible for snippet caching.
// Class names use the internal slash-separated form, e.g. "java/lang/String".
// It is safe for concurrent use.
type ClassFilter struct {
	mu sync.RWMutex

	// Exact class names that are never cached
	excludedClasses map[string]bool

	// Prefix patterns, stored without their trailing "*"
	excludedPrefixes []string

	// Substring patterns, stored without surrounding "*"
	excludedContains []string

	// Cache for frequently queried classes
	decisionCache     map[string]bool
	decisionCacheSize int
}

// NewClassFilter creates a filter with default exclusion rules.
// Generated and hidden classes get fresh names on every run, so caching
// their snippets only grows the cache without ever producing a hit.
func NewClassFilter() *ClassFilter {
	f := &ClassFilter{
		excludedClasses:   make(map[string]bool),
		decisionCache:     make(map[string]bool),
		decisionCacheSize: 10000,
	}
	f.initDefaults()
	return f
}

// initDefaults installs the default exclusion rules.
func (f *ClassFilter) initDefaults() {
	f.excludedPrefixes = []string{
		// Runtime-generated proxies
		"jdk/proxy",
		"com/sun/proxy/",
		// Reflection accessors generated at runtime
		"jdk/internal/reflect/Generated",
		"sun/reflect/Generated",
	}

	f.excludedContains = []string{
		// Lambda and method-handle classes carry per-run counters in their names
		"$$Lambda",
		"$$StringConcat",
		"/0x",
	}
}

// ShouldCache reports whether snippets for the class may be persisted to the
// shared cache.
func (f *ClassFilter) ShouldCache(className string) bool {
	if className == "" {
		return false
	}

	f.mu.RLock()
	if ok, hit := f.decisionCache[className]; hit {
		f.mu.RUnlock()
		return ok
	}
	f.mu.RUnlock()

	ok := f.decideUncached(className)

	f.mu.Lock()
	if len(f.decisionCache) < f.decisionCacheSize {
		f.decisionCache[className] = ok
	}
	f.mu.Unlock()

	return ok
}

// decideUncached computes the decision without using the cache.
func (f *ClassFilter) decideUncached(className string) bool {
	f.mu.RLock()
	excluded := f.excludedClasses[className]
	prefixes := f.excludedPrefixes
	contains := f.excludedContains
	f.mu.RUnlock()

	if excluded {
		return false
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(className, prefix) {
			return false
		}
	}

	for _, substr := range contains {
		if strings.Contains(className, substr) {
			return false
		}
	}

	return true
}

// AddPattern adds an exclusion pattern. Three forms are supported:
// "prefix/*" excludes by prefix, "*substr*" excludes by substring, and a
// plain name excludes that exact class.
func (f *ClassFilter) AddPattern(pattern string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 2:
		f.excludedContains = append(f.excludedContains, pattern[1:len(pattern)-1])
	case strings.HasSuffix(pattern, "*"):
		f.excludedPrefixes = append(f.excludedPrefixes, pattern[:len(pattern)-1])
	default:
		f.excludedClasses[pattern] = true
	}

	// Decisions may change, drop the cache
	f.decisionCache = make(map[string]bool)
}

// AddPatterns adds multiple exclusion patterns.
func (f *ClassFilter) AddPatterns(patterns []string) {
	for _, pattern := range patterns {
		f.AddPattern(pattern)
	}
}

// ClearCache clears the decision cache.
func (f *ClassFilter) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.decisionCache = make(map[string]bool)
}

// CacheStats returns cache statistics.
func (f *ClassFilter) CacheStats() (size int, maxSize int) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return len(f.decisionCache), f.decisionCacheSize
}
