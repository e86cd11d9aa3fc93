package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldCacheDefaults(t *testing.T) {
	f := NewClassFilter()

	tests := []struct {
		name      string
		className string
		want      bool
	}{
		{"ordinary class", "com/example/service/OrderService", true},
		{"jdk class", "java/lang/String", true},
		{"empty name", "", false},
		{"jdk proxy", "jdk/proxy2/$Proxy17", false},
		{"legacy proxy", "com/sun/proxy/$Proxy3", false},
		{"generated accessor", "jdk/internal/reflect/GeneratedMethodAccessor42", false},
		{"lambda class", "com/example/Handler$$Lambda$12", false},
		{"hidden class", "com/example/Handler/0x0000012345", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ShouldCache(tt.className))
		})
	}
}

func TestAddPattern(t *testing.T) {
	f := NewClassFilter()

	f.AddPattern("com/example/generated/*")
	f.AddPattern("*Synthetic*")
	f.AddPattern("com/example/Exact")

	assert.False(t, f.ShouldCache("com/example/generated/Mapper"))
	assert.False(t, f.ShouldCache("com/example/FooSyntheticBar"))
	assert.False(t, f.ShouldCache("com/example/Exact"))
	assert.True(t, f.ShouldCache("com/example/Other"))
}

func TestAddPatternInvalidatesCache(t *testing.T) {
	f := NewClassFilter()

	// Prime the cache with a positive decision
	assert.True(t, f.ShouldCache("com/example/Later"))
	size, _ := f.CacheStats()
	assert.Equal(t, 1, size)

	f.AddPattern("com/example/*")
	assert.False(t, f.ShouldCache("com/example/Later"))
}

func TestCacheStats(t *testing.T) {
	f := NewClassFilter()

	f.ShouldCache("a/B")
	f.ShouldCache("c/D")

	size, maxSize := f.CacheStats()
	assert.Equal(t, 2, size)
	assert.Equal(t, 10000, maxSize)

	f.ClearCache()
	size, _ = f.CacheStats()
	assert.Equal(t, 0, size)
}
