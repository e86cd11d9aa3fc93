package verifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mocks "github.com/class-verify/internal/mock"
	"github.com/class-verify/internal/registry"
	"github.com/class-verify/internal/sharedcache"
	"github.com/class-verify/internal/snippet"
	apperrors "github.com/class-verify/pkg/errors"
	"github.com/class-verify/pkg/filter"
	"github.com/class-verify/pkg/model"
)

type testEnv struct {
	registry *registry.Registry
	loader   *registry.ClassLoader
	engine   *Engine
	cache    *sharedcache.MemoryCache
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	reg := registry.NewRegistry(nil)
	cache := sharedcache.NewMemoryCache()
	return &testEnv{
		registry: reg,
		loader:   reg.Loader("app", model.LoaderKindApplication),
		engine:   NewEngine(reg, cache, nil, cfg, nil),
		cache:    cache,
	}
}

func (env *testEnv) define(t *testing.T, name string, isInterface bool, superName string) *model.Class {
	t.Helper()
	c, err := env.registry.DefineClass(env.loader, name, isInterface, superName)
	require.NoError(t, err)
	return c
}

func names(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func TestRecordSnippetDedup(t *testing.T) {
	env := newTestEnv(t, Config{})
	v := NewVerification("com/example/C", names("com/example/C", "com/example/P"))

	added, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)
	assert.False(t, added)

	assert.Equal(t, 1, v.SnippetCount())
}

func TestRecordSnippetBadIndex(t *testing.T) {
	env := newTestEnv(t, Config{})
	v := NewVerification("com/example/C", names("com/example/C"))

	_, err := env.engine.RecordSnippet(v, 0, 5)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternalError, apperrors.GetErrorCode(err))
}

func TestRecordSnippetLimit(t *testing.T) {
	env := newTestEnv(t, Config{MaxSnippets: 1})
	v := NewVerification("com/example/C", names("a/A", "b/B", "c/C"))

	_, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)

	_, err = env.engine.RecordSnippet(v, 0, 2)
	require.Error(t, err)
	assert.True(t, apperrors.IsInsufficientMemory(err))

	// Re-recording the existing pair still succeeds at the limit
	added, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestProcessSnippetsBothLoaded(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.define(t, "com/example/P", false, "java/lang/Object")
	env.define(t, "com/example/C", false, "com/example/P")

	v := NewVerification("com/example/C", names("com/example/C", "com/example/P"))
	_, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)

	require.NoError(t, env.engine.ProcessSnippets(context.Background(), v, env.loader, nil))

	// Proven relationships are not recorded in the loader table
	assert.Nil(t, env.loader.Relationships())
}

func TestProcessSnippetsInterfaceParent(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.define(t, "com/example/I", true, "")
	// The child does not implement the interface; at this stage interfaces
	// satisfy any obligation
	env.define(t, "com/example/C", false, "java/lang/Object")

	v := NewVerification("com/example/C", names("com/example/C", "com/example/I"))
	_, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)

	require.NoError(t, env.engine.ProcessSnippets(context.Background(), v, env.loader, nil))
	assert.Nil(t, env.loader.Relationships())
}

func TestProcessSnippetsIncompatible(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.define(t, "com/example/P", false, "java/lang/Object")
	env.define(t, "com/example/C", false, "java/lang/Object")

	v := NewVerification("com/example/C", names("com/example/C", "com/example/P"))
	_, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)

	err = env.engine.ProcessSnippets(context.Background(), v, env.loader, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsVerifyError(err))
	assert.Equal(t, "com/example/P", apperrors.GetErrorMessage(err))
}

func TestProcessSnippetsDefersUnloadedParent(t *testing.T) {
	env := newTestEnv(t, Config{})

	v := NewVerification("com/example/C", names("com/example/C", "com/example/P"))
	_, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)

	require.NoError(t, env.engine.ProcessSnippets(context.Background(), v, env.loader, nil))

	table := env.loader.Relationships()
	require.NotNil(t, table)
	assert.Equal(t, map[string][]string{
		"com/example/C": {"com/example/P"},
	}, table.Snapshot())

	// Classes load later with a valid relationship
	env.define(t, "com/example/P", false, "java/lang/Object")
	c := env.define(t, "com/example/C", false, "com/example/P")

	failed := env.engine.ValidateRelationships(env.loader, []byte("com/example/C"), c)
	assert.Nil(t, failed)
	assert.Equal(t, 0, table.Len())
}

func TestValidateRelationshipsFailure(t *testing.T) {
	env := newTestEnv(t, Config{})

	v := NewVerification("com/example/C", names("com/example/C", "com/example/P"))
	_, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)
	require.NoError(t, env.engine.ProcessSnippets(context.Background(), v, env.loader, nil))

	p := env.define(t, "com/example/P", false, "java/lang/Object")
	c := env.define(t, "com/example/C", false, "java/lang/Object")

	failed := env.engine.ValidateRelationships(env.loader, []byte("com/example/C"), c)
	assert.Same(t, p, failed)

	// Failed records are retained
	assert.Equal(t, 1, env.loader.Relationships().Len())
}

func TestThrowableRelationship(t *testing.T) {
	env := newTestEnv(t, Config{})

	v := NewVerification("com/example/E", names("com/example/E", model.ThrowableClassName))
	_, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)
	require.NoError(t, env.engine.ProcessSnippets(context.Background(), v, env.loader, nil))

	t.Run("extends throwable", func(t *testing.T) {
		e := env.define(t, "com/example/E", false, model.ThrowableClassName)
		failed := env.engine.ValidateRelationships(env.loader, []byte("com/example/E"), e)
		assert.Nil(t, failed)
	})

	t.Run("does not extend throwable", func(t *testing.T) {
		v2 := NewVerification("com/example/F", names("com/example/F", model.ThrowableClassName))
		_, err := env.engine.RecordSnippet(v2, 0, 1)
		require.NoError(t, err)
		require.NoError(t, env.engine.ProcessSnippets(context.Background(), v2, env.loader, nil))

		f := env.define(t, "com/example/F", false, "java/lang/Object")
		failed := env.engine.ValidateRelationships(env.loader, []byte("com/example/F"), f)
		require.NotNil(t, failed)
		assert.Equal(t, model.ThrowableClassName, failed.Name)
	})
}

func TestMustBeInterfacePropagation(t *testing.T) {
	env := newTestEnv(t, Config{})

	// Parent unloaded, child loads first: validating the child turns the
	// pending parent into an interface obligation.
	v := NewVerification("com/example/C", names("com/example/C", "com/example/P"))
	_, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)
	require.NoError(t, env.engine.ProcessSnippets(context.Background(), v, env.loader, nil))

	c := env.define(t, "com/example/C", false, "java/lang/Object")
	failed := env.engine.ValidateRelationships(env.loader, []byte("com/example/C"), c)
	assert.Nil(t, failed)

	t.Run("parent loads as class and fails", func(t *testing.T) {
		p := env.define(t, "com/example/P", false, "java/lang/Object")
		failed := env.engine.ValidateRelationships(env.loader, []byte("com/example/P"), p)
		assert.Same(t, p, failed)
	})
}

func TestMustBeInterfaceSatisfied(t *testing.T) {
	env := newTestEnv(t, Config{})

	v := NewVerification("com/example/C", names("com/example/C", "com/example/I"))
	_, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)
	require.NoError(t, env.engine.ProcessSnippets(context.Background(), v, env.loader, nil))

	c := env.define(t, "com/example/C", false, "java/lang/Object")
	require.Nil(t, env.engine.ValidateRelationships(env.loader, []byte("com/example/C"), c))

	i := env.define(t, "com/example/I", true, "")
	assert.Nil(t, env.engine.ValidateRelationships(env.loader, []byte("com/example/I"), i))
	assert.Equal(t, 0, env.loader.Relationships().Len())
}

func TestProcessCachedSnippets(t *testing.T) {
	env := newTestEnv(t, Config{})

	// Serialize a pass's snippets, then replay them as cached data
	store := snippet.NewStore(0)
	_, err := store.Record(0, 1)
	require.NoError(t, err)
	buf, err := snippet.Serialize(store, names("com/example/C", "com/example/P"), 0)
	require.NoError(t, err)

	v := NewVerification("com/example/C", nil)
	require.NoError(t, env.engine.ProcessSnippets(context.Background(), v, env.loader, buf))

	table := env.loader.Relationships()
	require.NotNil(t, table)
	assert.Equal(t, []string{"com/example/P"}, table.Snapshot()["com/example/C"])
}

func TestProcessCachedMalformed(t *testing.T) {
	env := newTestEnv(t, Config{})
	v := NewVerification("com/example/C", nil)

	err := env.engine.ProcessSnippets(context.Background(), v, env.loader, []byte{0x01, 0x02})
	require.Error(t, err)
	assert.True(t, apperrors.IsInternalError(err))
}

func TestStoreSnippetsEmptyPass(t *testing.T) {
	env := newTestEnv(t, Config{})
	v := NewVerification("com/example/C", names("com/example/C"))

	stored, err := env.engine.StoreSnippetsToSharedCache(context.Background(), v)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Equal(t, 0, env.cache.Len())
}

func TestStoreSnippetsRoundTrip(t *testing.T) {
	env := newTestEnv(t, Config{})
	v := NewVerification("com/example/C", names("com/example/C", "com/example/P"))
	_, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)

	stored, err := env.engine.StoreSnippetsToSharedCache(context.Background(), v)
	require.NoError(t, err)
	assert.True(t, stored)

	cached, err := env.engine.FetchSnippetsFromSharedCache(context.Background(), "com/example/C")
	require.NoError(t, err)
	require.NotNil(t, cached)

	reader, err := snippet.NewReader(cached)
	require.NoError(t, err)
	assert.Equal(t, 1, reader.Count())

	child, parent, err := reader.Pair(0)
	require.NoError(t, err)
	assert.Equal(t, "com/example/C", string(child))
	assert.Equal(t, "com/example/P", string(parent))
}

func TestStoreSnippetsDuplicateKey(t *testing.T) {
	env := newTestEnv(t, Config{})
	v := NewVerification("com/example/C", names("com/example/C", "com/example/P"))
	_, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)

	stored, err := env.engine.StoreSnippetsToSharedCache(context.Background(), v)
	require.NoError(t, err)
	assert.True(t, stored)

	// A second store of the same class loses the race; the caller sees the
	// key-exists status alongside stored=false
	stored, err = env.engine.StoreSnippetsToSharedCache(context.Background(), v)
	require.Error(t, err)
	assert.ErrorIs(t, err, sharedcache.ErrKeyExists)
	assert.False(t, stored)
}

func TestStoreSnippetsBufferLimit(t *testing.T) {
	env := newTestEnv(t, Config{MaxBufferBytes: 4})
	v := NewVerification("com/example/C", names("com/example/C", "com/example/P"))
	_, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)

	_, err = env.engine.StoreSnippetsToSharedCache(context.Background(), v)
	require.Error(t, err)
	assert.True(t, apperrors.IsInsufficientMemory(err))
}

func TestStoreSnippetsExcludedClass(t *testing.T) {
	reg := registry.NewRegistry(nil)
	cache := sharedcache.NewMemoryCache()
	f := filter.NewClassFilter()
	engine := NewEngine(reg, cache, f, Config{}, nil)

	v := NewVerification("jdk/proxy2/$Proxy7", names("jdk/proxy2/$Proxy7", "com/example/P"))
	_, err := engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)

	stored, err := engine.StoreSnippetsToSharedCache(context.Background(), v)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.Equal(t, 0, cache.Len())
}

func TestFetchWithoutCache(t *testing.T) {
	reg := registry.NewRegistry(nil)
	engine := NewEngine(reg, nil, nil, Config{}, nil)

	data, err := engine.FetchSnippetsFromSharedCache(context.Background(), "com/example/C")
	require.NoError(t, err)
	assert.Nil(t, data)

	v := NewVerification("com/example/C", names("com/example/C", "com/example/P"))
	_, err = engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)
	stored, err := engine.StoreSnippetsToSharedCache(context.Background(), v)
	require.NoError(t, err)
	assert.False(t, stored)
}

func TestFetchSnippetsCacheFault(t *testing.T) {
	reg := registry.NewRegistry(nil)
	cache := new(mocks.MockCache)
	cache.ExpectFind("com/example/C", nil, false,
		apperrors.Wrap(apperrors.CodeCacheError, "cache backend down", nil))
	engine := NewEngine(reg, cache, nil, Config{}, nil)

	data, err := engine.FetchSnippetsFromSharedCache(context.Background(), "com/example/C")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCacheError, apperrors.GetErrorCode(err))
	assert.Nil(t, data)
}

func TestStoreSnippetsCacheFault(t *testing.T) {
	reg := registry.NewRegistry(nil)
	cache := new(mocks.MockCache)
	cache.ExpectStore("com/example/C",
		apperrors.Wrap(apperrors.CodeCacheError, "cache backend down", nil))
	engine := NewEngine(reg, cache, nil, Config{}, nil)

	v := NewVerification("com/example/C", names("com/example/C", "com/example/P"))
	_, err := engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)

	stored, err := engine.StoreSnippetsToSharedCache(context.Background(), v)
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCacheError, apperrors.GetErrorCode(err))
	assert.False(t, stored)
}

func TestVerifyClassCacheFaultTolerated(t *testing.T) {
	reg := registry.NewRegistry(nil)
	cache := new(mocks.MockCache)
	cacheErr := apperrors.Wrap(apperrors.CodeCacheError, "cache backend down", nil)
	cache.ExpectFind("com/example/C", nil, false, cacheErr)
	cache.ExpectStore("com/example/C", cacheErr)
	loader := reg.Loader("app", model.LoaderKindApplication)
	engine := NewEngine(reg, cache, nil, Config{}, nil)

	_, err := reg.DefineClass(loader, "com/example/P", false, "java/lang/Object")
	require.NoError(t, err)
	_, err = reg.DefineClass(loader, "com/example/C", false, "com/example/P")
	require.NoError(t, err)

	report, err := engine.VerifyClass(context.Background(), loader, ClassVerification{
		ClassName: "com/example/C",
		Names:     []string{"com/example/C", "com/example/P"},
		Snippets:  [][2]int{{0, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "verified", report.Status)
	assert.False(t, report.UsedCachedData)
	assert.False(t, report.StoredToCache)
	cache.AssertExpectations(t)
}

func TestVerifyClassEndToEnd(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.define(t, "com/example/P", false, "java/lang/Object")
	env.define(t, "com/example/C", false, "com/example/P")

	cv := ClassVerification{
		ClassName: "com/example/C",
		Names:     []string{"com/example/C", "com/example/P", "com/example/Later"},
		Snippets:  [][2]int{{0, 1}, {0, 2}},
	}

	report, err := env.engine.VerifyClass(context.Background(), env.loader, cv)
	require.NoError(t, err)
	assert.False(t, report.UsedCachedData)
	assert.True(t, report.StoredToCache)
	assert.Equal(t, 2, report.SnippetCount)
	assert.Equal(t, "deferred", report.Status)
	assert.Equal(t, []string{"com/example/C"}, report.DeferredChecks)

	// A second run of the same class hits the cache
	report2, err := env.engine.VerifyClass(context.Background(), env.loader, cv)
	require.NoError(t, err)
	assert.True(t, report2.UsedCachedData)
	assert.False(t, report2.StoredToCache)
}

func TestVerifyClassFailure(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.define(t, "com/example/P", false, "java/lang/Object")
	env.define(t, "com/example/C", false, "java/lang/Object")

	cv := ClassVerification{
		ClassName: "com/example/C",
		Names:     []string{"com/example/C", "com/example/P"},
		Snippets:  [][2]int{{0, 1}},
	}

	report, err := env.engine.VerifyClass(context.Background(), env.loader, cv)
	require.Error(t, err)
	assert.Equal(t, "failed", report.Status)
	assert.Equal(t, "com/example/P", report.FailedClass)
}

func TestFreeRelationshipTableAndPool(t *testing.T) {
	env := newTestEnv(t, Config{})

	v := NewVerification("com/example/C", names("com/example/C", "com/example/P"))
	_, err := env.engine.RecordSnippet(v, 0, 1)
	require.NoError(t, err)
	require.NoError(t, env.engine.ProcessSnippets(context.Background(), v, env.loader, nil))
	require.NotNil(t, env.loader.Relationships())

	env.engine.FreeRelationshipTableAndPool(env.loader)
	assert.Nil(t, env.loader.Relationships())
}
