package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-verify/internal/relationship"
	apperrors "github.com/class-verify/pkg/errors"
	"github.com/class-verify/pkg/model"
)

func TestNewRegistry_WellKnownClasses(t *testing.T) {
	r := NewRegistry(nil)

	object := r.FindLoadedClass(r.BootstrapLoader(), []byte("java/lang/Object"))
	require.NotNil(t, object)

	throwable := r.ThrowableClass()
	require.NotNil(t, throwable)
	assert.Equal(t, model.ThrowableClassName, throwable.Name)
	assert.Equal(t, object, throwable.Super)
	assert.True(t, r.IsSameOrSuperClassOf(object, throwable))
}

func TestRegistry_LoaderCreateOrGet(t *testing.T) {
	r := NewRegistry(nil)

	app := r.Loader("app", model.LoaderKindApplication)
	same := r.Loader("app", model.LoaderKindCustom)
	assert.Same(t, app, same, "loader is created once per name")
	assert.Equal(t, model.LoaderKindApplication, same.Kind())
}

func TestRegistry_DefineClass(t *testing.T) {
	r := NewRegistry(nil)
	app := r.Loader("app", model.LoaderKindApplication)

	base, err := r.DefineClass(app, "a/Base", false, "java/lang/Object")
	require.NoError(t, err)
	child, err := r.DefineClass(app, "a/Child", false, "a/Base")
	require.NoError(t, err)

	assert.True(t, r.IsSameOrSuperClassOf(base, child))
	assert.False(t, r.IsSameOrSuperClassOf(child, base))

	t.Run("duplicate definition", func(t *testing.T) {
		_, err := r.DefineClass(app, "a/Base", false, "")
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))
	})

	t.Run("missing superclass", func(t *testing.T) {
		_, err := r.DefineClass(app, "a/Orphan", false, "a/Missing")
		assert.Equal(t, apperrors.CodeNotFound, apperrors.GetErrorCode(err))
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := r.DefineClass(app, "", false, "")
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))
	})
}

func TestRegistry_FindDelegatesToBootstrap(t *testing.T) {
	r := NewRegistry(nil)
	app := r.Loader("app", model.LoaderKindApplication)

	// Bootstrap classes are visible through child loaders.
	assert.NotNil(t, r.FindLoadedClass(app, []byte("java/lang/Object")))

	// Application classes are not visible to the bootstrap loader.
	_, err := r.DefineClass(app, "a/AppOnly", false, "")
	require.NoError(t, err)
	assert.Nil(t, r.FindLoadedClass(r.BootstrapLoader(), []byte("a/AppOnly")))
	assert.NotNil(t, r.FindLoadedClass(app, []byte("a/AppOnly")))
}

func TestClassLoader_RelationshipLifecycle(t *testing.T) {
	r := NewRegistry(nil)
	app := r.Loader("app", model.LoaderKindApplication)

	app.LoadingLock().Lock()
	defer app.LoadingLock().Unlock()

	assert.Nil(t, app.Relationships(), "table is lazy")

	table := app.EnsureRelationships(relationship.Limits{}, nil)
	require.NotNil(t, table)
	assert.Same(t, table, app.EnsureRelationships(relationship.Limits{}, nil))

	require.NoError(t, table.Record([]byte("a/Child"), []byte("a/Parent")))
	assert.Equal(t, 1, table.Len())

	app.TeardownRelationships()
	assert.Nil(t, app.Relationships())
}
