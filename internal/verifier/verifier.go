// Package verifier implements deferred class-relationship verification.
//
// While a class's bytecode is verified, subtype checks whose classes are not
// loaded yet are recorded as snippets instead of forcing the classes to load.
// Once the pass completes the snippets are processed: relationships between
// loaded classes are checked immediately, the rest are recorded in the
// loader's relationship table and validated as the missing classes load.
// Serialized snippets can be persisted to the shared cache so later runs of
// the same class skip re-deriving them.
package verifier

import (
	"github.com/class-verify/internal/registry"
	"github.com/class-verify/pkg/model"
)

// ClassRegistry is the loaded-class view the engine verifies against.
// *registry.Registry implements it; tests substitute mocks.
type ClassRegistry interface {
	// FindLoadedClass returns the class with the given internal name if the
	// loader (or a loader it delegates to) has loaded it, else nil.
	FindLoadedClass(loader *registry.ClassLoader, name []byte) *model.Class

	// IsSameOrSuperClassOf reports whether ancestor is descendant or one of
	// its superclasses.
	IsSameOrSuperClassOf(ancestor, descendant *model.Class) bool

	// ThrowableClass returns the well-known throwable class.
	ThrowableClass() *model.Class
}

// loaderResolver binds a ClassRegistry to one loader, giving the
// relationship table the narrow view it validates against.
type loaderResolver struct {
	registry ClassRegistry
	loader   *registry.ClassLoader
}

func (r loaderResolver) FindLoadedClass(name []byte) *model.Class {
	return r.registry.FindLoadedClass(r.loader, name)
}

func (r loaderResolver) IsSameOrSuperClassOf(ancestor, descendant *model.Class) bool {
	return r.registry.IsSameOrSuperClassOf(ancestor, descendant)
}

func (r loaderResolver) ThrowableClass() *model.Class {
	return r.registry.ThrowableClass()
}
