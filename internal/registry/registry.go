// Package registry provides the loaded-class registry and class-loader
// entities the verification engine runs against.
//
// The engine itself only consumes the registry through an interface; this
// in-memory implementation backs the CLI and the tests instead of a real
// class-loading subsystem.
package registry

import (
	"sync"

	"github.com/class-verify/internal/relationship"
	"github.com/class-verify/pkg/errors"
	"github.com/class-verify/pkg/model"
	"github.com/class-verify/pkg/utils"
)

// ClassLoader owns the classes it has defined and the deferred-relationship
// state recorded for them. The relationship table is created on first use and
// torn down with the loader.
type ClassLoader struct {
	name    string
	kind    model.LoaderKind
	classes map[string]*model.Class

	// loadingLock serializes class definition and relationship mutation for
	// this loader, standing in for the runtime's class-loading lock.
	loadingLock sync.Mutex

	relationships *relationship.Table
}

// Name returns the loader's name.
func (l *ClassLoader) Name() string {
	return l.name
}

// Kind returns the loader's kind.
func (l *ClassLoader) Kind() model.LoaderKind {
	return l.kind
}

// LoadingLock exposes the loader's coarse-grained lock. The engine holds it
// across every relationship-table mutation and lookup.
func (l *ClassLoader) LoadingLock() *sync.Mutex {
	return &l.loadingLock
}

// Relationships returns the loader's relationship table, or nil if no
// relationship has been recorded yet. Callers must hold the loading lock.
func (l *ClassLoader) Relationships() *relationship.Table {
	return l.relationships
}

// EnsureRelationships returns the loader's relationship table, creating the
// table and node pool on first use. Callers must hold the loading lock.
func (l *ClassLoader) EnsureRelationships(limits relationship.Limits, log utils.Logger) *relationship.Table {
	if l.relationships == nil {
		l.relationships = relationship.NewTable(l.kind, limits, log)
	}
	return l.relationships
}

// TeardownRelationships frees the loader's relationship table and pool.
// Callers must hold the loading lock.
func (l *ClassLoader) TeardownRelationships() {
	if l.relationships != nil {
		l.relationships.Teardown()
		l.relationships = nil
	}
}

// Registry is an in-memory loaded-class registry with a bootstrap loader that
// pre-defines the well-known classes the verifier depends on.
type Registry struct {
	mu        sync.RWMutex
	loaders   map[string]*ClassLoader
	bootstrap *ClassLoader
	throwable *model.Class
	log       utils.Logger
}

// BootstrapLoaderName names the registry's built-in bootstrap loader.
const BootstrapLoaderName = "bootstrap"

// NewRegistry creates a registry whose bootstrap loader holds
// java/lang/Object and java/lang/Throwable, mirroring the runtime guarantee
// that Throwable is loaded before any verification runs.
func NewRegistry(log utils.Logger) *Registry {
	if log == nil {
		log = &utils.NullLogger{}
	}
	object := &model.Class{Name: "java/lang/Object"}
	throwable := &model.Class{Name: model.ThrowableClassName, Super: object}

	bootstrap := &ClassLoader{
		name: BootstrapLoaderName,
		kind: model.LoaderKindSystem,
		classes: map[string]*model.Class{
			object.Name:    object,
			throwable.Name: throwable,
		},
	}

	return &Registry{
		loaders:   map[string]*ClassLoader{BootstrapLoaderName: bootstrap},
		bootstrap: bootstrap,
		throwable: throwable,
		log:       log,
	}
}

// BootstrapLoader returns the built-in bootstrap loader.
func (r *Registry) BootstrapLoader() *ClassLoader {
	return r.bootstrap
}

// Loader returns the named loader, creating it with the given kind on first
// use.
func (r *Registry) Loader(name string, kind model.LoaderKind) *ClassLoader {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.loaders[name]; ok {
		return l
	}
	l := &ClassLoader{
		name:    name,
		kind:    kind,
		classes: make(map[string]*model.Class),
	}
	r.loaders[name] = l
	return l
}

// DefineClass records a newly loaded class in the loader. The superclass name
// must already resolve (through the loader or the bootstrap loader) unless it
// is empty, which defines a root class.
func (r *Registry) DefineClass(loader *ClassLoader, name string, isInterface bool, superName string) (*model.Class, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return nil, errors.Wrap(errors.CodeInvalidInput, "class name is empty", nil)
	}
	if _, ok := loader.classes[name]; ok {
		return nil, errors.Wrap(errors.CodeInvalidInput, "class already defined in loader", nil)
	}

	var super *model.Class
	if superName != "" {
		super = r.findLocked(loader, superName)
		if super == nil {
			return nil, errors.Wrap(errors.CodeNotFound, "superclass not loaded", nil)
		}
	}

	c := &model.Class{Name: name, IsInterface: isInterface, Super: super}
	loader.classes[name] = c
	r.log.Debug("defined class %s (interface=%v) in loader %s", name, isInterface, loader.name)
	return c, nil
}

// FindLoadedClass looks the name up in the loader, delegating to the
// bootstrap loader the way real loaders delegate upward. Returns nil if the
// class is not loaded.
func (r *Registry) FindLoadedClass(loader *ClassLoader, name []byte) *model.Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findLocked(loader, string(name))
}

func (r *Registry) findLocked(loader *ClassLoader, name string) *model.Class {
	if c, ok := loader.classes[name]; ok {
		return c
	}
	if loader != r.bootstrap {
		if c, ok := r.bootstrap.classes[name]; ok {
			return c
		}
	}
	return nil
}

// IsSameOrSuperClassOf reports whether ancestor is descendant or appears on
// its superclass chain.
func (r *Registry) IsSameOrSuperClassOf(ancestor, descendant *model.Class) bool {
	for c := descendant; c != nil; c = c.Super {
		if c == ancestor {
			return true
		}
	}
	return false
}

// ThrowableClass returns the well-known throwable class.
func (r *Registry) ThrowableClass() *model.Class {
	return r.throwable
}
