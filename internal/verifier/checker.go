package verifier

import (
	"github.com/class-verify/internal/registry"
	apperrors "github.com/class-verify/pkg/errors"
)

// checkSnippetRelationship resolves one deferred (child, parent) pair
// against the loader's loaded classes. The parent is looked up first: a
// loaded interface parent satisfies the check outright, an unloaded parent
// defers it regardless of the child. Only when both classes are loaded is
// the superclass chain walked.
//
// Caller holds the loader's loading lock.
func (e *Engine) checkSnippetRelationship(loader *registry.ClassLoader, childName, parentName []byte) error {
	parentClass := e.registry.FindLoadedClass(loader, parentName)
	if parentClass == nil {
		return e.recordRelationship(loader, childName, parentName)
	}
	if parentClass.IsInterface {
		// Interfaces satisfy any subtype obligation at this stage; the
		// relationship is not recorded.
		e.log.Debug("parent %s is an interface, relationship holds", parentName)
		return nil
	}

	childClass := e.registry.FindLoadedClass(loader, childName)
	if childClass == nil {
		return e.recordRelationship(loader, childName, parentName)
	}

	if !e.registry.IsSameOrSuperClassOf(parentClass, childClass) {
		e.log.Debug("class %s is not a subclass of %s", childName, parentName)
		return apperrors.Wrap(apperrors.CodeVerifyError, string(parentName), nil)
	}
	return nil
}

// recordRelationship defers the pair into the loader's relationship table,
// creating the table on first use.
func (e *Engine) recordRelationship(loader *registry.ClassLoader, childName, parentName []byte) error {
	table := loader.EnsureRelationships(e.relationshipLimits(), e.log)
	if err := table.Record(childName, parentName); err != nil {
		return err
	}
	e.log.Debug("recorded deferred relationship %s -> %s in loader %s",
		childName, parentName, loader.Name())
	return nil
}
