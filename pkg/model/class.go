// Package model defines the data types shared across the verification engine.
package model

// Class represents a loaded class as seen by the verifier.
//
// Only the fields the relationship engine consumes are modeled here: the class
// name (internal form, e.g. "java/lang/Object"), whether the class is an
// interface, and the superclass link used for hierarchy walks.
type Class struct {
	Name        string
	IsInterface bool
	Super       *Class
}

// ThrowableClassName is the internal name of the well-known throwable class.
// A deferred parent with this name is tracked as a record flag rather than a
// parent-list node.
const ThrowableClassName = "java/lang/Throwable"

// LoaderKind identifies the kind of class loader owning a relationship table.
// The kind determines the initial parent-node pool reservation.
type LoaderKind int

const (
	// LoaderKindCustom is any user-defined class loader.
	LoaderKindCustom LoaderKind = iota
	// LoaderKindExtension is the platform/extension class loader.
	LoaderKindExtension
	// LoaderKindApplication is the application (system classpath) class loader.
	LoaderKindApplication
	// LoaderKindSystem is the bootstrap class loader.
	LoaderKindSystem
)

// String returns the string representation of LoaderKind.
func (k LoaderKind) String() string {
	switch k {
	case LoaderKindSystem:
		return "system"
	case LoaderKindExtension:
		return "extension"
	case LoaderKindApplication:
		return "application"
	case LoaderKindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// ParseLoaderKind parses a string to LoaderKind. Unknown strings map to
// LoaderKindCustom, matching how the runtime treats unrecognized loaders.
func ParseLoaderKind(s string) LoaderKind {
	switch s {
	case "system", "bootstrap":
		return LoaderKindSystem
	case "extension", "platform":
		return LoaderKindExtension
	case "application", "app":
		return LoaderKindApplication
	default:
		return LoaderKindCustom
	}
}
