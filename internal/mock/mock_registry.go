package mock

import (
	"github.com/stretchr/testify/mock"

	"github.com/class-verify/internal/registry"
	"github.com/class-verify/pkg/model"
)

// MockClassRegistry is a mock implementation of the verifier.ClassRegistry
// interface.
type MockClassRegistry struct {
	mock.Mock
}

// FindLoadedClass mocks the FindLoadedClass method.
func (m *MockClassRegistry) FindLoadedClass(loader *registry.ClassLoader, name []byte) *model.Class {
	args := m.Called(loader, name)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*model.Class)
}

// IsSameOrSuperClassOf mocks the IsSameOrSuperClassOf method.
func (m *MockClassRegistry) IsSameOrSuperClassOf(ancestor, descendant *model.Class) bool {
	args := m.Called(ancestor, descendant)
	return args.Bool(0)
}

// ThrowableClass mocks the ThrowableClass method.
func (m *MockClassRegistry) ThrowableClass() *model.Class {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*model.Class)
}

// ExpectFindLoadedClass sets up an expectation for FindLoadedClass on a
// specific class name.
func (m *MockClassRegistry) ExpectFindLoadedClass(name string, class *model.Class) *mock.Call {
	return m.On("FindLoadedClass", mock.Anything, []byte(name)).Return(class)
}
