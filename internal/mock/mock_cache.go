// Package mock provides mock implementations for testing.
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockCache is a mock implementation of the sharedcache.Cache interface.
type MockCache struct {
	mock.Mock
}

// Store mocks the Store method.
func (m *MockCache) Store(ctx context.Context, key string, data []byte) error {
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

// Find mocks the Find method.
func (m *MockCache) Find(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

// Close mocks the Close method.
func (m *MockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

// ExpectStore sets up an expectation for Store.
func (m *MockCache) ExpectStore(key string, err error) *mock.Call {
	return m.On("Store", mock.Anything, key, mock.Anything).Return(err)
}

// ExpectFind sets up an expectation for Find.
func (m *MockCache) ExpectFind(key string, data []byte, found bool, err error) *mock.Call {
	return m.On("Find", mock.Anything, key).Return(data, found, err)
}
