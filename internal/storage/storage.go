// Package storage provides object storage backends for serialized snippet
// buffers. Blobs are small and written whole, so the interface works on
// readers rather than files.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/class-verify/pkg/config"
)

// Storage defines the interface for snippet blob storage.
type Storage interface {
	// Upload writes the blob at the specified key.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// Download reads the blob at the specified key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether a blob exists at the specified key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the blob at the specified key.
	Delete(ctx context.Context, key string) error

	// GetURL returns the URL or path for the specified key.
	GetURL(key string) string
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeCOS   StorageType = "cos"
)

// NewStorage creates a Storage instance based on the configuration.
func NewStorage(cfg *config.BlobConfig) (Storage, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	switch StorageType(cfg.Type) {
	case StorageTypeCOS:
		return NewCOSStorage(&COSConfig{
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
			Domain:    cfg.Domain,
			Scheme:    cfg.Scheme,
		})
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}

// ValidateConfig validates the blob storage configuration.
func ValidateConfig(cfg *config.BlobConfig) error {
	if cfg == nil {
		return fmt.Errorf("blob storage config is nil")
	}

	storageType := StorageType(cfg.Type)

	// Empty type defaults to local
	if storageType == "" {
		storageType = StorageTypeLocal
	}

	if storageType != StorageTypeCOS && storageType != StorageTypeLocal {
		return fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}

	if storageType == StorageTypeCOS {
		if cfg.Bucket == "" {
			return fmt.Errorf("COS bucket is required")
		}
		if cfg.Region == "" {
			return fmt.Errorf("COS region is required")
		}
		if cfg.SecretID == "" || cfg.SecretKey == "" {
			return fmt.Errorf("COS credentials are required")
		}
	}

	if storageType == StorageTypeLocal && cfg.LocalPath == "" {
		return fmt.Errorf("local storage path is required")
	}

	return nil
}
