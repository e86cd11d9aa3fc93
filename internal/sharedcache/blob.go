package sharedcache

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/class-verify/internal/storage"
	"github.com/class-verify/pkg/compression"
	apperrors "github.com/class-verify/pkg/errors"
)

// BlobCache implements Cache on object storage. Payloads are compressed on
// the way in; reads sniff the codec from the payload so the compression
// setting can change without invalidating existing entries.
type BlobCache struct {
	store storage.Storage
	codec compression.Codec
}

// NewBlobCache creates a BlobCache over the given storage backend.
func NewBlobCache(store storage.Storage, codec compression.Codec) *BlobCache {
	if codec == nil {
		codec = compression.NewNoOpCodec()
	}
	return &BlobCache{store: store, codec: codec}
}

// Store persists data under key.
func (c *BlobCache) Store(ctx context.Context, key string, data []byte) error {
	objectKey := blobKey(key)

	exists, err := c.store.Exists(ctx, objectKey)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to check blob existence", err)
	}
	if exists {
		return apperrors.Wrap(apperrors.CodeCacheError, key, ErrKeyExists)
	}

	payload, err := c.codec.Compress(data)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeCacheError, "failed to compress snippet blob", err)
	}

	if err := c.store.Upload(ctx, objectKey, bytes.NewReader(payload)); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to upload snippet blob", err)
	}

	return nil
}

// Find returns the data stored under key.
func (c *BlobCache) Find(ctx context.Context, key string) ([]byte, bool, error) {
	objectKey := blobKey(key)

	exists, err := c.store.Exists(ctx, objectKey)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeStorageError, "failed to check blob existence", err)
	}
	if !exists {
		return nil, false, nil
	}

	rc, err := c.store.Download(ctx, objectKey)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeStorageError, "failed to download snippet blob", err)
	}
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeStorageError, "failed to read snippet blob", err)
	}

	data, err := compression.AutoDecompress(payload)
	if err != nil {
		return nil, false, apperrors.Wrap(apperrors.CodeCacheError, "failed to decompress snippet blob", err)
	}

	return data, true, nil
}

// Close releases the codec.
func (c *BlobCache) Close() error {
	compression.Close(c.codec)
	return nil
}

// blobKey maps a class-name key to an object key. Class names already use
// slashes, which object stores treat as path separators; a suffix keeps the
// leaf distinct from package directories of the same name.
func blobKey(key string) string {
	return strings.TrimSuffix(key, "/") + ".snippets"
}
