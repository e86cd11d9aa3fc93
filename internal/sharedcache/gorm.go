package sharedcache

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "github.com/class-verify/pkg/errors"
)

// GormCache implements Cache on a relational database via GORM. Visibility
// across processes comes from the database, so several JVM instances can
// share one snippet table.
type GormCache struct {
	db *gorm.DB
}

// NewGormCache creates a GormCache on an open connection.
func NewGormCache(db *gorm.DB) *GormCache {
	return &GormCache{db: db}
}

// Migrate creates the snippet_cache table if it does not exist.
func (c *GormCache) Migrate() error {
	if err := c.db.AutoMigrate(&SnippetEntry{}); err != nil {
		return fmt.Errorf("failed to migrate snippet cache schema: %w", err)
	}
	return nil
}

// Store persists data under key.
func (c *GormCache) Store(ctx context.Context, key string, data []byte) error {
	entry := SnippetEntry{
		CacheKey: key,
		Data:     data,
		Size:     len(data),
	}

	err := c.db.WithContext(ctx).Create(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperrors.Wrap(apperrors.CodeCacheError, key, ErrKeyExists)
		}
		return apperrors.Wrap(apperrors.CodeCacheError, "failed to store snippet entry", err)
	}

	return nil
}

// Find returns the data stored under key.
func (c *GormCache) Find(ctx context.Context, key string) ([]byte, bool, error) {
	var entry SnippetEntry

	err := c.db.WithContext(ctx).Where("cache_key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, apperrors.Wrap(apperrors.CodeCacheError, "failed to query snippet entry", err)
	}

	return entry.Data, true, nil
}

// Close closes the underlying connection.
func (c *GormCache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck verifies the database connection is still alive.
func (c *GormCache) HealthCheck(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
