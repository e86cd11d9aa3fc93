package sharedcache

import "time"

// SnippetEntry represents the snippet_cache table.
type SnippetEntry struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CacheKey  string    `gorm:"column:cache_key;type:varchar(512);uniqueIndex"`
	Data      []byte    `gorm:"column:data;type:blob"`
	Size      int       `gorm:"column:size"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for SnippetEntry.
func (SnippetEntry) TableName() string {
	return "snippet_cache"
}
