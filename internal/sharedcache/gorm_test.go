package sharedcache

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockGormCache(t *testing.T) (*GormCache, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	return NewGormCache(gormDB), mock
}

func TestGormCacheStore(t *testing.T) {
	cache, mock := newMockGormCache(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `snippet_cache`").
		WithArgs("com/example/Child", []byte{0xAA}, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := cache.Store(context.Background(), "com/example/Child", []byte{0xAA})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCacheStoreDuplicate(t *testing.T) {
	cache, mock := newMockGormCache(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `snippet_cache`").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	err := cache.Store(context.Background(), "com/example/Child", []byte{0xAA})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormCacheFind(t *testing.T) {
	cache, mock := newMockGormCache(t)

	t.Run("hit", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "cache_key", "data", "size", "created_at"}).
			AddRow(int64(1), "com/example/Child", []byte{0xAA, 0xBB}, 2, time.Now())

		mock.ExpectQuery("SELECT (.+) FROM `snippet_cache`").
			WithArgs("com/example/Child", 1).
			WillReturnRows(rows)

		data, found, err := cache.Find(context.Background(), "com/example/Child")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte{0xAA, 0xBB}, data)
	})

	t.Run("miss", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM `snippet_cache`").
			WithArgs("com/example/Absent", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "cache_key", "data", "size", "created_at"}))

		data, found, err := cache.Find(context.Background(), "com/example/Absent")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, data)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
