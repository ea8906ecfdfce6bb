package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kmsv-2726/federated-socmed/internal/model"
)

func setupTestDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// :memory: 库按连接隔离，只保留一个连接
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(model.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// setupFileDB 临时目录下的文件库，允许多个连接。
// sqlite 仍然只有一个写者：_txlock=immediate 让事务在 BEGIN 时排队拿写锁，_busy_timeout 控制等待上限
func setupFileDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "socmed.db") +
		"?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(8)
	require.NoError(t, db.AutoMigrate(model.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedUser(t testing.TB, db *gorm.DB, federatedID, server string) *model.User {
	t.Helper()
	u := &model.User{FederatedID: federatedID, DisplayName: federatedID, Server: server}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), u))
	return u
}

func seedChannel(t testing.TB, db *gorm.DB, server, name string, vis model.Visibility) *model.Channel {
	t.Helper()
	ch := &model.Channel{Name: name, FederatedID: server + "/channel/" + name, Visibility: vis}
	require.NoError(t, NewChannelRepository(db).Create(context.Background(), ch))
	return ch
}

func loadUser(t testing.TB, db *gorm.DB, federatedID string) *model.User {
	t.Helper()
	u, err := NewUserRepository(db).GetByFederatedID(context.Background(), federatedID)
	require.NoError(t, err)
	return u
}
