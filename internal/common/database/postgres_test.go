// Package database 数据库模块单元测试
package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dumeirei/tkshop-backend/internal/common/config"
)

type sampleRow struct {
	ID   int64 `gorm:"primaryKey;autoIncrement"`
	Name string
}

func initSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := Init(&config.DatabaseConfig{
		Driver: "sqlite",
		Name:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close() })
	require.NoError(t, d.AutoMigrate(&sampleRow{}))
	return d
}

func TestGetLogLevel(t *testing.T) {
	assert.Equal(t, logger.Info, getLogLevel(true))
	assert.Equal(t, logger.Silent, getLogLevel(false))
}

func TestInit_UnsupportedDriver(t *testing.T) {
	_, err := Init(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestInit_SQLite(t *testing.T) {
	d := initSQLite(t)
	assert.True(t, d.Migrator().HasTable(&sampleRow{}))
}

func TestOrderByCreatedDesc(t *testing.T) {
	d := initSQLite(t)
	stmt := d.Session(&gorm.Session{DryRun: true}).Table("sample_rows").Scopes(OrderByCreatedDesc).Find(&[]sampleRow{}).Statement
	assert.Contains(t, stmt.SQL.String(), "ORDER BY created_at DESC, id DESC")
}

func TestClose_WithNilDB(t *testing.T) {
	db = nil
	assert.NoError(t, Close())
}
