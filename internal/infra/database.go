package infra

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"web3agent/internal/config"
	"web3agent/internal/logger"
)

// InitDatabase 打开执行历史数据库（SQLite）
// database.enabled=false 时返回 nil，调用方按无持久化处理
func InitDatabase(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	path := cfg.Path
	if path == "" {
		path = "web3agent.db"
	}

	gormLog := NewGormZapLogger(logger.Get(), gormLogger.Warn, 200*time.Millisecond)

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLog,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("打开执行历史数据库失败: %w", err)
	}
	return db, nil
}

// AutoMigrate 迁移执行历史表结构
func AutoMigrate(db *gorm.DB, models ...any) error {
	if db == nil {
		return nil
	}
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}
