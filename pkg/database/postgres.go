package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"studymind-go/internal/config"
	"studymind-go/internal/model"
	"studymind-go/pkg/log"
)

var DB *gorm.DB

// InitPostgres 初始化托管 Postgres 的数据库连接
func InitPostgres(cfg config.PostgresConfig) {
	var err error
	DB, err = gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间

	if cfg.AutoMigrate {
		if err := Migrate(DB); err != nil {
			log.Fatal("failed to migrate database", err)
		}
	}

	log.Info("Postgres database connected successfully")
}

// Migrate 为所有持久化实体建表。测试中也用它初始化 sqlite 内存库。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
