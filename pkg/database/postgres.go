package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"marketplace-core/pkg/config"
	"marketplace-core/pkg/logger"
)

// DSN 由配置拼出 PostgreSQL 连接串
func DSN(cfg config.DBConfig) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port)
}

// MigrateURL golang-migrate 使用的 URL 形式
func MigrateURL(cfg config.DBConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
}

// GormConfig 服务与存储层测试共用的 gorm 配置
func GormConfig(env string) *gorm.Config {
	level := gormlogger.Info
	if env == "production" {
		level = gormlogger.Warn
	}
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
		// 唯一索引冲突转换为 gorm.ErrDuplicatedKey
		TranslateError: true,
	}
}

// ConnectPostgres 连接到 PostgreSQL 数据库
func ConnectPostgres(dsn string, env string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), GormConfig(env))
	if err != nil {
		return nil, fmt.Errorf("无法连接到数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 连接池配置
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info("PostgreSQL 连接成功", zap.String("env", env))
	return db, nil
}
