package database

import (
	"fmt"

	"CampusGram/config"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

var global *gorm.DB

// DB 返回全局数据库句柄（未初始化时为 nil）。
func DB() *gorm.DB {
	return global
}

// ReplaceGlobal 设置全局数据库句柄。
func ReplaceGlobal(db *gorm.DB) {
	global = db
}

// Build 根据配置创建 gorm 句柄。
// 配置了 Replicas 时注册 dbresolver：写主读从，事务固定走主库。
func Build(cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}

	if len(cfg.Replicas) > 0 {
		var replicas []gorm.Dialector
		for _, dsn := range cfg.Replicas {
			replicas = append(replicas, mysql.Open(dsn))
		}
		if err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			return nil, fmt.Errorf("failed to register dbresolver: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// Close 关闭全局数据库连接。
func Close() error {
	if global == nil {
		return nil
	}
	sqlDB, err := global.DB()
	if err != nil {
		return err
	}
	global = nil
	return sqlDB.Close()
}
