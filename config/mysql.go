package config

import (
	"fmt"
	"os"
	"time"
)

// MySQLConfig 数据库配置。
// Replicas 非空时通过 dbresolver 做读写分离：写走 DSN，读走副本。
type MySQLConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`

	Replicas []string `json:"replicas" yaml:"replicas"` // 只读副本 DSN 列表，可为空

	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
}

// DSN 拼接 MySQL 连接串。
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// DefaultMySQLConfig 返回本地开发的默认配置。
// 密码优先读取 MYSQL_PASSWORD，未设置时使用本地默认值。
func DefaultMySQLConfig() MySQLConfig {
	password := os.Getenv("MYSQL_PASSWORD")
	if password == "" {
		password = "campusgram"
	}
	return MySQLConfig{
		Host:            "127.0.0.1",
		Port:            3306,
		User:            "campusgram",
		Password:        password,
		Database:        "campusgram",
		MaxOpenConns:    64,
		MaxIdleConns:    16,
		ConnMaxLifetime: time.Hour,
	}
}
