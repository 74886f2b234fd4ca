package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"club-client/config"
)

// DatabaseAdapter 定义数据库操作接口
// 抽象SQLite和MySQL的差异，让上层代码无需关心具体实现
type DatabaseAdapter interface {
	// 基础连接管理
	Open() error
	Close() error
	Ping(ctx context.Context) error

	// 获取数据库连接
	GetDB() *sql.DB

	// 数据库初始化
	InitSchema() error

	// SQL语法适配
	BuildLimit(limit int) string

	// 数据库特定操作
	VacuumDatabase(ctx context.Context) error

	// 连接统计
	GetConnectionStats() ConnectionStats

	// 类型标识
	GetDatabaseType() string
}

// ConnectionStats 连接池统计信息
type ConnectionStats struct {
	OpenConnections  int           `json:"open_connections"`
	IdleConnections  int           `json:"idle_connections"`
	InUseConnections int           `json:"in_use_connections"`
	WaitCount        int64         `json:"wait_count"`
	WaitDuration     time.Duration `json:"wait_duration"`
}

// NewDatabaseAdapter 数据库适配器工厂函数
func NewDatabaseAdapter(cfg config.DatabaseBackendConfig) (DatabaseAdapter, error) {
	switch getDatabaseType(cfg) {
	case "sqlite":
		return NewSQLiteAdapter(cfg), nil
	case "mysql":
		return NewMySQLAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// getDatabaseType 从配置推断数据库类型
func getDatabaseType(cfg config.DatabaseBackendConfig) string {
	// 1. 优先使用明确配置的类型
	if cfg.Type != "" {
		return cfg.Type
	}

	// 2. 根据配置内容推断类型
	if cfg.Host != "" || cfg.Database != "" {
		return "mysql"
	}

	// 3. 默认为SQLite
	return "sqlite"
}

func statsFromDB(db *sql.DB) ConnectionStats {
	if db == nil {
		return ConnectionStats{}
	}
	s := db.Stats()
	return ConnectionStats{
		OpenConnections:  s.OpenConnections,
		IdleConnections:  s.Idle,
		InUseConnections: s.InUse,
		WaitCount:        s.WaitCount,
		WaitDuration:     s.WaitDuration,
	}
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}
