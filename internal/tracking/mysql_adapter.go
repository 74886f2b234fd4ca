package tracking

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"club-client/config"

	"github.com/go-sql-driver/mysql"
)

//go:embed mysql_schema.sql
var mysqlSchemaFS embed.FS

// MySQLAdapter MySQL数据库适配器实现
type MySQLAdapter struct {
	config config.DatabaseBackendConfig
	db     *sql.DB
	logger *slog.Logger
}

// NewMySQLAdapter 创建MySQL适配器实例
func NewMySQLAdapter(cfg config.DatabaseBackendConfig) *MySQLAdapter {
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = time.Hour
	}
	return &MySQLAdapter{
		config: cfg,
		logger: slog.Default(),
	}
}

// Open 建立MySQL数据库连接
func (m *MySQLAdapter) Open() error {
	dsn, err := m.buildDSN()
	if err != nil {
		return fmt.Errorf("failed to build DSN: %w", err)
	}

	m.logger.Debug("正在连接MySQL数据库", "host", m.config.Host, "database", m.config.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(m.config.MaxOpenConns)
	db.SetMaxIdleConns(m.config.MaxIdleConns)
	db.SetConnMaxLifetime(m.config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	m.db = db
	m.logger.Debug("✅ MySQL数据库连接成功",
		"max_open_conns", m.config.MaxOpenConns,
		"max_idle_conns", m.config.MaxIdleConns)
	return nil
}

// buildDSN 构建MySQL连接字符串
func (m *MySQLAdapter) buildDSN() (string, error) {
	if m.config.Host == "" {
		return "", fmt.Errorf("MySQL host is required")
	}
	if m.config.Database == "" {
		return "", fmt.Errorf("MySQL database name is required")
	}
	if m.config.Username == "" {
		return "", fmt.Errorf("MySQL username is required")
	}

	dsnCfg := mysql.NewConfig()
	dsnCfg.User = m.config.Username
	dsnCfg.Passwd = m.config.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	dsnCfg.DBName = m.config.Database
	dsnCfg.Timeout = 30 * time.Second
	dsnCfg.ReadTimeout = 30 * time.Second
	dsnCfg.WriteTimeout = 30 * time.Second
	dsnCfg.Params = map[string]string{"charset": "utf8mb4"}

	return dsnCfg.FormatDSN(), nil
}

// Close 关闭数据库连接
func (m *MySQLAdapter) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// Ping 测试数据库连接
func (m *MySQLAdapter) Ping(ctx context.Context) error {
	if m.db == nil {
		return fmt.Errorf("database not connected")
	}
	return m.db.PingContext(ctx)
}

// GetDB 获取数据库连接
func (m *MySQLAdapter) GetDB() *sql.DB {
	return m.db
}

// InitSchema 初始化MySQL数据库Schema
func (m *MySQLAdapter) InitSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema, err := mysqlSchemaFS.ReadFile("mysql_schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read mysql_schema.sql: %w", err)
	}

	// MySQL驱动默认不允许多语句，逐条执行
	for i, stmt := range splitSQLStatements(string(schema)) {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			m.logger.Error("执行Schema语句失败", "statement_index", i, "error", err)
			return fmt.Errorf("failed to execute schema statement %d: %w", i, err)
		}
	}
	return nil
}

// BuildLimit 构建结果数量限制
func (m *MySQLAdapter) BuildLimit(limit int) string {
	return limitClause(limit)
}

// VacuumDatabase MySQL使用OPTIMIZE TABLE
func (m *MySQLAdapter) VacuumDatabase(ctx context.Context) error {
	for _, table := range []string{"request_logs", "refresh_waves"} {
		if _, err := m.db.ExecContext(ctx, "OPTIMIZE TABLE "+table); err != nil {
			return fmt.Errorf("failed to optimize table %s: %w", table, err)
		}
	}
	return nil
}

// GetConnectionStats 获取连接池统计
func (m *MySQLAdapter) GetConnectionStats() ConnectionStats {
	return statsFromDB(m.db)
}

// GetDatabaseType 返回数据库类型
func (m *MySQLAdapter) GetDatabaseType() string {
	return "mysql"
}

// splitSQLStatements 按分号切分，去掉注释行和空语句
func splitSQLStatements(schema string) []string {
	var lines []string
	for _, line := range strings.Split(schema, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}

	var statements []string
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
