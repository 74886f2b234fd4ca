// Package tracking 异步记录 API 请求结果与会话刷新批次
package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"club-client/config"
	"club-client/internal/events"
)

const (
	defaultBatchSize   = 50
	cleanupInterval    = 24 * time.Hour
	millisPerDay int64 = 24 * 60 * 60 * 1000
)

// RequestRecord 一次 API 调用的最终结果
type RequestRecord struct {
	RequestID  string        `json:"request_id"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	StatusCode int           `json:"status_code"` // 0 表示传输层失败
	Retried    bool          `json:"retried"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// RefreshRecord 一次实际发出的会话刷新
type RefreshRecord struct {
	WaveID    string        `json:"wave_id"`
	Success   bool          `json:"success"`
	Waiters   int           `json:"waiters"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// JournalStats 记录统计
type JournalStats struct {
	DatabaseType    string          `json:"database_type"`
	TotalRequests   int64           `json:"total_requests"`
	RetriedRequests int64           `json:"retried_requests"`
	FailedRequests  int64           `json:"failed_requests"`
	RefreshWaves    int64           `json:"refresh_waves"`
	FailedRefreshes int64           `json:"failed_refreshes"`
	DroppedRecords  int64           `json:"dropped_records"`
	Connections     ConnectionStats `json:"connections"`
}

// journalItem 写队列元素，flushed 非空时表示强制刷盘请求
type journalItem struct {
	request *RequestRecord
	refresh *RefreshRecord
	flushed chan struct{}
}

// Journal 请求日志记录器
// 未启用时所有方法都是空操作
type Journal struct {
	cfg      config.TrackingConfig
	adapter  DatabaseAdapter
	location *time.Location

	queue chan journalItem

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewJournal 创建并启动记录器
func NewJournal(cfg config.TrackingConfig, timezone string) (*Journal, error) {
	if !cfg.Enabled {
		return &Journal{cfg: cfg}, nil
	}

	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	dbCfg := config.DatabaseBackendConfig{Type: "sqlite", Path: "data/requests.db"}
	if cfg.Database != nil {
		dbCfg = *cfg.Database
	}

	adapter, err := NewDatabaseAdapter(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database adapter: %w", err)
	}
	if err := adapter.Open(); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := adapter.InitSchema(); err != nil {
		adapter.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	location, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		location = time.Local
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Journal{
		cfg:      cfg,
		adapter:  adapter,
		location: location,
		queue:    make(chan journalItem, cfg.BufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	j.wg.Add(1)
	go j.processQueue()

	if cfg.RetentionDays > 0 {
		j.wg.Add(1)
		go j.periodicCleanup()
	}

	slog.Info("✅ 请求记录器初始化完成",
		"database_type", adapter.GetDatabaseType(),
		"buffer_size", cfg.BufferSize,
		"retention_days", cfg.RetentionDays)

	return j, nil
}

// Enabled 是否实际写库
func (j *Journal) Enabled() bool {
	return j != nil && j.adapter != nil
}

// RecordRequest 异步记录一次请求结果，队列满时丢弃
func (j *Journal) RecordRequest(rec RequestRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	j.enqueue(journalItem{request: &rec})
}

// RecordRefresh 异步记录一次刷新批次
func (j *Journal) RecordRefresh(rec RefreshRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	j.enqueue(journalItem{refresh: &rec})
}

func (j *Journal) enqueue(item journalItem) bool {
	if !j.Enabled() {
		return false
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return false
	}

	select {
	case j.queue <- item:
		return true
	default:
		j.dropped.Add(1)
		slog.Warn("⚠️ [请求记录] 写队列已满，丢弃记录")
		return false
	}
}

// HandleEvent 订阅事件总线，把请求与刷新事件转为记录
func (j *Journal) HandleEvent(event events.Event) {
	switch event.Type {
	case events.EventRequestCompleted, events.EventRequestFailed:
		j.RecordRequest(RequestRecord{
			RequestID:  stringField(event.Data, "request_id"),
			Method:     stringField(event.Data, "method"),
			Path:       stringField(event.Data, "path"),
			StatusCode: int(intField(event.Data, "status_code")),
			Retried:    boolField(event.Data, "retried"),
			Duration:   time.Duration(intField(event.Data, "duration_ms")) * time.Millisecond,
			Error:      stringField(event.Data, "error"),
			CreatedAt:  event.Timestamp,
		})
	case events.EventRefreshSucceeded, events.EventRefreshFailed:
		j.RecordRefresh(RefreshRecord{
			WaveID:    stringField(event.Data, "wave_id"),
			Success:   event.Type == events.EventRefreshSucceeded,
			Waiters:   int(intField(event.Data, "waiters")),
			Duration:  time.Duration(intField(event.Data, "duration_ms")) * time.Millisecond,
			Error:     stringField(event.Data, "error"),
			CreatedAt: event.Timestamp,
		})
	}
}

// Flush 等待队列中已有记录全部写入
func (j *Journal) Flush(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}

	done := make(chan struct{})
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return nil
	}
	select {
	case j.queue <- journalItem{flushed: done}:
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}
	j.mu.RUnlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// processQueue 批量写入循环
func (j *Journal) processQueue() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]journalItem, 0, defaultBatchSize)
	flush := func() {
		if len(batch) > 0 {
			j.writeBatch(batch)
			batch = batch[:0]
		}
	}

	for {
		select {
		case item, ok := <-j.queue:
			if !ok {
				flush()
				return
			}
			if item.flushed != nil {
				flush()
				close(item.flushed)
				continue
			}
			batch = append(batch, item)
			if len(batch) >= defaultBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// writeBatch 在一个事务里写入一批记录
func (j *Journal) writeBatch(batch []journalItem) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tx, err := j.adapter.GetDB().BeginTx(ctx, nil)
	if err != nil {
		slog.Error("❌ [请求记录] 开启事务失败", "error", err, "batch_size", len(batch))
		return
	}

	for _, item := range batch {
		switch {
		case item.request != nil:
			r := item.request
			_, err = tx.ExecContext(ctx,
				`INSERT INTO request_logs (request_id, method, path, status_code, retried, duration_ms, error_message, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				r.RequestID, r.Method, r.Path, r.StatusCode, boolToInt(r.Retried), r.Duration.Milliseconds(), r.Error, r.CreatedAt.UnixMilli())
		case item.refresh != nil:
			r := item.refresh
			_, err = tx.ExecContext(ctx,
				`INSERT INTO refresh_waves (wave_id, success, waiters, duration_ms, error_message, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				r.WaveID, boolToInt(r.Success), r.Waiters, r.Duration.Milliseconds(), r.Error, r.CreatedAt.UnixMilli())
		}
		if err != nil {
			tx.Rollback()
			slog.Error("❌ [请求记录] 写入失败", "error", err, "batch_size", len(batch))
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("❌ [请求记录] 提交事务失败", "error", err, "batch_size", len(batch))
		return
	}
	slog.Debug(fmt.Sprintf("💾 [请求记录] 写入 %d 条记录", len(batch)))
}

// RecentRequests 按时间倒序返回最近的请求记录
func (j *Journal) RecentRequests(ctx context.Context, limit int) ([]RequestRecord, error) {
	if !j.Enabled() {
		return nil, nil
	}

	rows, err := j.adapter.GetDB().QueryContext(ctx,
		`SELECT request_id, method, path, status_code, retried, duration_ms, error_message, created_at
		 FROM request_logs ORDER BY id DESC`+j.adapter.BuildLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query request logs: %w", err)
	}
	defer rows.Close()

	var records []RequestRecord
	for rows.Next() {
		var (
			rec                   RequestRecord
			retried               int
			durationMs, createdAt int64
		)
		if err := rows.Scan(&rec.RequestID, &rec.Method, &rec.Path, &rec.StatusCode, &retried, &durationMs, &rec.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan request log: %w", err)
		}
		rec.Retried = retried != 0
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.CreatedAt = time.UnixMilli(createdAt).In(j.location)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecentRefreshes 按时间倒序返回最近的刷新批次
func (j *Journal) RecentRefreshes(ctx context.Context, limit int) ([]RefreshRecord, error) {
	if !j.Enabled() {
		return nil, nil
	}

	rows, err := j.adapter.GetDB().QueryContext(ctx,
		`SELECT wave_id, success, waiters, duration_ms, error_message, created_at
		 FROM refresh_waves ORDER BY id DESC`+j.adapter.BuildLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh waves: %w", err)
	}
	defer rows.Close()

	var records []RefreshRecord
	for rows.Next() {
		var (
			rec                   RefreshRecord
			success               int
			durationMs, createdAt int64
		)
		if err := rows.Scan(&rec.WaveID, &success, &rec.Waiters, &durationMs, &rec.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan refresh wave: %w", err)
		}
		rec.Success = success != 0
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.CreatedAt = time.UnixMilli(createdAt).In(j.location)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats 汇总统计
func (j *Journal) Stats(ctx context.Context) (*JournalStats, error) {
	if !j.Enabled() {
		return &JournalStats{}, nil
	}

	stats := &JournalStats{
		DatabaseType:   j.adapter.GetDatabaseType(),
		DroppedRecords: j.dropped.Load(),
		Connections:    j.adapter.GetConnectionStats(),
	}
	db := j.adapter.GetDB()

	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN retried <> 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status_code = 0 OR status_code >= 400 THEN 1 ELSE 0 END), 0)
		 FROM request_logs`).Scan(&stats.TotalRequests, &stats.RetriedRequests, &stats.FailedRequests)
	if err != nil {
		return nil, fmt.Errorf("failed to count request logs: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN success = 0 THEN 1 ELSE 0 END), 0) FROM refresh_waves`).
		Scan(&stats.RefreshWaves, &stats.FailedRefreshes)
	if err != nil {
		return nil, fmt.Errorf("failed to count refresh waves: %w", err)
	}
	return stats, nil
}

// periodicCleanup 定期清理过期记录
func (j *Journal) periodicCleanup() {
	defer j.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	j.cleanup(j.ctx, time.Now())
	for {
		select {
		case <-ticker.C:
			j.cleanup(j.ctx, time.Now())
		case <-j.ctx.Done():
			return
		}
	}
}

// cleanup 删除 retention_days 之前的记录
func (j *Journal) cleanup(ctx context.Context, now time.Time) {
	cutoff := now.UnixMilli() - int64(j.cfg.RetentionDays)*millisPerDay
	db := j.adapter.GetDB()

	var removed int64
	for _, table := range []string{"request_logs", "refresh_waves"} {
		res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE created_at < ?", cutoff)
		if err != nil {
			slog.Error("❌ [请求记录] 清理过期记录失败", "table", table, "error", err)
			return
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	if removed > 0 {
		slog.Info(fmt.Sprintf("🧹 [请求记录] 清理 %d 条过期记录", removed), "retention_days", j.cfg.RetentionDays)
		if err := j.adapter.VacuumDatabase(ctx); err != nil {
			slog.Warn("⚠️ [请求记录] 数据库整理失败", "error", err)
		}
	}
}

// Close 刷新剩余记录并关闭数据库
func (j *Journal) Close() error {
	if !j.Enabled() {
		return nil
	}

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	j.cancel()
	j.wg.Wait()

	if err := j.adapter.Close(); err != nil {
		return fmt.Errorf("failed to close database adapter: %w", err)
	}
	slog.Debug("✅ 请求记录器关闭完成")
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func boolField(data map[string]interface{}, key string) bool {
	v, _ := data[key].(bool)
	return v
}

func intField(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}
