package apiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"club-client/config"
	"club-client/internal/events"

	"github.com/google/uuid"
)

// sessionRules 由 config.SessionConfig 归一化而来，热更新时整体替换
type sessionRules struct {
	refreshPath  string
	exempt       map[string]struct{}
	loginPath    string
	landingPath  string
	authPrefixes []string
}

func newSessionRules(cfg config.SessionConfig) *sessionRules {
	r := &sessionRules{
		refreshPath: normalizePath(cfg.RefreshPath),
		exempt:      make(map[string]struct{}, len(cfg.ExemptPaths)+1),
		loginPath:   cfg.LoginPath,
		landingPath: normalizePath(cfg.LandingPath),
	}
	for _, prefix := range cfg.AuthPathPrefixes {
		// 前缀按整段匹配，"/auth" 与 "/auth/" 等价，不会命中 "/authors"
		prefix = normalizePath(prefix)
		if prefix == "" {
			continue
		}
		if prefix != "/" {
			prefix += "/"
		}
		r.authPrefixes = append(r.authPrefixes, prefix)
	}
	if r.refreshPath == "" {
		r.refreshPath = "/auth/refresh"
	}
	if r.loginPath == "" {
		r.loginPath = "/"
	}
	if r.landingPath == "" {
		r.landingPath = "/"
	}
	for _, p := range cfg.ExemptPaths {
		r.exempt[normalizePath(p)] = struct{}{}
	}
	// 刷新接口本身永远豁免，否则刷新返回 401 会再次触发刷新
	r.exempt[r.refreshPath] = struct{}{}
	return r
}

func (r *sessionRules) isExempt(path string) bool {
	_, ok := r.exempt[normalizePath(path)]
	return ok
}

// normalizePath 去掉查询串和末尾斜杠，保证精确匹配
func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// RefreshStats 刷新统计
type RefreshStats struct {
	Waves     int64 `json:"waves"`     // 实际发出的刷新次数
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Queued    int64 `json:"queued"`    // 进入等待队列的请求数
	Replayed  int64 `json:"replayed"`
	Redirects int64 `json:"redirects"` // 实际发生的登录跳转
}

// Coordinator 在 401 时执行单飞会话刷新
// 同一时刻最多一个刷新在途，其余 401 请求排队等待结果后各自重放一次
type Coordinator struct {
	sender Sender
	logger *slog.Logger

	// navMu 保护运行期可替换的 navigator 与 bus
	navMu     sync.RWMutex
	navigator Navigator
	bus       events.EventBus

	// settled 按排空顺序回调，仅测试使用
	settled func(waiter chan error)

	rules atomic.Pointer[sessionRules]

	// 刷新状态：waiters 只在 refreshing 为 true 时非空
	mu         sync.Mutex
	refreshing bool
	waiters    []chan error

	waves     atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	queued    atomic.Int64
	replayed  atomic.Int64
	redirects atomic.Int64
}

// NewCoordinator 创建协调器，navigator 可以为空（不跳转）
func NewCoordinator(sender Sender, navigator Navigator, cfg config.SessionConfig, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		sender:    sender,
		navigator: navigator,
		logger:    logger,
	}
	c.rules.Store(newSessionRules(cfg))
	return c
}

// SetEventBus 设置事件总线
func (c *Coordinator) SetEventBus(bus events.EventBus) {
	c.navMu.Lock()
	c.bus = bus
	c.navMu.Unlock()
}

// SetNavigator 替换导航器
func (c *Coordinator) SetNavigator(navigator Navigator) {
	c.navMu.Lock()
	c.navigator = navigator
	c.navMu.Unlock()
}

// UpdateSessionConfig 热更新豁免路径与跳转规则，不影响在途刷新
func (c *Coordinator) UpdateSessionConfig(cfg config.SessionConfig) {
	c.rules.Store(newSessionRules(cfg))
}

// Stats 返回刷新统计快照
func (c *Coordinator) Stats() RefreshStats {
	return RefreshStats{
		Waves:     c.waves.Load(),
		Succeeded: c.succeeded.Load(),
		Failed:    c.failed.Load(),
		Queued:    c.queued.Load(),
		Replayed:  c.replayed.Load(),
		Redirects: c.redirects.Load(),
	}
}

// Refreshing 是否有刷新在途
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Execute 发送请求，并在 401 时按会话刷新流程处理
func (c *Coordinator) Execute(ctx context.Context, pr *PendingRequest) (*Response, error) {
	resp, err := c.sender.Send(ctx, pr)
	if err == nil {
		return resp, nil
	}
	return c.handleError(ctx, pr, err)
}

func (c *Coordinator) handleError(ctx context.Context, pr *PendingRequest, err error) (*Response, error) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		if ctx.Err() == nil {
			c.logger.Error(fmt.Sprintf("🔌 [连接失败] 无法连接服务器: %s %s", pr.Method, pr.Path),
				"request_id", pr.ID, "error", err)
		}
		return nil, err
	}

	switch httpErr.StatusCode {
	case http.StatusUnauthorized:
		return c.handleUnauthorized(ctx, pr, httpErr)
	case http.StatusForbidden:
		c.logger.Warn(fmt.Sprintf("🚫 [访问拒绝] 没有访问权限: %s %s", pr.Method, pr.Path),
			"request_id", pr.ID, "status_code", httpErr.StatusCode, "detail", httpErr.Detail)
	case http.StatusNotFound:
		c.logger.Warn(fmt.Sprintf("🔍 [资源不存在] 请求的资源不存在: %s %s", pr.Method, pr.Path),
			"request_id", pr.ID, "status_code", httpErr.StatusCode, "detail", httpErr.Detail)
	case http.StatusInternalServerError:
		c.logger.Error(fmt.Sprintf("❌ [服务器错误] 服务器内部错误: %s %s", pr.Method, pr.Path),
			"request_id", pr.ID, "status_code", httpErr.StatusCode, "detail", httpErr.Detail)
	default:
		c.logger.Warn(fmt.Sprintf("⚠️ [请求失败] 未知错误: %s %s", pr.Method, pr.Path),
			"request_id", pr.ID, "status_code", httpErr.StatusCode, "detail", httpErr.Detail)
	}
	return nil, err
}

// handleUnauthorized 401 决策流程
func (c *Coordinator) handleUnauthorized(ctx context.Context, pr *PendingRequest, httpErr *HTTPError) (*Response, error) {
	rules := c.rules.Load()

	// 1. 认证流程自身的接口，直接返回
	if rules.isExempt(pr.Path) {
		c.logger.Debug(fmt.Sprintf("🔒 [会话刷新] 豁免路径返回401，不刷新: %s", pr.Path), "request_id", pr.ID)
		return nil, httpErr
	}

	// 2. 已经重放过一次仍然 401，会话无法恢复
	if pr.Retried {
		c.logger.Warn(fmt.Sprintf("🔒 [会话刷新] 重放后仍然401: %s %s", pr.Method, pr.Path), "request_id", pr.ID)
		c.redirectToLogin(rules)
		return nil, httpErr
	}

	// 3/4. 检查与置位必须在同一个临界区内
	c.mu.Lock()
	if c.refreshing {
		waiter := make(chan error, 1)
		c.waiters = append(c.waiters, waiter)
		position := len(c.waiters)
		c.mu.Unlock()

		c.queued.Add(1)
		c.logger.Debug(fmt.Sprintf("⏳ [会话刷新] 刷新进行中，请求进入等待队列: %s %s", pr.Method, pr.Path),
			"request_id", pr.ID, "position", position)
		return c.awaitRefresh(ctx, pr, waiter)
	}
	pr.Retried = true
	c.refreshing = true
	c.mu.Unlock()

	refreshErr := c.refresh(ctx, pr)
	if refreshErr != nil {
		c.redirectToLogin(rules)
		return nil, refreshErr
	}
	return c.replay(ctx, pr)
}

// awaitRefresh 等待在途刷新的结果
// 调用方 ctx 结束时直接返回，队列中的位置保留，结果送达后被丢弃
func (c *Coordinator) awaitRefresh(ctx context.Context, pr *PendingRequest, waiter <-chan error) (*Response, error) {
	select {
	case refreshErr := <-waiter:
		if refreshErr != nil {
			return nil, refreshErr
		}
		pr.Retried = true
		return c.replay(ctx, pr)
	case <-ctx.Done():
		c.logger.Debug(fmt.Sprintf("⏹️ [会话刷新] 等待中的请求已取消: %s %s", pr.Method, pr.Path), "request_id", pr.ID)
		return nil, ctx.Err()
	}
}

// refresh 发出唯一一次刷新调用，然后摘下队列并按到达顺序通知等待者
func (c *Coordinator) refresh(ctx context.Context, trigger *PendingRequest) error {
	rules := c.rules.Load()
	waveID := uuid.NewString()
	start := time.Now()

	c.waves.Add(1)
	c.logger.Info(fmt.Sprintf("🔄 [会话刷新] 会话过期，开始刷新: %s %s", trigger.Method, trigger.Path),
		"wave_id", waveID, "request_id", trigger.ID)
	c.publish(events.EventRefreshStarted, events.PriorityHigh, map[string]interface{}{
		"wave_id": waveID,
		"trigger": trigger.Path,
	})

	// 刷新结果属于整批等待者，不随触发者的取消而中断，由 http.Client 超时兜底
	refreshCtx := context.WithoutCancel(ctx)
	refreshReq := NewPendingRequest(http.MethodPost, rules.refreshPath, nil, nil, nil)
	refreshReq.Retried = true

	var refreshErr error
	if _, err := c.sender.Send(refreshCtx, refreshReq); err != nil {
		refreshErr = &RefreshError{Err: err}
	}

	// 摘下队列与复位在同一临界区，之后到达的 401 开启新一轮
	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.mu.Unlock()

	for _, w := range waiters {
		w <- refreshErr
		if c.settled != nil {
			c.settled(w)
		}
	}

	duration := time.Since(start)
	data := map[string]interface{}{
		"wave_id":     waveID,
		"waiters":     len(waiters),
		"duration_ms": duration.Milliseconds(),
	}

	if refreshErr != nil {
		c.failed.Add(1)
		data["error"] = refreshErr.Error()
		c.logger.Error(fmt.Sprintf("❌ [会话刷新] 刷新失败，%d 个等待请求一并失败", len(waiters)),
			"wave_id", waveID, "duration", formatDuration(duration), "error", refreshErr)
		c.publish(events.EventRefreshFailed, events.PriorityHigh, data)
		return refreshErr
	}

	c.succeeded.Add(1)
	c.logger.Info(fmt.Sprintf("✅ [会话刷新] 刷新成功，唤醒 %d 个等待请求", len(waiters)),
		"wave_id", waveID, "duration", formatDuration(duration))
	c.publish(events.EventRefreshSucceeded, events.PriorityHigh, data)
	return nil
}

// replay 重放原请求，结果再次经过错误处理（已标记 Retried，不会再次刷新）
func (c *Coordinator) replay(ctx context.Context, pr *PendingRequest) (*Response, error) {
	c.replayed.Add(1)
	c.logger.Debug(fmt.Sprintf("🔁 [会话刷新] 重放请求: %s %s", pr.Method, pr.Path), "request_id", pr.ID)
	c.publish(events.EventRequestReplayed, events.PriorityNormal, map[string]interface{}{
		"request_id": pr.ID,
		"method":     pr.Method,
		"path":       pr.Path,
	})
	return c.Execute(ctx, pr)
}

func (c *Coordinator) publish(eventType events.EventType, priority events.EventPriority, data map[string]interface{}) {
	c.navMu.RLock()
	bus := c.bus
	c.navMu.RUnlock()
	if bus == nil {
		return
	}
	bus.Publish(events.Event{
		Type:     eventType,
		Source:   "session_coordinator",
		Priority: priority,
		Data:     data,
	})
}
