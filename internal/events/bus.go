package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EventBus 接口
type EventBus interface {
	// 发布事件
	Publish(event Event)

	// 注册订阅者，返回取消订阅函数
	Subscribe(name string, handler Handler) func()

	// 启动和停止
	Start() error
	Stop() error

	// 获取统计信息
	GetStats() BusStats
}

// Handler 事件处理函数，在总线的处理协程中被调用
type Handler func(event Event)

// 事件过滤器
type EventFilter struct {
	// 是否派发给订阅者
	ShouldDispatch func(event Event) bool

	// 频率限制（防止高频事件刷屏）
	RateLimit time.Duration
}

// EventBus 实现
type eventBus struct {
	// 基础配置
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	// 事件处理
	eventChan chan Event

	// 订阅者
	subsMu      sync.RWMutex
	subscribers map[uint64]subscriber
	nextSubID   uint64

	// 过滤和限制
	filters      map[EventType]EventFilter
	rateLimiters map[EventType]*rateLimiter

	// 统计信息
	stats   BusStats
	statsMu sync.RWMutex

	// 内部状态
	runMu   sync.RWMutex
	running bool
	wg      sync.WaitGroup
}

type subscriber struct {
	name    string
	handler Handler
}

// 统计信息
type BusStats struct {
	TotalEvents      int64                   `json:"total_events"`
	ProcessedEvents  int64                   `json:"processed_events"`
	DroppedEvents    int64                   `json:"dropped_events"`
	EventsByType     map[EventType]int64     `json:"events_by_type"`
	EventsByPriority map[EventPriority]int64 `json:"events_by_priority"`
	StartTime        time.Time               `json:"start_time"`
}

// 频率限制器
type rateLimiter struct {
	lastTime time.Time
	limit    time.Duration
	mu       sync.Mutex
}

func (rl *rateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastTime) >= rl.limit {
		rl.lastTime = now
		return true
	}
	return false
}

// NewEventBus 创建新的EventBus实例
func NewEventBus(logger *slog.Logger) EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	bus := &eventBus{
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
		eventChan:    make(chan Event, 1000), // 缓冲区大小
		subscribers:  make(map[uint64]subscriber),
		filters:      make(map[EventType]EventFilter),
		rateLimiters: make(map[EventType]*rateLimiter),
		stats: BusStats{
			EventsByType:     make(map[EventType]int64),
			EventsByPriority: make(map[EventPriority]int64),
			StartTime:        time.Now(),
		},
	}

	bus.setupDefaultFilters()

	return bus
}

// 设置默认过滤器
func (eb *eventBus) setupDefaultFilters() {
	always := func(event Event) bool { return true }

	// 请求完成事件 - 高频，但记录器需要每一条，不限频
	eb.filters[EventRequestCompleted] = EventFilter{ShouldDispatch: always}
	eb.filters[EventRequestFailed] = EventFilter{ShouldDispatch: always}

	// 会话事件 - 关键事件，立即派发
	eb.filters[EventRefreshStarted] = EventFilter{ShouldDispatch: always}
	eb.filters[EventRefreshSucceeded] = EventFilter{ShouldDispatch: always}
	eb.filters[EventRefreshFailed] = EventFilter{ShouldDispatch: always}
	eb.filters[EventRequestReplayed] = EventFilter{ShouldDispatch: always}
	eb.filters[EventLoginRedirect] = EventFilter{ShouldDispatch: always}
	eb.filters[EventAuthChanged] = EventFilter{ShouldDispatch: always}

	// 系统错误事件 - 限制频率，避免同一故障刷屏
	eb.filters[EventSystemError] = EventFilter{
		ShouldDispatch: always,
		RateLimit:      1 * time.Second,
	}

	eb.filters[EventConfigChanged] = EventFilter{ShouldDispatch: always}

	// 初始化频率限制器
	for eventType, filter := range eb.filters {
		if filter.RateLimit > 0 {
			eb.rateLimiters[eventType] = &rateLimiter{
				limit: filter.RateLimit,
			}
		}
	}
}

// Publish 发布事件
func (eb *eventBus) Publish(event Event) {
	eb.runMu.RLock()
	defer eb.runMu.RUnlock()

	if !eb.running {
		eb.logger.Debug("EventBus not running, dropping event", "type", event.Type)
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.updateStats(event, "total")

	select {
	case eb.eventChan <- event:
	default:
		// 缓冲区满，丢弃事件
		eb.updateStats(event, "dropped")
		eb.logger.Warn("EventBus buffer full, dropping event", "type", event.Type, "source", event.Source)
	}
}

// Subscribe 注册订阅者
func (eb *eventBus) Subscribe(name string, handler Handler) func() {
	eb.subsMu.Lock()
	id := eb.nextSubID
	eb.nextSubID++
	eb.subscribers[id] = subscriber{name: name, handler: handler}
	eb.subsMu.Unlock()

	eb.logger.Debug("EventBus subscriber added", "subscriber", name)

	return func() {
		eb.subsMu.Lock()
		delete(eb.subscribers, id)
		eb.subsMu.Unlock()
	}
}

// Start 启动EventBus
func (eb *eventBus) Start() error {
	eb.runMu.Lock()
	defer eb.runMu.Unlock()

	if eb.running {
		return nil
	}

	eb.running = true
	eb.wg.Add(1)

	go eb.eventProcessor()

	eb.logger.Debug("EventBus started")
	return nil
}

// Stop 停止EventBus，已入队的事件会先派发完
func (eb *eventBus) Stop() error {
	eb.runMu.Lock()
	if !eb.running {
		eb.runMu.Unlock()
		return nil
	}
	eb.running = false
	close(eb.eventChan)
	eb.runMu.Unlock()

	eb.wg.Wait()
	eb.cancel()

	eb.logger.Debug("EventBus stopped")
	return nil
}

// GetStats 获取统计信息
func (eb *eventBus) GetStats() BusStats {
	eb.statsMu.RLock()
	defer eb.statsMu.RUnlock()

	// 深拷贝统计信息
	stats := BusStats{
		TotalEvents:      eb.stats.TotalEvents,
		ProcessedEvents:  eb.stats.ProcessedEvents,
		DroppedEvents:    eb.stats.DroppedEvents,
		EventsByType:     make(map[EventType]int64),
		EventsByPriority: make(map[EventPriority]int64),
		StartTime:        eb.stats.StartTime,
	}

	for k, v := range eb.stats.EventsByType {
		stats.EventsByType[k] = v
	}
	for k, v := range eb.stats.EventsByPriority {
		stats.EventsByPriority[k] = v
	}

	return stats
}

// 事件处理器
func (eb *eventBus) eventProcessor() {
	defer eb.wg.Done()

	for event := range eb.eventChan {
		eb.processEvent(event)
	}
}

// 处理单个事件
func (eb *eventBus) processEvent(event Event) {
	eb.updateStats(event, "processed")

	filter, exists := eb.filters[event.Type]
	if !exists {
		eb.logger.Debug("No filter for event type", "type", event.Type)
		return
	}

	if !filter.ShouldDispatch(event) {
		eb.logger.Debug("Event filtered out", "type", event.Type)
		return
	}

	if limiter, exists := eb.rateLimiters[event.Type]; exists {
		if !limiter.Allow() {
			eb.logger.Debug("Event rate limited", "type", event.Type)
			return
		}
	}

	eb.subsMu.RLock()
	subs := make([]subscriber, 0, len(eb.subscribers))
	for _, s := range eb.subscribers {
		subs = append(subs, s)
	}
	eb.subsMu.RUnlock()

	for _, s := range subs {
		eb.dispatch(s, event)
	}
}

// dispatch 调用订阅者，单个订阅者 panic 不影响总线
func (eb *eventBus) dispatch(s subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("EventBus subscriber panicked", "subscriber", s.name, "type", event.Type, "panic", r)
		}
	}()
	s.handler(event)
}

// 更新统计信息
func (eb *eventBus) updateStats(event Event, statType string) {
	eb.statsMu.Lock()
	defer eb.statsMu.Unlock()

	switch statType {
	case "total":
		eb.stats.TotalEvents++
		eb.stats.EventsByType[event.Type]++
		eb.stats.EventsByPriority[event.Priority]++
	case "processed":
		eb.stats.ProcessedEvents++
	case "dropped":
		eb.stats.DroppedEvents++
	}
}
