package events

import "time"

// 事件类型枚举
type EventType string

const (
	// 请求生命周期事件
	EventRequestCompleted EventType = "request_completed"
	EventRequestFailed    EventType = "request_failed"

	// 会话刷新事件
	EventRefreshStarted   EventType = "refresh_started"
	EventRefreshSucceeded EventType = "refresh_succeeded"
	EventRefreshFailed    EventType = "refresh_failed"
	EventRequestReplayed  EventType = "request_replayed"
	EventLoginRedirect    EventType = "login_redirect"

	// 认证状态事件
	EventAuthChanged EventType = "auth_changed"

	// 系统级事件
	EventSystemError   EventType = "system_error"
	EventConfigChanged EventType = "config_changed"
)

// 事件优先级
type EventPriority int

const (
	PriorityLow      EventPriority = iota // 批量处理，如请求完成
	PriorityNormal                        // 一般处理，如重放
	PriorityHigh                          // 立即处理，如刷新结果
	PriorityCritical                      // 紧急处理，如跳转登录
)

// 事件结构
type Event struct {
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"` // 事件来源组件
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Priority  EventPriority          `json:"priority"`
}

// 事件分类映射，订阅者按分类过滤
var EventCategoryMapping = map[EventType]string{
	EventRequestCompleted: "request",
	EventRequestFailed:    "request",
	EventRefreshStarted:   "session",
	EventRefreshSucceeded: "session",
	EventRefreshFailed:    "session",
	EventRequestReplayed:  "session",
	EventLoginRedirect:    "session",
	EventAuthChanged:      "auth",
	EventSystemError:      "status",
	EventConfigChanged:    "config",
}

// Category 返回事件所属分类，未知类型返回 "other"
func (e Event) Category() string {
	if c, ok := EventCategoryMapping[e.Type]; ok {
		return c
	}
	return "other"
}
