package events

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// SlogAdapter 把总线事件写入结构化日志，供 CLI 查看会话活动
type SlogAdapter struct {
	logger     *slog.Logger
	categories map[string]bool
}

// NewSlogAdapter 创建日志适配器，categories 为空表示记录全部分类
func NewSlogAdapter(logger *slog.Logger, categories ...string) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	adapter := &SlogAdapter{logger: logger}
	if len(categories) > 0 {
		adapter.categories = make(map[string]bool, len(categories))
		for _, c := range categories {
			adapter.categories[c] = true
		}
	}
	return adapter
}

// Handle 实现 Handler
func (adapter *SlogAdapter) Handle(event Event) {
	category := event.Category()
	if adapter.categories != nil && !adapter.categories[category] {
		return
	}

	level := slog.LevelDebug
	if event.Priority >= PriorityHigh {
		level = slog.LevelInfo
	}

	args := make([]any, 0, 2*len(event.Data)+4)
	args = append(args, "source", event.Source, "category", category)
	for _, k := range getMapKeys(event.Data) {
		args = append(args, k, event.Data[k])
	}

	adapter.logger.Log(context.Background(), level, fmt.Sprintf("📣 [事件] %s", event.Type), args...)
}

// 辅助函数：获取排序后的 map 键，保证日志字段顺序稳定
func getMapKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
