package apiclient

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// LoggingTransport 记录每个实际发出的 HTTP 请求
type LoggingTransport struct {
	next          http.RoundTripper
	logger        *slog.Logger
	slowThreshold time.Duration
}

// NewLoggingTransport 包装底层传输层，slowThreshold<=0 时不做慢请求告警
func NewLoggingTransport(next http.RoundTripper, logger *slog.Logger, slowThreshold time.Duration) *LoggingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingTransport{next: next, logger: logger, slowThreshold: slowThreshold}
}

// RoundTrip 实现 http.RoundTripper
func (lt *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	requestID := req.Header.Get(requestIDHeader)

	lt.logger.Debug(fmt.Sprintf("📤 [请求发送] [%s] %s %s", requestID, req.Method, req.URL.Path),
		"request_id", requestID,
		"method", req.Method,
		"url", req.URL.Redacted(),
		"content_length", req.ContentLength,
	)

	resp, err := lt.next.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		lt.logger.Warn(fmt.Sprintf("🔌 [传输失败] [%s] %s %s", requestID, req.Method, req.URL.Path),
			"request_id", requestID,
			"duration", formatDuration(duration),
			"error", err,
		)
		return nil, err
	}

	lt.logger.Debug(fmt.Sprintf("%s [请求详情] [%s] %s %s → %d (%s)", getStatusEmoji(resp.StatusCode), requestID, req.Method, req.URL.Path, resp.StatusCode, formatDuration(duration)),
		"request_id", requestID,
		"status_code", resp.StatusCode,
		"duration", formatDuration(duration),
	)

	if lt.slowThreshold > 0 && duration > lt.slowThreshold {
		lt.logger.Warn(fmt.Sprintf("🐌 [慢请求] [%s] %s %s", requestID, req.Method, req.URL.Path),
			"request_id", requestID,
			"duration", formatDuration(duration),
			"status_code", resp.StatusCode,
		)
	}

	return resp, nil
}

func getStatusEmoji(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "✅"
	case statusCode >= 300 && statusCode < 400:
		return "🔄"
	case statusCode >= 400 && statusCode < 500:
		return "⚠️"
	case statusCode >= 500:
		return "❌"
	default:
		return "❓"
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.2fμs", float64(d.Nanoseconds())/1000)
	} else if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d.Nanoseconds())/1000000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
