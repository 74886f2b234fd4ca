// Package apiclient 俱乐部 API 客户端
// 基于 cookie 会话，401 时由 Coordinator 统一刷新并重放
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"
	"time"

	"club-client/config"
	"club-client/internal/events"
	"club-client/internal/transport"
)

// Client 俱乐部 API 客户端
type Client struct {
	sender      *HTTPSender
	coordinator *Coordinator
	logger      *slog.Logger

	busMu sync.RWMutex
	bus   events.EventBus
}

// NewClient 根据配置创建客户端，navigator 可以为空
func NewClient(cfg *config.Config, navigator Navigator) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := slog.Default()

	baseTransport, err := transport.CreateTransport(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}
	if cfg.Proxy.Enabled {
		logger.Info(fmt.Sprintf("🌐 %s", transport.GetProxyInfo(cfg)))
	}

	sender, err := NewHTTPSender(cfg.API.BaseURL,
		NewLoggingTransport(baseTransport, logger, cfg.API.SlowRequestThreshold),
		cfg.API.Timeout)
	if err != nil {
		return nil, err
	}
	sender.SetDefaultHeaders(cfg.API.UserAgent, cfg.API.Headers)

	return &Client{
		sender:      sender,
		coordinator: NewCoordinator(sender, navigator, cfg.Session, logger),
		logger:      logger,
	}, nil
}

// SetEventBus 设置事件总线，请求结果与刷新事件都会发布到总线
func (c *Client) SetEventBus(bus events.EventBus) {
	c.busMu.Lock()
	c.bus = bus
	c.busMu.Unlock()
	c.coordinator.SetEventBus(bus)
}

// SetNavigator 设置导航器
func (c *Client) SetNavigator(navigator Navigator) {
	c.coordinator.SetNavigator(navigator)
}

// UpdateConfig 配置热更新，只有会话规则支持运行时变更
func (c *Client) UpdateConfig(cfg *config.Config) {
	c.coordinator.UpdateSessionConfig(cfg.Session)
}

// Coordinator 返回会话刷新协调器
func (c *Client) Coordinator() *Coordinator {
	return c.coordinator
}

// BaseURL 返回 API 根地址
func (c *Client) BaseURL() *url.URL {
	return c.sender.BaseURL()
}

// Cookies 返回当前会话 cookie
func (c *Client) Cookies() []*http.Cookie {
	return c.sender.Cookies()
}

// SetCookies 恢复会话 cookie
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.sender.SetCookies(cookies)
}

// Do 发送请求，body 为 nil 时不带请求体，[]byte 原样发送，其它值编码为 JSON
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	header := make(http.Header)
	header.Set("Accept", "application/json")

	var payload []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		payload = b
		header.Set("Content-Type", "application/json")
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = data
		header.Set("Content-Type", "application/json")
	}

	return c.execute(ctx, NewPendingRequest(method, path, query, header, payload))
}

func (c *Client) execute(ctx context.Context, pr *PendingRequest) (*Response, error) {
	start := time.Now()
	resp, err := c.coordinator.Execute(ctx, pr)
	c.publishOutcome(pr, resp, err, time.Since(start))
	return resp, err
}

// publishOutcome 发布请求最终结果，记录器据此落库
func (c *Client) publishOutcome(pr *PendingRequest, resp *Response, err error, duration time.Duration) {
	c.busMu.RLock()
	bus := c.bus
	c.busMu.RUnlock()
	if bus == nil {
		return
	}

	data := map[string]interface{}{
		"request_id":  pr.ID,
		"method":      pr.Method,
		"path":        pr.Path,
		"retried":     pr.Retried,
		"duration_ms": duration.Milliseconds(),
	}
	eventType := events.EventRequestCompleted
	if err != nil {
		eventType = events.EventRequestFailed
		data["status_code"] = StatusCode(err)
		data["error"] = err.Error()
	} else {
		data["status_code"] = resp.StatusCode
	}

	bus.Publish(events.Event{
		Type:     eventType,
		Source:   "api_client",
		Priority: events.PriorityLow,
		Data:     data,
	})
}

// GetJSON GET 请求并解析 JSON 响应
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.Do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return resp.DecodeJSON(out)
}

// PostJSON POST JSON 请求体并解析响应
func (c *Client) PostJSON(ctx context.Context, path string, body, out any) error {
	resp, err := c.Do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	return resp.DecodeJSON(out)
}

// PostJSONWithQuery 带查询参数的 POST
func (c *Client) PostJSONWithQuery(ctx context.Context, path string, query url.Values, body, out any) error {
	resp, err := c.Do(ctx, http.MethodPost, path, query, body)
	if err != nil {
		return err
	}
	return resp.DecodeJSON(out)
}

// PutJSON PUT JSON 请求体并解析响应
func (c *Client) PutJSON(ctx context.Context, path string, body, out any) error {
	resp, err := c.Do(ctx, http.MethodPut, path, nil, body)
	if err != nil {
		return err
	}
	return resp.DecodeJSON(out)
}

// Delete DELETE 请求，忽略响应体
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.Do(ctx, http.MethodDelete, path, nil, nil)
	return err
}

// PostMultipart 上传单个文件，表单体整体缓冲以便刷新后重放
func (c *Client) PostMultipart(ctx context.Context, path, field, filename string, file io.Reader, out any) error {
	if file == nil {
		return errors.New("multipart upload requires a file")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	header := make(http.Header)
	header.Set("Accept", "application/json")
	header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.execute(ctx, NewPendingRequest(http.MethodPost, path, nil, header, buf.Bytes()))
	if err != nil {
		return err
	}
	return resp.DecodeJSON(out)
}
