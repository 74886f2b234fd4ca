package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotAuthenticated 会话无法恢复，调用方需要重新登录
var ErrNotAuthenticated = errors.New("not authenticated")

// PendingRequest 可重放的请求描述
// 每次发送都基于它构造新的 *http.Request，Body 已缓冲，可重复读取
type PendingRequest struct {
	ID      string
	Method  string
	Path    string
	Query   url.Values
	Header  http.Header
	Body    []byte
	Retried bool // 刷新后已重放过一次
}

// NewPendingRequest 创建请求描述，Header 与 Body 都会被复制
func NewPendingRequest(method, path string, query url.Values, header http.Header, body []byte) *PendingRequest {
	pr := &PendingRequest{
		ID:     uuid.NewString(),
		Method: strings.ToUpper(method),
		Path:   path,
		Query:  query,
		Header: header.Clone(),
	}
	if pr.Header == nil {
		pr.Header = make(http.Header)
	}
	if body != nil {
		pr.Body = append([]byte(nil), body...)
	}
	return pr
}

// Response 已读取并解压的响应
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// DecodeJSON 把响应体解析到 v，空响应体时不做任何事
func (r *Response) DecodeJSON(v any) error {
	if v == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response body: %w", err)
	}
	return nil
}

// HTTPError 非 2xx 响应
type HTTPError struct {
	StatusCode int
	Method     string
	Path       string
	Detail     string // 后端 {"detail": ...} 中的提示
	Body       []byte
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// newHTTPError 解析后端错误体
// detail 可能是字符串，也可能是字段校验错误数组
func newHTTPError(pr *PendingRequest, status int, body []byte) *HTTPError {
	e := &HTTPError{StatusCode: status, Method: pr.Method, Path: pr.Path, Body: body}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &payload) != nil || len(payload.Detail) == 0 {
		return e
	}

	var text string
	if json.Unmarshal(payload.Detail, &text) == nil {
		e.Detail = text
		return e
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(payload.Detail, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		e.Detail = strings.Join(msgs, "; ")
	}
	return e
}

// RefreshError 会话刷新失败，同一批次的所有等待者收到同一个实例
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("session refresh failed: %v", e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrNotAuthenticated) 对刷新失败成立
func (e *RefreshError) Is(target error) bool {
	return target == ErrNotAuthenticated
}

// StatusCode 提取错误链中的 HTTP 状态码，没有时返回 0
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// ErrorDetail 返回面向用户的错误提示，取不到时返回 fallback
func ErrorDetail(err error, fallback string) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Detail != "" {
		return httpErr.Detail
	}
	return fallback
}
