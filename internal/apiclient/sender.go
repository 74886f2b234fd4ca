package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const requestIDHeader = "X-Request-ID"

// Sender 发送一次请求，非 2xx 响应以 *HTTPError 返回
type Sender interface {
	Send(ctx context.Context, pr *PendingRequest) (*Response, error)
}

// HTTPSender 基于带 cookie jar 的 http.Client
// 会话凭证是 HTTP-only cookie，刷新后由 jar 自动带到重放请求上
type HTTPSender struct {
	client    *http.Client
	baseURL   *url.URL
	userAgent string
	headers   map[string]string
}

// NewHTTPSender 创建发送器，transport 为空时使用 http.DefaultTransport
func NewHTTPSender(baseURL string, transport http.RoundTripper, timeout time.Duration) (*HTTPSender, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &HTTPSender{
		client: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   timeout,
		},
		baseURL: u,
	}, nil
}

// SetDefaultHeaders 设置每个请求都带上的头
func (s *HTTPSender) SetDefaultHeaders(userAgent string, headers map[string]string) {
	s.userAgent = userAgent
	s.headers = headers
}

// BaseURL 返回 API 根地址
func (s *HTTPSender) BaseURL() *url.URL {
	u := *s.baseURL
	return &u
}

// Cookies 返回当前发往 API 的 cookie
func (s *HTTPSender) Cookies() []*http.Cookie {
	return s.client.Jar.Cookies(s.baseURL)
}

// SetCookies 恢复已保存的 cookie
func (s *HTTPSender) SetCookies(cookies []*http.Cookie) {
	s.client.Jar.SetCookies(s.baseURL, cookies)
}

// resolve 拼接 base url 与请求路径
func (s *HTTPSender) resolve(pr *PendingRequest) string {
	u := *s.baseURL
	u.Path = s.baseURL.Path + "/" + strings.TrimLeft(pr.Path, "/")
	u.RawQuery = ""
	if len(pr.Query) > 0 {
		u.RawQuery = pr.Query.Encode()
	}
	return u.String()
}

// Send 实现 Sender
func (s *HTTPSender) Send(ctx context.Context, pr *PendingRequest) (*Response, error) {
	var body io.Reader
	if pr.Body != nil {
		body = bytes.NewReader(pr.Body)
	}

	req, err := http.NewRequestWithContext(ctx, pr.Method, s.resolve(pr), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	for k, vs := range pr.Header {
		req.Header[k] = append([]string(nil), vs...)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept-Encoding", acceptEncoding)
	req.Header.Set(requestIDHeader, pr.ID)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", pr.Method, pr.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: failed to read response body: %w", pr.Method, pr.Path, err)
	}

	data, err := decompressBody(ctx, resp.Header.Get("Content-Encoding"), raw)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", pr.Method, pr.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newHTTPError(pr, resp.StatusCode, data)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Duration:   time.Since(start),
	}, nil
}

// SenderFunc 把普通函数适配为 Sender
type SenderFunc func(ctx context.Context, pr *PendingRequest) (*Response, error)

// Send 实现 Sender
func (f SenderFunc) Send(ctx context.Context, pr *PendingRequest) (*Response, error) {
	return f(ctx, pr)
}
