// Package transport 负责创建带代理支持的 HTTP 传输层
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"club-client/config"

	"golang.org/x/net/proxy"
)

// CreateTransport 根据配置创建 http.Transport
// 支持 http/https 代理以及 socks5 代理
func CreateTransport(cfg *config.Config) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	t := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		// 解压由上层统一处理（含 brotli），这里不让标准库自动协商 gzip
		DisableCompression: true,
	}

	if cfg == nil || !cfg.Proxy.Enabled {
		return t, nil
	}

	proxyURL, err := buildProxyURL(cfg.Proxy)
	if err != nil {
		return nil, err
	}

	switch cfg.Proxy.Type {
	case "http", "https":
		t.Proxy = http.ProxyURL(proxyURL)
	case "socks5":
		var auth *proxy.Auth
		if cfg.Proxy.Username != "" {
			auth = &proxy.Auth{User: cfg.Proxy.Username, Password: cfg.Proxy.Password}
		}
		socksDialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create socks5 dialer: %w", err)
		}
		contextDialer, ok := socksDialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 dialer does not support context")
		}
		t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return contextDialer.DialContext(ctx, network, addr)
		}
	default:
		return nil, fmt.Errorf("unsupported proxy type: %s", cfg.Proxy.Type)
	}

	return t, nil
}

// buildProxyURL 优先使用完整 URL，否则由 host:port 拼装
func buildProxyURL(pc config.ProxyConfig) (*url.URL, error) {
	raw := pc.URL
	if raw == "" {
		raw = fmt.Sprintf("%s://%s", pc.Type, net.JoinHostPort(pc.Host, strconv.Itoa(pc.Port)))
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy url %q: missing host", raw)
	}
	if pc.Username != "" && u.User == nil {
		u.User = url.UserPassword(pc.Username, pc.Password)
	}
	return u, nil
}

// GetProxyInfo 返回用于启动日志的代理描述（不含密码）
func GetProxyInfo(cfg *config.Config) string {
	if cfg == nil || !cfg.Proxy.Enabled {
		return "代理未启用"
	}
	u, err := buildProxyURL(cfg.Proxy)
	if err != nil {
		return fmt.Sprintf("代理配置无效: %v", err)
	}
	info := fmt.Sprintf("代理已启用: %s://%s", cfg.Proxy.Type, u.Host)
	if cfg.Proxy.Username != "" {
		info += fmt.Sprintf(" (认证用户: %s)", cfg.Proxy.Username)
	}
	return info
}
