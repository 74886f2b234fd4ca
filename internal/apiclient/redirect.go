package apiclient

import (
	"fmt"
	"strings"

	"club-client/internal/events"
)

// Navigator 导航原语
type Navigator interface {
	CurrentPath() string
	GoTo(path string)
}

// NavigatorFunc 把普通函数适配为只会跳转的 Navigator，当前路径恒为受保护页面
type NavigatorFunc func(path string)

func (f NavigatorFunc) CurrentPath() string { return "" }
func (f NavigatorFunc) GoTo(path string)    { f(path) }

// shouldRedirect 当前已在首页或认证流程页面时不跳转，避免循环
func (r *sessionRules) shouldRedirect(current string) bool {
	current = normalizePath(current)
	if current == r.landingPath {
		return false
	}
	// 末尾斜杠已被去掉，补回后再按整段前缀比较，"/auth/" 仍算认证页
	for _, prefix := range r.authPrefixes {
		if strings.HasPrefix(current+"/", prefix) {
			return false
		}
	}
	return true
}

// redirectToLogin 会话不可恢复时跳转登录页
func (c *Coordinator) redirectToLogin(rules *sessionRules) {
	c.navMu.RLock()
	nav := c.navigator
	c.navMu.RUnlock()

	if nav == nil {
		return
	}

	current := nav.CurrentPath()
	if !rules.shouldRedirect(current) {
		c.logger.Debug(fmt.Sprintf("🧭 [登录跳转] 已在登录相关页面，跳过跳转: %s", current))
		return
	}

	c.redirects.Add(1)
	c.logger.Warn(fmt.Sprintf("🧭 [登录跳转] 会话失效，跳转到登录页: %s → %s", current, rules.loginPath))
	c.publish(events.EventLoginRedirect, events.PriorityCritical, map[string]interface{}{
		"from": current,
		"to":   rules.loginPath,
	})
	nav.GoTo(rules.loginPath)
}
