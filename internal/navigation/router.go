// Package navigation 客户端路由表与导航守卫
package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
)

// 守卫重定向的最大跳数
const maxRedirects = 5

var ErrRedirectLoop = errors.New("navigation redirect loop")

// AuthState 守卫读取的认证状态，*store.AuthStore 实现了它
type AuthState interface {
	HasUser() bool
	IsAuthenticated() bool
	IsAdmin() bool
	IsProfileComplete() bool
	CheckAuth(ctx context.Context) bool
	Reset()
}

// Location 解析后的导航目标
type Location struct {
	Name     string
	Path     string
	Params   map[string]string
	Query    url.Values
	FullPath string
	Meta     Meta
}

// Router 保存当前位置，实现 apiclient.Navigator
type Router struct {
	routes []Route
	auth   AuthState
	logger *slog.Logger

	mu      sync.RWMutex
	current Location
	history []string
}

func NewRouter(auth AuthState, routes []Route, logger *slog.Logger) *Router {
	if routes == nil {
		routes = DefaultRoutes()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{routes: routes, auth: auth, logger: logger}
}

// CurrentPath 当前完整路径，包含查询串
func (r *Router) CurrentPath() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.FullPath
}

func (r *Router) Current() Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *Router) History() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.history...)
}

// GoTo 整页跳转：丢弃缓存的认证状态后重新导航
func (r *Router) GoTo(path string) {
	if r.auth != nil {
		r.auth.Reset()
	}
	if _, err := r.Push(context.Background(), path); err != nil {
		r.logger.Error(fmt.Sprintf("❌ [导航] 跳转失败: %s", path), "error", err)
	}
}

// Push 执行导航守卫并更新当前位置，返回最终到达的位置
func (r *Router) Push(ctx context.Context, rawPath string) (Location, error) {
	target := r.Resolve(rawPath)
	for hops := 0; ; hops++ {
		next, redirected := r.guard(ctx, target)
		if !redirected {
			break
		}
		if hops >= maxRedirects {
			return Location{}, fmt.Errorf("%w: %s", ErrRedirectLoop, rawPath)
		}
		r.logger.Debug(fmt.Sprintf("🧭 [导航守卫] %s → %s", target.FullPath, next.FullPath))
		target = next
	}

	r.mu.Lock()
	r.current = target
	r.history = append(r.history, target.FullPath)
	r.mu.Unlock()
	return target, nil
}

// Resolve 把路径匹配到路由，未匹配时返回 not-found
func (r *Router) Resolve(rawPath string) Location {
	path, rawQuery, _ := strings.Cut(rawPath, "?")
	path, _, _ = strings.Cut(path, "#")
	if path == "" || path[0] != '/' {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	query, _ := url.ParseQuery(rawQuery)

	loc := Location{Name: RouteNotFound, Path: path, Query: query}
	for _, route := range r.routes {
		if params, ok := match(route.Pattern, path); ok {
			loc.Name = route.Name
			loc.Params = params
			loc.Meta = route.Meta
			break
		}
	}
	loc.FullPath = fullPath(path, query)
	return loc
}

// byName 按名称构造无参数路由的位置
func (r *Router) byName(name string, query url.Values) Location {
	for _, route := range r.routes {
		if route.Name == name {
			return Location{
				Name:     route.Name,
				Path:     route.Pattern,
				Query:    query,
				Meta:     route.Meta,
				FullPath: fullPath(route.Pattern, query),
			}
		}
	}
	return Location{Name: RouteNotFound, Path: "/", FullPath: "/"}
}

func (r *Router) guard(ctx context.Context, to Location) (Location, bool) {
	if to.Name == RouteNotFound || r.auth == nil {
		return to, false
	}

	if !r.auth.HasUser() {
		r.auth.CheckAuth(ctx)
	}
	authenticated := r.auth.IsAuthenticated()

	if to.Meta.IsLanding && authenticated {
		return r.byName(RouteHome, nil), true
	}
	if to.Meta.RequiresAuth && !authenticated {
		return r.byName(RouteLogin, url.Values{"redirect": {to.FullPath}}), true
	}
	if to.Meta.RequiresGuest && authenticated {
		return r.byName(RouteHome, nil), true
	}
	if to.Meta.RequiresAdmin && !r.auth.IsAdmin() {
		return r.byName(RouteHome, nil), true
	}

	if authenticated && r.auth.HasUser() {
		complete := r.auth.IsProfileComplete()
		onProfilePage := to.Name == RouteProfileCompletion
		if !complete && !onProfilePage && to.Meta.RequiresAuth {
			return r.byName(RouteProfileCompletion, nil), true
		}
		if complete && onProfilePage {
			return r.byName(RouteHome, nil), true
		}
	}
	return to, false
}

func match(pattern, path string) (map[string]string, bool) {
	if pattern == path {
		return nil, true
	}
	pp := strings.Split(strings.Trim(pattern, "/"), "/")
	sp := strings.Split(strings.Trim(path, "/"), "/")
	if len(pp) != len(sp) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range pp {
		if name, ok := strings.CutPrefix(seg, ":"); ok {
			if sp[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = sp[i]
			continue
		}
		if seg != sp[i] {
			return nil, false
		}
	}
	return params, true
}

func fullPath(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
