// Package devserver 模拟俱乐部后端 Cookie 认证的本地开发服务器
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"club-client/config"
	"club-client/internal/api"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	accessCookie  = "access_token"
	refreshCookie = "refresh_token"
	userIDKey     = "user_id"

	detailUnauthorized   = "인증 정보를 확인할 수 없습니다"
	detailNoRefresh      = "Refresh token이 없습니다"
	detailInvalidRefresh = "유효하지 않은 refresh token입니다"
	detailBadLogin       = "이메일 또는 비밀번호가 올바르지 않습니다"
	detailNotFound       = "찾을 수 없습니다"
)

// Server gin 实现的开发后端
type Server struct {
	cfg      config.DevServerConfig
	engine   *gin.Engine
	server   *http.Server
	tokens   *TokenManager
	sessions SessionStore
	dir      *Directory
	logger   *slog.Logger
	now      func() time.Time

	refreshCalls atomic.Int64
	failRefresh  atomic.Bool
	refreshDelay atomic.Int64
}

// New 按配置选择内存或 Redis 会话存储
func New(cfg config.DevServerConfig, logger *slog.Logger) (*Server, error) {
	var store SessionStore
	switch cfg.Store {
	case "", "memory":
		store = NewMemoryStore()
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		store = NewRedisStore(rdb, "club-devserver")
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Store)
	}
	return NewWithStore(cfg, store, logger)
}

func NewWithStore(cfg config.DevServerConfig, store SessionStore, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tokens, err := NewTokenManager(cfg.Secret, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	dir, err := NewDirectory(cfg.Users, time.Now())
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(ginLoggerMiddleware(logger))
	engine.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		tokens:   tokens,
		sessions: store,
		dir:      dir,
		logger:   logger,
		now:      time.Now,
	}
	s.setupRoutes()
	return s, nil
}

// Handler 供 httptest 直接使用
func (s *Server) Handler() http.Handler { return s.engine }

// Start 非阻塞启动
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info(fmt.Sprintf("🧪 开发服务器启动中... - 地址: %s", addr), "store", s.cfg.Store)
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("devserver failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}
	s.logger.Info(fmt.Sprintf("✅ 开发服务器已启动: http://%s/api", addr))
	return nil
}

// Stop 优雅关闭并释放会话存储
func (s *Server) Stop(ctx context.Context) error {
	var err error
	if s.server != nil {
		s.logger.Info("🛑 正在关闭开发服务器...")
		err = s.server.Shutdown(ctx)
	}
	if cerr := s.sessions.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// RefreshCalls 已处理的刷新请求数
func (s *Server) RefreshCalls() int64 { return s.refreshCalls.Load() }

// ExpireAccessTokens 让所有 access token 立即失效
func (s *Server) ExpireAccessTokens() {
	s.tokens.RevokeAccess()
	s.logger.Debug("⏰ [开发服务器] 已使所有 access token 失效")
}

// SetRefreshFailure 开启后刷新接口一律返回 401
func (s *Server) SetRefreshFailure(fail bool) { s.failRefresh.Store(fail) }

// SetRefreshDelay 刷新接口的人为延迟，用于观察并发排队
func (s *Server) SetRefreshDelay(d time.Duration) { s.refreshDelay.Store(int64(d)) }

func (s *Server) setupRoutes() {
	root := s.engine.Group("/api")

	auth := root.Group("/auth")
	{
		auth.POST("/login", s.handleLogin)
		auth.POST("/logout", s.handleLogout)
		auth.POST("/refresh", s.handleRefresh)
		auth.GET("/check", s.handleCheck)
		auth.GET("/me", s.requireAuth, s.handleMe)
		auth.PUT("/me", s.requireAuth, s.handleUpdateMe)
	}

	clubs := root.Group("/clubs", s.requireAuth)
	{
		clubs.GET("", s.handleClubs)
		clubs.GET("/", s.handleClubs)
		clubs.POST("", s.handleCreateClub)
		clubs.POST("/", s.handleCreateClub)
		clubs.GET("/:id", s.handleClub)
		clubs.GET("/:id/members", s.handleMembers)
		clubs.GET("/:id/seasons", s.handleSeasons)
		clubs.GET("/:id/seasons/:sid/rankings", s.handleSeasonRankings)
		clubs.GET("/:id/rankings", s.handleRankings)
	}
}

func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, "이메일과 비밀번호를 입력해주세요")
		return
	}
	user, err := s.dir.Authenticate(req.Email, req.Password)
	if err != nil {
		detail(c, http.StatusUnauthorized, detailBadLogin)
		return
	}

	sess := &Session{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		RefreshJTI: uuid.NewString(),
		ExpiresAt:  s.now().Add(s.cfg.RefreshTTL),
	}
	if err := s.sessions.Save(c.Request.Context(), sess); err != nil {
		s.logger.Error(fmt.Sprintf("❌ [开发服务器] 保存会话失败: %v", err))
		detail(c, http.StatusInternalServerError, "세션을 생성할 수 없습니다")
		return
	}
	if err := s.setSessionCookies(c, user.ID, sess.ID, sess.RefreshJTI); err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, api.AuthResult{Message: "로그인되었습니다", User: &user})
}

func (s *Server) handleLogout(c *gin.Context) {
	if raw, err := c.Cookie(refreshCookie); err == nil {
		if claims, err := s.tokens.Parse(raw, tokenTypeRefresh); err == nil {
			_ = s.sessions.Delete(c.Request.Context(), claims.SessionID)
		}
	}
	s.clearCookies(c)
	c.JSON(http.StatusOK, api.Message{Message: "로그아웃되었습니다"})
}

// handleRefresh 校验 refresh token 并轮换两个 Cookie
func (s *Server) handleRefresh(c *gin.Context) {
	s.refreshCalls.Add(1)
	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		time.Sleep(d)
	}
	if s.failRefresh.Load() {
		detail(c, http.StatusUnauthorized, detailInvalidRefresh)
		return
	}

	raw, err := c.Cookie(refreshCookie)
	if err != nil || raw == "" {
		detail(c, http.StatusUnauthorized, detailNoRefresh)
		return
	}
	claims, err := s.tokens.Parse(raw, tokenTypeRefresh)
	if err != nil {
		detail(c, http.StatusUnauthorized, detailInvalidRefresh)
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		detail(c, http.StatusUnauthorized, detailInvalidRefresh)
		return
	}

	newJTI := uuid.NewString()
	if err := s.sessions.Rotate(c.Request.Context(), claims.SessionID, claims.ID, newJTI); err != nil {
		if errors.Is(err, ErrRefreshReused) {
			s.logger.Warn(fmt.Sprintf("🚨 [开发服务器] refresh token 重复使用，会话已吊销: %s", claims.SessionID))
		}
		s.clearCookies(c)
		detail(c, http.StatusUnauthorized, detailInvalidRefresh)
		return
	}
	if err := s.setSessionCookies(c, userID, claims.SessionID, newJTI); err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, api.Message{Message: "토큰이 갱신되었습니다"})
}

func (s *Server) handleCheck(c *gin.Context) {
	_, ok := s.accessUser(c)
	c.JSON(http.StatusOK, api.AuthCheck{Authenticated: ok})
}

func (s *Server) handleMe(c *gin.Context) {
	user, err := s.dir.User(c.GetInt(userIDKey))
	if err != nil {
		detail(c, http.StatusUnauthorized, detailUnauthorized)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleUpdateMe(c *gin.Context) {
	var in api.ProfileUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	user, err := s.dir.UpdateProfile(c.GetInt(userIDKey), in, s.now())
	if err != nil {
		detail(c, http.StatusNotFound, detailNotFound)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleClubs(c *gin.Context) {
	clubs := s.dir.Clubs(c.GetInt(userIDKey))
	if clubs == nil {
		clubs = []api.Club{}
	}
	c.JSON(http.StatusOK, clubs)
}

func (s *Server) handleCreateClub(c *gin.Context) {
	var in api.ClubInput
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Name) == "" {
		detail(c, http.StatusUnprocessableEntity, "동호회 이름을 입력해주세요")
		return
	}
	c.JSON(http.StatusCreated, s.dir.CreateClub(c.GetInt(userIDKey), in, s.now()))
}

func (s *Server) handleClub(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	club, err := s.dir.Club(c.GetInt(userIDKey), id)
	respond(c, club, err)
}

func (s *Server) handleMembers(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	members, err := s.dir.Members(c.GetInt(userIDKey), id)
	respond(c, members, err)
}

func (s *Server) handleSeasons(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	seasons, err := s.dir.Seasons(c.GetInt(userIDKey), id, c.Query("status"))
	respond(c, seasons, err)
}

func (s *Server) handleSeasonRankings(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	sid, ok := intParam(c, "sid")
	if !ok {
		return
	}
	list, err := s.dir.SeasonRankings(c.GetInt(userIDKey), id, sid)
	respond(c, list, err)
}

func (s *Server) handleRankings(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	rankings, err := s.dir.Rankings(c.GetInt(userIDKey), id)
	respond(c, rankings, err)
}

func respond(c *gin.Context, body any, err error) {
	if errors.Is(err, ErrNotFound) {
		detail(c, http.StatusNotFound, detailNotFound)
		return
	}
	if err != nil {
		detail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, body)
}

func intParam(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, fmt.Sprintf("%s must be an integer", name))
		return 0, false
	}
	return v, true
}

// requireAuth access token 无效时返回 401
func (s *Server) requireAuth(c *gin.Context) {
	userID, ok := s.accessUser(c)
	if !ok {
		detail(c, http.StatusUnauthorized, detailUnauthorized)
		return
	}
	c.Set(userIDKey, userID)
	c.Next()
}

func (s *Server) accessUser(c *gin.Context) (int, bool) {
	raw, err := c.Cookie(accessCookie)
	if err != nil || raw == "" {
		return 0, false
	}
	claims, err := s.tokens.Parse(raw, tokenTypeAccess)
	if err != nil {
		return 0, false
	}
	userID, err := claims.UserID()
	if err != nil {
		return 0, false
	}
	return userID, true
}

func (s *Server) setSessionCookies(c *gin.Context, userID int, sessionID, jti string) error {
	access, err := s.tokens.IssueAccess(userID, sessionID)
	if err != nil {
		return err
	}
	refresh, err := s.tokens.IssueRefresh(userID, sessionID, jti)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, access, int(s.cfg.AccessTTL.Seconds()), "/", "", s.cfg.CookieSecure, true)
	c.SetCookie(refreshCookie, refresh, int(s.cfg.RefreshTTL.Seconds()), "/", "", s.cfg.CookieSecure, true)
	return nil
}

func (s *Server) clearCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(accessCookie, "", -1, "/", "", s.cfg.CookieSecure, true)
	c.SetCookie(refreshCookie, "", -1, "/", "", s.cfg.CookieSecure, true)
}

// ginLoggerMiddleware 按状态码选择日志级别
func ginLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		msg := fmt.Sprintf("🧪 [开发服务器] %s %s %d %v", c.Request.Method, path, status, latency)
		if status >= 400 {
			logger.Warn(msg)
		} else {
			logger.Debug(msg)
		}
	}
}
