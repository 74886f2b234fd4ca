// Package store 保存客户端侧的认证与俱乐部状态
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"club-client/internal/api"
	"club-client/internal/apiclient"
	"club-client/internal/events"
)

const (
	msgRegisterFailed = "회원가입에 실패했습니다."
	msgVerifyFailed   = "인증번호 확인에 실패했습니다."
	msgResendFailed   = "재발송에 실패했습니다."
	msgLoginFailed    = "로그인에 실패했습니다."
	msgLoadUserFailed = "사용자 정보를 불러올 수 없습니다."
	msgProfileFailed  = "프로필 수정에 실패했습니다."
	msgOAuthFailed    = "OAuth 인증에 실패했습니다."
)

// AuthAPI AuthStore 依赖的认证接口，*api.AuthService 实现了它
type AuthAPI interface {
	Register(ctx context.Context, in api.RegisterInput) (*api.Message, error)
	VerifyEmail(ctx context.Context, email, code string) (*api.AuthResult, error)
	ResendCode(ctx context.Context, email string) (*api.Message, error)
	Login(ctx context.Context, email, password string) (*api.AuthResult, error)
	Logout(ctx context.Context) error
	Check(ctx context.Context) (*api.AuthCheck, error)
	Me(ctx context.Context) (*api.User, error)
	UpdateProfile(ctx context.Context, in api.ProfileUpdate) (*api.User, error)
	HandleCallback(ctx context.Context, code string) (*api.AuthResult, error)
}

// Navigator 登出后跳转使用
type Navigator interface {
	GoTo(path string)
}

// AuthState AuthStore 的只读快照
type AuthState struct {
	User          *api.User
	Authenticated bool
	Loading       bool
	Error         string
	PendingEmail  string
}

// AuthStore 当前用户与认证状态
type AuthStore struct {
	api AuthAPI
	nav Navigator
	bus events.EventBus

	mu    sync.RWMutex
	state AuthState
}

func NewAuthStore(authAPI AuthAPI, nav Navigator) *AuthStore {
	return &AuthStore{api: authAPI, nav: nav}
}

// SetEventBus 认证状态变化时发布 auth_changed
func (s *AuthStore) SetEventBus(bus events.EventBus) {
	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()
}

func (s *AuthStore) SetNavigator(nav Navigator) {
	s.mu.Lock()
	s.nav = nav
	s.mu.Unlock()
}

func (s *AuthStore) Snapshot() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

func (s *AuthStore) User() *api.User { return s.Snapshot().User }

func (s *AuthStore) HasUser() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User != nil
}

func (s *AuthStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Authenticated
}

func (s *AuthStore) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User != nil && s.state.User.Role == "super_admin"
}

func (s *AuthStore) IsPremium() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User != nil && s.state.User.IsPremium
}

// IsProfileComplete 性别和生日都填写后才算完整
func (s *AuthStore) IsProfileComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := s.state.User
	return u != nil && u.Gender != nil && *u.Gender != "" && u.BirthDate != nil && *u.BirthDate != ""
}

func (s *AuthStore) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Error
}

func (s *AuthStore) ClearError() {
	s.mu.Lock()
	s.state.Error = ""
	s.mu.Unlock()
}

func (s *AuthStore) Register(ctx context.Context, email, password, name string) error {
	s.begin(true)
	defer s.end()

	if _, err := s.api.Register(ctx, api.RegisterInput{Email: email, Password: password, Name: name}); err != nil {
		return s.fail(err, msgRegisterFailed)
	}
	s.mu.Lock()
	s.state.PendingEmail = email
	s.mu.Unlock()
	return nil
}

func (s *AuthStore) VerifyEmail(ctx context.Context, email, code string) (*api.AuthResult, error) {
	s.begin(true)
	defer s.end()

	result, err := s.api.VerifyEmail(ctx, email, code)
	if err != nil {
		return nil, s.fail(err, msgVerifyFailed)
	}
	s.mu.Lock()
	s.state.PendingEmail = ""
	s.mu.Unlock()
	s.signIn(result.User, "verify_email")
	return result, nil
}

func (s *AuthStore) ResendCode(ctx context.Context, email string) error {
	s.begin(true)
	defer s.end()

	if _, err := s.api.ResendCode(ctx, email); err != nil {
		return s.fail(err, msgResendFailed)
	}
	return nil
}

func (s *AuthStore) Login(ctx context.Context, email, password string) (*api.AuthResult, error) {
	s.begin(true)
	defer s.end()

	result, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, s.fail(err, msgLoginFailed)
	}
	s.signIn(result.User, "login")
	return result, nil
}

// Logout 无论接口是否成功都清空状态并回到首页
func (s *AuthStore) Logout(ctx context.Context) {
	if err := s.api.Logout(ctx); err != nil {
		slog.Warn(fmt.Sprintf("⚠️ [登出] 登出接口失败: %v", err))
	}
	s.signOut("logout")

	s.mu.RLock()
	nav := s.nav
	s.mu.RUnlock()
	if nav != nil {
		nav.GoTo("/")
	}
}

// CheckAuth 静默检查会话，不写入错误信息
func (s *AuthStore) CheckAuth(ctx context.Context) bool {
	check, err := s.api.Check(ctx)
	if err != nil {
		s.signOut("check_failed")
		return false
	}
	if !check.Authenticated {
		return false
	}
	if _, err := s.LoadUser(ctx, true); err != nil {
		slog.Debug(fmt.Sprintf("🔍 [认证检查] 加载用户失败: %v", err))
		return false
	}
	return true
}

// LoadUser silent 为 true 时失败不记录错误信息
func (s *AuthStore) LoadUser(ctx context.Context, silent bool) (*api.User, error) {
	s.begin(!silent)
	defer s.end()

	user, err := s.api.Me(ctx)
	if err != nil {
		s.signOut("load_user_failed")
		if silent {
			return nil, err
		}
		return nil, s.fail(err, msgLoadUserFailed)
	}
	s.signIn(user, "load_user")
	return user, nil
}

func (s *AuthStore) UpdateProfile(ctx context.Context, in api.ProfileUpdate) (*api.User, error) {
	s.begin(true)
	defer s.end()

	user, err := s.api.UpdateProfile(ctx, in)
	if err != nil {
		return nil, s.fail(err, msgProfileFailed)
	}
	s.mu.Lock()
	s.state.User = user
	s.mu.Unlock()
	return user, nil
}

// HandleCallback 处理 OAuth 回调授权码
func (s *AuthStore) HandleCallback(ctx context.Context, code string) (*api.AuthResult, error) {
	s.begin(true)
	defer s.end()

	result, err := s.api.HandleCallback(ctx, code)
	if err != nil {
		return nil, s.fail(err, msgOAuthFailed)
	}
	s.signIn(result.User, "oauth_callback")
	return result, nil
}

// Reset 丢弃缓存的用户信息，下一次导航会重新检查会话
func (s *AuthStore) Reset() {
	s.signOut("reset")
}

// HandleEvent 会话刷新最终失败时清空本地认证状态
func (s *AuthStore) HandleEvent(event events.Event) {
	if event.Type != events.EventLoginRedirect {
		return
	}
	if s.IsAuthenticated() {
		s.signOut("session_expired")
	}
}

func (s *AuthStore) begin(clearErr bool) {
	s.mu.Lock()
	s.state.Loading = true
	if clearErr {
		s.state.Error = ""
	}
	s.mu.Unlock()
}

func (s *AuthStore) end() {
	s.mu.Lock()
	s.state.Loading = false
	s.mu.Unlock()
}

func (s *AuthStore) fail(err error, fallback string) error {
	s.mu.Lock()
	s.state.Error = apiclient.ErrorDetail(err, fallback)
	s.mu.Unlock()
	return err
}

func (s *AuthStore) signIn(user *api.User, reason string) {
	s.mu.Lock()
	changed := !s.state.Authenticated
	s.state.User = user
	s.state.Authenticated = true
	bus := s.bus
	s.mu.Unlock()

	if changed {
		publishAuthChanged(bus, true, reason)
	}
}

func (s *AuthStore) signOut(reason string) {
	s.mu.Lock()
	changed := s.state.Authenticated
	s.state.User = nil
	s.state.Authenticated = false
	bus := s.bus
	s.mu.Unlock()

	if changed {
		publishAuthChanged(bus, false, reason)
	}
}

func publishAuthChanged(bus events.EventBus, authenticated bool, reason string) {
	if bus == nil {
		return
	}
	bus.Publish(events.Event{
		Type:     events.EventAuthChanged,
		Source:   "auth_store",
		Priority: events.PriorityNormal,
		Data: map[string]interface{}{
			"authenticated": authenticated,
			"reason":        reason,
		},
	})
}
