package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"club-client/config"
)

// AuthService 认证相关接口，凭证全部通过 HTTP-only Cookie 传递
type AuthService struct {
	r       Requester
	cognito config.CognitoConfig
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Message, error) {
	var out Message
	if err := s.r.PostJSON(ctx, "/auth/register", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "code": code}
	if err := s.r.PostJSON(ctx, "/auth/verify-email", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) ResendCode(ctx context.Context, email string) (*Message, error) {
	var out Message
	if err := s.r.PostJSON(ctx, "/auth/resend-code", map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := s.r.PostJSON(ctx, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) Logout(ctx context.Context) error {
	return s.r.PostJSON(ctx, "/auth/logout", nil, nil)
}

// Refresh 直接调用刷新接口，401 时由协调器按豁免路径处理
func (s *AuthService) Refresh(ctx context.Context) error {
	return s.r.PostJSON(ctx, "/auth/refresh", nil, nil)
}

func (s *AuthService) Check(ctx context.Context) (*AuthCheck, error) {
	var out AuthCheck
	if err := s.r.GetJSON(ctx, "/auth/check", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) Me(ctx context.Context) (*User, error) {
	var out User
	if err := s.r.GetJSON(ctx, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, in ProfileUpdate) (*User, error) {
	var out User
	if err := s.r.PutJSON(ctx, "/auth/me", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HandleCallback 用 OAuth 授权码换取会话
func (s *AuthService) HandleCallback(ctx context.Context, code string) (*AuthResult, error) {
	var out AuthResult
	if err := s.r.PostJSON(ctx, "/auth/callback", map[string]string{"code": code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) Memberships(ctx context.Context) ([]Membership, error) {
	var out []Membership
	if err := s.r.GetJSON(ctx, "/auth/me/memberships", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *AuthService) Membership(ctx context.Context, clubID int) (*Membership, error) {
	var out Membership
	if err := s.r.GetJSON(ctx, fmt.Sprintf("/auth/me/memberships/%d", clubID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) UpdateMembership(ctx context.Context, clubID int, in MembershipUpdate) (*Membership, error) {
	var out Membership
	if err := s.r.PutJSON(ctx, fmt.Sprintf("/auth/me/memberships/%d", clubID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GoogleLoginURL 返回 Cognito 托管登录页地址，未配置域名时返回空串
func (s *AuthService) GoogleLoginURL() string {
	if s.cognito.Domain == "" {
		return ""
	}
	q := url.Values{}
	q.Set("client_id", s.cognito.ClientID)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("redirect_uri", s.cognito.RedirectURI)
	q.Set("identity_provider", "Google")
	return cognitoBase(s.cognito.Domain) + "/oauth2/authorize?" + q.Encode()
}

// LogoutURL 返回 Cognito 登出地址
func (s *AuthService) LogoutURL() string {
	if s.cognito.Domain == "" {
		return ""
	}
	q := url.Values{}
	q.Set("client_id", s.cognito.ClientID)
	q.Set("logout_uri", s.cognito.SignOutURI)
	return cognitoBase(s.cognito.Domain) + "/logout?" + q.Encode()
}

func cognitoBase(domain string) string {
	domain = strings.TrimRight(domain, "/")
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}
	return domain
}
