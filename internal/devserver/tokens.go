package devserver

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	ErrTokenType    = errors.New("unexpected token type")
	ErrTokenRevoked = errors.New("access token generation revoked")
)

// Claims access 与 refresh 共用的载荷
type Claims struct {
	Type       string `json:"type"`
	SessionID  string `json:"sid,omitempty"`
	Generation int64  `json:"gen,omitempty"`
	jwt.RegisteredClaims
}

// UserID 从 sub 解析用户 ID
func (c *Claims) UserID() (int, error) {
	return strconv.Atoi(c.Subject)
}

// TokenManager HS256 签发与校验
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	generation atomic.Int64
	now        func() time.Time
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("hs256 requires a secret")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// IssueAccess 携带当前代数，RevokeAccess 之后旧令牌全部失效
func (m *TokenManager) IssueAccess(userID int, sessionID string) (string, error) {
	return m.sign(Claims{
		Type:       tokenTypeAccess,
		SessionID:  sessionID,
		Generation: m.generation.Load(),
	}, userID, "", m.accessTTL)
}

func (m *TokenManager) IssueRefresh(userID int, sessionID, jti string) (string, error) {
	return m.sign(Claims{Type: tokenTypeRefresh, SessionID: sessionID}, userID, jti, m.refreshTTL)
}

func (m *TokenManager) sign(claims Claims, userID int, jti string, ttl time.Duration) (string, error) {
	now := m.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", claims.Type, err)
	}
	return signed, nil
}

// Parse 校验签名、过期时间与令牌类型
func (m *TokenManager) Parse(tokenStr, expectedType string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Type != expectedType {
		return nil, ErrTokenType
	}
	if expectedType == tokenTypeAccess && claims.Generation < m.generation.Load() {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// RevokeAccess 让已签发的 access token 全部失效，refresh token 不受影响
func (m *TokenManager) RevokeAccess() {
	m.generation.Add(1)
}
