package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound = errors.New("refresh session not found")
	// ErrRefreshReused 旧 refresh token 被再次使用，会话已被吊销
	ErrRefreshReused = errors.New("refresh token reused")
)

// Session 服务端保存的 refresh 会话
type Session struct {
	ID         string    `json:"id"`
	UserID     int       `json:"user_id"`
	RefreshJTI string    `json:"refresh_jti"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// SessionStore refresh 会话存储
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	// Rotate 仅当当前 JTI 等于 oldJTI 时替换，否则吊销会话
	Rotate(ctx context.Context, id, oldJTI, newJTI string) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore 进程内会话存储
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	m.sessions[s.ID] = *s
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.lookup(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Rotate(_ context.Context, id, oldJTI, newJTI string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.lookup(id)
	if !ok {
		return ErrSessionNotFound
	}
	if s.RefreshJTI != oldJTI {
		delete(m.sessions, id)
		return ErrRefreshReused
	}
	s.RefreshJTI = newJTI
	m.sessions[id] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// lookup 调用方持有锁，过期会话顺带清理
func (m *MemoryStore) lookup(id string) (Session, bool) {
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	if !s.ExpiresAt.IsZero() && !m.now().Before(s.ExpiresAt) {
		delete(m.sessions, id)
		return Session{}, false
	}
	return s, true
}

const (
	rotateNotFound int64 = 0
	rotateOK       int64 = 1
	rotateReused   int64 = 2
)

const rotateScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
local session = cjson.decode(data)
if session["refresh_jti"] ~= ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 2
end
session["refresh_jti"] = ARGV[2]
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then
  redis.call("SET", KEYS[1], cjson.encode(session), "PX", ttl)
else
  redis.call("SET", KEYS[1], cjson.encode(session))
end
return 1
`

var rotateLua = redis.NewScript(rotateScript)

// RedisStore 会话以 JSON 保存，TTL 与会话过期时间一致
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "devserver"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + ":session:" + id
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	var ttl time.Duration
	if !s.ExpiresAt.IsZero() {
		ttl = s.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return nil
		}
	}
	if err := r.rdb.Set(ctx, r.key(s.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Rotate(ctx context.Context, id, oldJTI, newJTI string) error {
	status, err := rotateLua.Run(ctx, r.rdb, []string{r.key(id)}, oldJTI, newJTI).Int64()
	if err != nil {
		return fmt.Errorf("failed to rotate session: %w", err)
	}
	switch status {
	case rotateOK:
		return nil
	case rotateReused:
		return ErrRefreshReused
	case rotateNotFound:
		return ErrSessionNotFound
	default:
		return fmt.Errorf("unexpected rotate status %d", status)
	}
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
