// Package csrf 为每个会话维护一个 CSRF token，重新生成会替换旧值
package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	storeredis "github.com/kochabx/authgate/store/redis"
)

// DefaultTTL token 默认有效期
const DefaultTTL = time.Hour

// tokenBytes 随机字节数，hex 编码后 64 个字符
const tokenBytes = 32

// Store CSRF token 存储
type Store interface {
	Set(ctx context.Context, sessionID, token string, expiresAt time.Time) error
	// Get 返回 token 与过期时间，不存在时 token 为空
	Get(ctx context.Context, sessionID string) (string, time.Time, error)
	Delete(ctx context.Context, sessionID string) error
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Manager CSRF token 管理器
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// Option 选项
type Option func(*Manager)

// WithTTL 设置有效期
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New 创建管理器，store 为 nil 时使用进程内存储
func New(store Store, opts ...Option) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	m := &Manager{store: store, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate 为会话生成新 token，替换旧 token
func (m *Manager) Generate(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("csrf: session id is required")
	}

	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("csrf: read random: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := m.store.Set(ctx, sessionID, token, m.now().Add(m.ttl)); err != nil {
		return "", fmt.Errorf("csrf: save token: %w", err)
	}
	return token, nil
}

// Validate 常量时间比较未过期的 token
func (m *Manager) Validate(ctx context.Context, sessionID, token string) (bool, error) {
	if sessionID == "" || token == "" {
		return false, nil
	}

	stored, expiresAt, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("csrf: get token: %w", err)
	}
	if stored == "" || !m.now().Before(expiresAt) {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}

// Delete 会话登出时删除 token
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, sessionID)
}

// Sweep 清理过期 token
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	return m.store.Sweep(ctx, m.now())
}

type entry struct {
	token     string
	expiresAt time.Time
}

// MemoryStore 进程内存储
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemoryStore 创建进程内存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry)}
}

func (s *MemoryStore) Set(_ context.Context, sessionID, token string, expiresAt time.Time) error {
	s.mu.Lock()
	s.entries[sessionID] = entry{token: token, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (string, time.Time, error) {
	s.mu.RLock()
	e := s.entries[sessionID]
	s.mu.RUnlock()
	return e.token, e.expiresAt, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}

// Len 当前 token 数
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// RedisStore Redis 存储，{prefix}:csrf:{sessionID} 保存 token，TTL 即有效期
type RedisStore struct {
	client *storeredis.Client
	prefix string
}

// NewRedisStore 创建 Redis 存储，prefix 为空时使用 authgate
func NewRedisStore(client *storeredis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "authgate"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(sessionID string) string { return s.prefix + ":csrf:" + sessionID }

func (s *RedisStore) Set(ctx context.Context, sessionID, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return s.client.UniversalClient().Set(ctx, s.key(sessionID), token, ttl).Err()
}

// Get 过期由 Redis 处理，存在的 key 视为在有效期内
func (s *RedisStore) Get(ctx context.Context, sessionID string) (string, time.Time, error) {
	rdb := s.client.UniversalClient()
	key := s.key(sessionID)

	token, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, storeredis.ErrNil) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, err
	}
	ttl, err := rdb.PTTL(ctx, key).Result()
	if err != nil {
		return "", time.Time{}, err
	}
	return token, time.Now().Add(ttl), nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.UniversalClient().Del(ctx, s.key(sessionID)).Err()
}

// Sweep 由 Redis TTL 负责过期
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
