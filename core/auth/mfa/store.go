package mfa

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	storeredis "github.com/kochabx/authgate/store/redis"
)

// Challenge 待验证的一次性验证码，每个用户最多一个
type Challenge struct {
	UserID    string    `json:"user_id"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
}

// Store 挑战存储
type Store interface {
	// Put 保存挑战，覆盖该用户已有的挑战
	Put(ctx context.Context, ch *Challenge) error

	// Update 原子地读取-修改-写回。fn 收到 nil 表示不存在，返回 nil 表示删除
	Update(ctx context.Context, userID string, fn func(*Challenge) *Challenge) error

	// Sweep 删除 now 之前过期的挑战
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore 进程内存储
type MemoryStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
}

// NewMemoryStore 创建进程内存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{challenges: make(map[string]*Challenge)}
}

func (s *MemoryStore) Put(_ context.Context, ch *Challenge) error {
	cp := *ch
	s.mu.Lock()
	s.challenges[ch.UserID] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Update(_ context.Context, userID string, fn func(*Challenge) *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *Challenge
	if ch, ok := s.challenges[userID]; ok {
		cp := *ch
		current = &cp
	}
	if next := fn(current); next != nil {
		s.challenges[userID] = next
	} else {
		delete(s.challenges, userID)
	}
	return nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, ch := range s.challenges {
		if !now.Before(ch.ExpiresAt) {
			delete(s.challenges, id)
			n++
		}
	}
	return n, nil
}

// Len 当前挑战数
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

const maxTxRetries = 8

// RedisStore Redis 存储
//
//	{prefix}:mfa:{userID}  hash: code / attempts / expires_at，TTL 与挑战一致
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

func (s *RedisStore) key(userID string) string { return s.prefix + ":mfa:" + userID }

func (s *RedisStore) Put(ctx context.Context, ch *Challenge) error {
	key := s.key(ch.UserID)
	_, err := s.client.UniversalClient().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, encodeChallenge(ch))
		pipe.PExpireAt(ctx, key, ch.ExpiresAt)
		return nil
	})
	return err
}

func (s *RedisStore) Update(ctx context.Context, userID string, fn func(*Challenge) *Challenge) error {
	key := s.key(userID)

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		var current *Challenge
		if len(fields) > 0 {
			if current, err = decodeChallenge(userID, fields); err != nil {
				return err
			}
		}

		next := fn(current)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.HSet(ctx, key, encodeChallenge(next))
			pipe.PExpireAt(ctx, key, next.ExpiresAt)
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := s.client.UniversalClient().Watch(ctx, txf, key)
		if errors.Is(err, storeredis.ErrTxFailed) {
			continue
		}
		return err
	}
	return fmt.Errorf("mfa update %s: %w", userID, storeredis.ErrTxFailed)
}

// Sweep 由 Redis TTL 负责过期
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func encodeChallenge(ch *Challenge) map[string]any {
	return map[string]any{
		"code":       ch.Code,
		"attempts":   ch.Attempts,
		"expires_at": ch.ExpiresAt.UnixNano(),
	}
}

func decodeChallenge(userID string, fields map[string]string) (*Challenge, error) {
	attempts, err := strconv.Atoi(fields["attempts"])
	if err != nil {
		return nil, fmt.Errorf("decode attempts: %w", err)
	}
	ns, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode expires_at: %w", err)
	}
	return &Challenge{
		UserID:    userID,
		Code:      fields["code"],
		Attempts:  attempts,
		ExpiresAt: time.Unix(0, ns),
	}, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)
