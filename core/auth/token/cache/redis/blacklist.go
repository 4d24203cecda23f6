package redis

import (
	"context"
	"time"

	"github.com/kochabx/authgate/core/auth/token/cache"
	storeredis "github.com/kochabx/authgate/store/redis"
)

// Blacklist Redis 黑名单，键在 token 过期时一并过期
type Blacklist struct {
	client *storeredis.Client
	prefix string
}

// NewBlacklist 创建 Redis 黑名单
func NewBlacklist(client *storeredis.Client, opts ...Option) *Blacklist {
	o := newOptions(opts)
	return &Blacklist{client: client, prefix: o.prefix}
}

func (b *Blacklist) key(jti string) string { return b.prefix + ":blacklist:" + jti }

func (b *Blacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return b.client.UniversalClient().Set(ctx, b.key(jti), "1", ttl).Err()
}

func (b *Blacklist) Contains(ctx context.Context, jti string) (bool, error) {
	n, err := b.client.UniversalClient().Exists(ctx, b.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Sweep 由 Redis TTL 负责过期
func (b *Blacklist) Sweep(context.Context) (int, error) {
	return 0, nil
}

var _ cache.Blacklist = (*Blacklist)(nil)
