package lockout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	storeredis "github.com/kochabx/authgate/store/redis"
)

// 乐观事务冲突时的最大重试次数
const maxTxRetries = 8

// RedisStore Redis 存储，每个标识一个 hash，TTL 取 ExpiresAt，为零时不过期
//
//	{prefix}:lockout:{identifier}  failures / last_attempt / locked_until (unix 纳秒)
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

func (s *RedisStore) key(identifier string) string { return s.prefix + ":lockout:" + identifier }

func (s *RedisStore) Get(ctx context.Context, identifier string) (*Record, error) {
	return s.read(ctx, s.client.UniversalClient(), identifier)
}

func (s *RedisStore) Update(ctx context.Context, identifier string, fn func(*Record) *Record) error {
	rdb := s.client.UniversalClient()
	key := s.key(identifier)

	txf := func(tx *redis.Tx) error {
		current, err := s.read(ctx, tx, identifier)
		if err != nil {
			return err
		}
		next := fn(current)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.HSet(ctx, key, encode(next))
			if next.ExpiresAt.IsZero() {
				pipe.Persist(ctx, key)
			} else {
				pipe.PExpireAt(ctx, key, next.ExpiresAt)
			}
			return nil
		})
		return err
	}

	for range maxTxRetries {
		err := rdb.Watch(ctx, txf, key)
		if errors.Is(err, storeredis.ErrTxFailed) {
			continue
		}
		return err
	}
	return fmt.Errorf("lockout update %s: %w", identifier, storeredis.ErrTxFailed)
}

func (s *RedisStore) Delete(ctx context.Context, identifier string) error {
	return s.client.UniversalClient().Del(ctx, s.key(identifier)).Err()
}

// Sweep 由 Redis TTL 负责过期
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) read(ctx context.Context, c redis.Cmdable, identifier string) (*Record, error) {
	fields, err := c.HGetAll(ctx, s.key(identifier)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decode(identifier, fields)
}

// 零值时间存为 0
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func encode(r *Record) map[string]any {
	return map[string]any{
		"failures":     r.Failures,
		"last_attempt": unixNano(r.LastAttempt),
		"locked_until": unixNano(r.LockedUntil),
		"expires_at":   unixNano(r.ExpiresAt),
	}
}

func decode(identifier string, fields map[string]string) (*Record, error) {
	failures, err := strconv.Atoi(fields["failures"])
	if err != nil {
		return nil, fmt.Errorf("decode failures: %w", err)
	}
	rec := &Record{Identifier: identifier, Failures: failures}

	for name, dst := range map[string]*time.Time{
		"last_attempt": &rec.LastAttempt,
		"locked_until": &rec.LockedUntil,
		"expires_at":   &rec.ExpiresAt,
	} {
		ns, err := strconv.ParseInt(fields[name], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		if ns != 0 {
			*dst = time.Unix(0, ns)
		}
	}
	return rec, nil
}

var _ Store = (*RedisStore)(nil)
