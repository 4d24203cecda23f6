package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kochabx/authgate/core/auth/token/cache"
	storeredis "github.com/kochabx/authgate/store/redis"
)

// deleteAllLua 在一个脚本内读取索引并删除全部会话，期间写入的会话不会漏删
//
//	KEYS[1] 用户索引  ARGV[1] 会话键前缀
const deleteAllLua = `
local ids = redis.call('SMEMBERS', KEYS[1])
for _, id in ipairs(ids) do
	redis.call('DEL', ARGV[1] .. id)
end
redis.call('DEL', KEYS[1])
return #ids
`

var deleteAllScript = redis.NewScript(deleteAllLua)

// SessionStore Redis 会话存储
//
//	{prefix}:session:{sid}  会话 JSON，TTL 为会话剩余时间
//	{prefix}:user:{uid}     用户活跃会话 ID 集合
type SessionStore struct {
	client *storeredis.Client
	prefix string
}

// NewSessionStore 创建 Redis 会话存储
func NewSessionStore(client *storeredis.Client, opts ...Option) *SessionStore {
	o := newOptions(opts)
	return &SessionStore{client: client, prefix: o.prefix}
}

func (s *SessionStore) sessionKey(sid string) string { return s.prefix + ":session:" + sid }
func (s *SessionStore) userKey(uid string) string    { return s.prefix + ":user:" + uid }

func (s *SessionStore) Save(ctx context.Context, session *cache.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.SessionID)
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	rdb := s.client.UniversalClient()
	userKey := s.userKey(session.UserID)

	pipe := rdb.TxPipeline()
	pipe.Set(ctx, s.sessionKey(session.SessionID), data, ttl)
	pipe.SAdd(ctx, userKey, session.SessionID)
	// 会话 TTL 相同，最新会话决定索引的过期时间
	pipe.Expire(ctx, userKey, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*cache.Session, error) {
	data, err := s.client.UniversalClient().Get(ctx, s.sessionKey(sessionID)).Bytes()
	if errors.Is(err, storeredis.ErrNil) {
		return nil, cache.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var session cache.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}

func (s *SessionStore) Delete(ctx context.Context, userID, sessionID string) error {
	session, err := s.Get(ctx, sessionID)
	if errors.Is(err, cache.ErrSessionNotFound) {
		return s.client.UniversalClient().SRem(ctx, s.userKey(userID), sessionID).Err()
	}
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return nil
	}

	pipe := s.client.UniversalClient().TxPipeline()
	pipe.Del(ctx, s.sessionKey(sessionID))
	pipe.SRem(ctx, s.userKey(userID), sessionID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *SessionStore) DeleteAll(ctx context.Context, userID string) error {
	err := deleteAllScript.Run(ctx, s.client.UniversalClient(), []string{s.userKey(userID)}, s.sessionKey("")).Err()
	if err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

func (s *SessionStore) List(ctx context.Context, userID string) ([]*cache.Session, error) {
	rdb := s.client.UniversalClient()
	userKey := s.userKey(userID)

	ids, err := rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}

	out := make([]*cache.Session, 0, len(ids))
	var stale []any
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if errors.Is(err, cache.ErrSessionNotFound) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}

	if len(stale) > 0 {
		rdb.SRem(ctx, userKey, stale...)
	}
	return out, nil
}

// Sweep 会话键由 TTL 过期，这里只清理用户索引中的失效 ID
func (s *SessionStore) Sweep(ctx context.Context) (int, error) {
	rdb := s.client.UniversalClient()
	n := 0

	iter := rdb.Scan(ctx, 0, s.prefix+":user:*", 100).Iterator()
	for iter.Next(ctx) {
		userKey := iter.Val()
		ids, err := rdb.SMembers(ctx, userKey).Result()
		if err != nil {
			return n, err
		}
		for _, id := range ids {
			exists, err := rdb.Exists(ctx, s.sessionKey(id)).Result()
			if err != nil {
				return n, err
			}
			if exists == 0 {
				rdb.SRem(ctx, userKey, id)
				n++
			}
		}
	}
	return n, iter.Err()
}

var _ cache.SessionStore = (*SessionStore)(nil)
