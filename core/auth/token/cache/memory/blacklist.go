package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/kochabx/authgate/core/auth/token/cache"
)

// DefaultBlacklistSize 黑名单默认容量
const DefaultBlacklistSize = 10000

type blacklistEntry struct {
	jti       string
	expiresAt time.Time
}

// Blacklist 有界的进程内黑名单，超出容量时按加入顺序淘汰最旧条目
type Blacklist struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	index   map[string]*list.Element
	now     func() time.Time
}

// NewBlacklist 创建黑名单，maxSize <= 0 时使用 DefaultBlacklistSize
func NewBlacklist(maxSize int, opts ...Option) *Blacklist {
	if maxSize <= 0 {
		maxSize = DefaultBlacklistSize
	}
	o := newOptions(opts)
	return &Blacklist{
		maxSize: maxSize,
		order:   list.New(),
		index:   make(map[string]*list.Element),
		now:     o.now,
	}
}

func (b *Blacklist) Add(_ context.Context, jti string, expiresAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if el, ok := b.index[jti]; ok {
		el.Value.(*blacklistEntry).expiresAt = expiresAt
		return nil
	}
	b.index[jti] = b.order.PushBack(&blacklistEntry{jti: jti, expiresAt: expiresAt})

	for b.order.Len() > b.maxSize {
		oldest := b.order.Front()
		b.order.Remove(oldest)
		delete(b.index, oldest.Value.(*blacklistEntry).jti)
	}
	return nil
}

func (b *Blacklist) Contains(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	el, ok := b.index[jti]
	if !ok {
		return false, nil
	}
	if !b.now().Before(el.Value.(*blacklistEntry).expiresAt) {
		b.order.Remove(el)
		delete(b.index, jti)
		return false, nil
	}
	return true, nil
}

func (b *Blacklist) Sweep(_ context.Context) (int, error) {
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for el := b.order.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*blacklistEntry)
		if !now.Before(entry.expiresAt) {
			b.order.Remove(el)
			delete(b.index, entry.jti)
			n++
		}
		el = next
	}
	return n, nil
}

// Len 当前条目数
func (b *Blacklist) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.order.Len()
}

var _ cache.Blacklist = (*Blacklist)(nil)
