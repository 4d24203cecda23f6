package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Directory = (*MemoryDirectory)(nil)

// MemoryDirectory 进程内用户目录，用户名不区分大小写
type MemoryDirectory struct {
	mu     sync.RWMutex
	byID   map[string]*User
	byName map[string]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:   make(map[string]*User),
		byName: make(map[string]string),
	}
}

func (d *MemoryDirectory) FindByUsername(_ context.Context, username string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[strings.ToLower(username)]
	if !ok {
		return nil, ErrNotFound
	}
	u := *d.byID[id]
	return &u, nil
}

func (d *MemoryDirectory) FindByID(_ context.Context, id string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// Create ID 为空时生成 uuid
func (d *MemoryDirectory) Create(_ context.Context, u *User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := strings.ToLower(u.Username)
	if _, ok := d.byName[name]; ok {
		return ErrExists
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if _, ok := d.byID[u.ID]; ok {
		return ErrExists
	}
	if u.Role == "" {
		u.Role = RoleClient
	}
	now := time.Now()
	u.CreatedAt, u.UpdatedAt = now, now

	cp := *u
	d.byID[u.ID] = &cp
	d.byName[name] = u.ID
	return nil
}

func (d *MemoryDirectory) SetTOTP(_ context.Context, id, secret string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.TOTPSecret = secret
	u.MFAEnabled = true
	u.UpdatedAt = time.Now()
	return nil
}
