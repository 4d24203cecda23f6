package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kochabx/authgate/core/auth/token/cache"
)

// SessionStore 进程内会话存储
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*cache.Session
	byUser   map[string]map[string]struct{}
	now      func() time.Time
}

// NewSessionStore 创建进程内会话存储
func NewSessionStore(opts ...Option) *SessionStore {
	o := newOptions(opts)
	return &SessionStore{
		sessions: make(map[string]*cache.Session),
		byUser:   make(map[string]map[string]struct{}),
		now:      o.now,
	}
}

func (s *SessionStore) Save(_ context.Context, session *cache.Session) error {
	cp := *session

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[cp.SessionID] = &cp
	ids, ok := s.byUser[cp.UserID]
	if !ok {
		ids = make(map[string]struct{})
		s.byUser[cp.UserID] = ids
	}
	ids[cp.SessionID] = struct{}{}
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (*cache.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, cache.ErrSessionNotFound
	}

	if session.Expired(s.now()) {
		s.mu.Lock()
		s.remove(session.UserID, sessionID)
		s.mu.Unlock()
		return nil, cache.ErrSessionNotFound
	}

	cp := *session
	return &cp, nil
}

func (s *SessionStore) Delete(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[sessionID]; ok && session.UserID == userID {
		s.remove(userID, sessionID)
	}
	return nil
}

func (s *SessionStore) DeleteAll(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.byUser[userID] {
		delete(s.sessions, id)
	}
	delete(s.byUser, userID)
	return nil
}

func (s *SessionStore) List(_ context.Context, userID string) ([]*cache.Session, error) {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*cache.Session, 0, len(s.byUser[userID]))
	for id := range s.byUser[userID] {
		session := s.sessions[id]
		if session == nil || session.Expired(now) {
			continue
		}
		cp := *session
		out = append(out, &cp)
	}
	return out, nil
}

func (s *SessionStore) Sweep(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, session := range s.sessions {
		if session.Expired(now) {
			s.remove(session.UserID, id)
			n++
		}
	}
	return n, nil
}

// Len 当前会话数量，含未清理的过期会话
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// remove 调用方持有写锁
func (s *SessionStore) remove(userID, sessionID string) {
	delete(s.sessions, sessionID)
	if ids, ok := s.byUser[userID]; ok {
		delete(ids, sessionID)
		if len(ids) == 0 {
			delete(s.byUser, userID)
		}
	}
}

var _ cache.SessionStore = (*SessionStore)(nil)
