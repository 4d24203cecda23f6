// Package token 签发、校验、刷新与吊销会话 token。
//
// 每次登录创建一个会话，access token 与 refresh token 共享同一个 sessionID。
// 吊销会话或将 token 加入黑名单后，后续的 Verify 立即失败。
package token

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kochabx/authgate/core/auth/token/cache"
	"github.com/kochabx/authgate/core/tag"
	"github.com/kochabx/authgate/core/validator"
	apperrors "github.com/kochabx/authgate/errors"
	"github.com/kochabx/authgate/log"
)

// Service token 服务
type Service struct {
	cfg       Config
	method    jwt.SigningMethod
	secret    []byte
	sessions  cache.SessionStore
	blacklist cache.Blacklist
	metrics   *Metrics
	logger    *log.Logger
	now       func() time.Time
}

// New 创建 token 服务
func New(cfg Config, sessions cache.SessionStore, blacklist cache.Blacklist, opts ...Option) (*Service, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("apply token defaults: %w", err)
	}
	if err := validator.Validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("token config: %w", err)
	}
	if sessions == nil || blacklist == nil {
		return nil, errors.New("token: session store and blacklist are required")
	}

	s := &Service{
		cfg:       cfg,
		method:    cfg.signingMethod(),
		secret:    []byte(cfg.Secret),
		sessions:  sessions,
		blacklist: blacklist,
		logger:    log.G,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue 创建会话并签发 token 对
func (s *Service) Issue(ctx context.Context, userID, role string) (*Pair, error) {
	if userID == "" {
		return nil, apperrors.BadRequest("user id is required")
	}

	now := s.now()
	sid := uuid.NewString()

	access, err := s.sign(userID, role, sid, TypeAccess, now, s.cfg.AccessTTL)
	if err != nil {
		return nil, apperrors.Internal("sign access token").WithCause(err)
	}
	refresh, err := s.sign(userID, role, sid, TypeRefresh, now, s.cfg.RefreshTTL)
	if err != nil {
		return nil, apperrors.Internal("sign refresh token").WithCause(err)
	}

	session := &cache.Session{
		SessionID: sid,
		UserID:    userID,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.RefreshTTL),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, apperrors.Internal("save session").WithCause(err)
	}

	s.metrics.issue()
	s.logger.Debug().Str("user_id", userID).Str("session_id", sid).Msg("session issued")
	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sid,
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
	}, nil
}

// Verify 校验 access token。签名错误、过期、类型不符、已拉黑、会话已吊销
// 均返回 ErrInvalidToken
func (s *Service) Verify(ctx context.Context, raw string) (*Claims, error) {
	claims, _, err := s.check(ctx, raw, TypeAccess)
	s.metrics.verify(TypeAccess, err)
	if err != nil {
		return nil, s.reject(err)
	}
	return claims, nil
}

// Refresh 使用 refresh token 签发新的 access token，会话 ID 保持不变
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Pair, error) {
	claims, session, err := s.check(ctx, refreshToken, TypeRefresh)
	s.metrics.verify(TypeRefresh, err)
	if err != nil {
		return nil, s.reject(err)
	}

	access, err := s.sign(session.UserID, session.Role, session.SessionID, TypeAccess, s.now(), s.cfg.AccessTTL)
	if err != nil {
		return nil, apperrors.Internal("sign access token").WithCause(err)
	}

	s.logger.Debug().Str("user_id", claims.UserID()).Str("session_id", claims.SessionID).Msg("access token refreshed")
	return &Pair{
		AccessToken:  access,
		RefreshToken: refreshToken,
		SessionID:    session.SessionID,
		ExpiresIn:    int64(s.cfg.AccessTTL / time.Second),
	}, nil
}

// Revoke 吊销用户的指定会话，sessionID 为空时吊销全部会话
func (s *Service) Revoke(ctx context.Context, userID, sessionID string) error {
	var err error
	if sessionID == "" {
		err = s.sessions.DeleteAll(ctx, userID)
	} else {
		err = s.sessions.Delete(ctx, userID, sessionID)
	}
	if err != nil {
		return apperrors.Internal("revoke session").WithCause(err)
	}

	s.logger.Info().Str("user_id", userID).Str("session_id", sessionID).Msg("session revoked")
	return nil
}

// Blacklist 将 token 加入黑名单直到其自然过期。已过期的 token 无需记录
func (s *Service) Blacklist(ctx context.Context, raw string) error {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{s.method.Alg()}), jwt.WithoutClaimsValidation())
	if _, err := parser.ParseWithClaims(raw, claims, s.keyFunc); err != nil || claims.ID == "" {
		return s.reject(errMalformed)
	}

	expiresAt := s.now().Add(s.cfg.RefreshTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if !s.now().Before(expiresAt) {
		return nil
	}

	if err := s.blacklist.Add(ctx, claims.ID, expiresAt); err != nil {
		return apperrors.Internal("blacklist token").WithCause(err)
	}
	return nil
}

// Sessions 列出用户的活跃会话，按签发时间排序
func (s *Service) Sessions(ctx context.Context, userID string) ([]*cache.Session, error) {
	sessions, err := s.sessions.List(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("list sessions").WithCause(err)
	}
	slices.SortFunc(sessions, func(a, b *cache.Session) int {
		return cmp.Compare(a.IssuedAt.UnixNano(), b.IssuedAt.UnixNano())
	})
	return sessions, nil
}

// Sweep 清理过期会话与黑名单条目
func (s *Service) Sweep(ctx context.Context) (int, error) {
	n1, err1 := s.sessions.Sweep(ctx)
	n2, err2 := s.blacklist.Sweep(ctx)
	return n1 + n2, errors.Join(err1, err2)
}

func (s *Service) sign(userID, role, sid string, typ Type, now time.Time, ttl time.Duration) (string, error) {
	claims := &Claims{
		Role:      role,
		SessionID: sid,
		Type:      typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
}

func (s *Service) keyFunc(*jwt.Token) (any, error) {
	return s.secret, nil
}

func (s *Service) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, s.keyFunc,
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return claims, nil
}

func (s *Service) check(ctx context.Context, raw string, want Type) (*Claims, *cache.Session, error) {
	claims, err := s.parse(raw)
	if err != nil {
		return nil, nil, err
	}
	if claims.Type != want {
		return nil, nil, errWrongType
	}

	listed, err := s.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("check blacklist: %w", err)
	}
	if listed {
		return nil, nil, errBlacklisted
	}

	session, err := s.sessions.Get(ctx, claims.SessionID)
	if errors.Is(err, cache.ErrSessionNotFound) {
		return nil, nil, errSessionInactive
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get session: %w", err)
	}
	if session.UserID != claims.Subject {
		return nil, nil, errSessionMismatch
	}
	return claims, session, nil
}

// reject 记录内部原因并返回统一错误。存储故障同样拒绝
func (s *Service) reject(cause error) error {
	switch {
	case errors.Is(cause, errMalformed), errors.Is(cause, errWrongType),
		errors.Is(cause, errBlacklisted), errors.Is(cause, errSessionInactive),
		errors.Is(cause, errSessionMismatch):
		s.logger.Debug().Err(cause).Msg("token rejected")
	default:
		s.logger.Error().Err(cause).Msg("token verification failed")
	}
	return ErrInvalidToken
}
