// Package mfa 管理登录第二因素：一次性数字验证码挑战与 TOTP 绑定。
//
// 挑战在 CodeTTL 后过期；每次校验都会累加尝试次数，超过 MaxAttempts 后
// 挑战被删除，即使验证码正确也返回 false。
package mfa

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/kochabx/authgate/core/tag"
	"github.com/kochabx/authgate/core/validator"
	"github.com/kochabx/authgate/log"
)

// Config 挑战配置
type Config struct {
	CodeTTL     time.Duration `json:"code_ttl" mapstructure:"code_ttl" default:"5m" validate:"gt=0"`
	MaxAttempts int           `json:"max_attempts" mapstructure:"max_attempts" default:"3" validate:"min=1"`
	Digits      int           `json:"digits" mapstructure:"digits" default:"6" validate:"min=4,max=10"`
	// TOTP 签发方，显示在认证器应用中
	Issuer string `json:"issuer" mapstructure:"issuer" default:"authgate"`
}

// Manager 挑战管理器
type Manager struct {
	cfg    Config
	store  Store
	logger *log.Logger
	now    func() time.Time
}

// Option 选项
type Option func(*Manager)

// WithLogger 设置日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New 创建管理器，store 为 nil 时使用进程内存储
func New(cfg Config, store Store, opts ...Option) (*Manager, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("apply mfa defaults: %w", err)
	}
	if err := validator.Validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("mfa config: %w", err)
	}
	if store == nil {
		store = NewMemoryStore()
	}

	m := &Manager{
		cfg:    cfg,
		store:  store,
		logger: log.G,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config 当前配置
func (m *Manager) Config() Config { return m.cfg }

// CreateChallenge 生成新验证码并覆盖用户已有的挑战
func (m *Manager) CreateChallenge(ctx context.Context, userID string) (string, error) {
	code, err := randomCode(m.cfg.Digits)
	if err != nil {
		return "", err
	}

	ch := &Challenge{
		UserID:    userID,
		Code:      code,
		ExpiresAt: m.now().Add(m.cfg.CodeTTL),
	}
	if err := m.store.Put(ctx, ch); err != nil {
		return "", fmt.Errorf("save challenge: %w", err)
	}

	m.logger.Debug().Str("user_id", userID).Time("expires_at", ch.ExpiresAt).Msg("mfa challenge created")
	return code, nil
}

// VerifyChallenge 校验验证码。过期、次数耗尽、匹配成功都会删除挑战
func (m *Manager) VerifyChallenge(ctx context.Context, userID, code string) (bool, error) {
	return m.VerifyWith(ctx, userID, func(stored string) bool {
		return subtle.ConstantTimeCompare([]byte(stored), []byte(code)) == 1
	})
}

// VerifyWith 与 VerifyChallenge 相同的过期与次数规则，是否匹配由 match 判定。
// 挑战不存在、已过期或次数耗尽时不调用 match。
//
// TOTP 用户登录时同样创建挑战，验证码不下发，只作为密码已通过的凭据，
// 校验时由 match 比对认证器生成的动态码。
func (m *Manager) VerifyWith(ctx context.Context, userID string, match func(stored string) bool) (bool, error) {
	now := m.now()
	ok := false
	reason := "no challenge"

	err := m.store.Update(ctx, userID, func(ch *Challenge) *Challenge {
		if ch == nil {
			return nil
		}
		if !now.Before(ch.ExpiresAt) {
			reason = "expired"
			return nil
		}

		ch.Attempts++
		if ch.Attempts > m.cfg.MaxAttempts {
			reason = "attempts exhausted"
			return nil
		}
		if match(ch.Code) {
			ok = true
			return nil
		}
		reason = "mismatch"
		return ch
	})
	if err != nil {
		return false, fmt.Errorf("verify challenge: %w", err)
	}

	if !ok {
		m.logger.Debug().Str("user_id", userID).Str("reason", reason).Msg("mfa challenge rejected")
	}
	return ok, nil
}

// Sweep 清理过期挑战
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	return m.store.Sweep(ctx, m.now())
}

// randomCode 均匀分布的 n 位数字，保留前导零
func randomCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
