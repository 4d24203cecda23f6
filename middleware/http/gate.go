package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kochabx/authgate/core/rate"
	"github.com/kochabx/authgate/core/sanitize"
	"github.com/kochabx/authgate/log"
)

// GateConfig 安全网关配置
type GateConfig struct {
	Limiter   RateLimiter
	Sanitizer *sanitize.Sanitizer
	CSRF      CSRFValidator
	Verifier  TokenVerifier
	// CSRF 头名称，默认 X-CSRF-Token
	CSRFHeader string
	// 无会话的写接口（登录、刷新等），跳过 CSRF
	CSRFSkipPaths []string
	Auditor       Auditor
	Metrics       *Metrics
	Logger        *log.Logger
}

// Gate 按固定顺序组合：限流 → 输入清洗 → CSRF，认证与角色检查按路由追加
//
// 任一阶段拒绝后中止，后续阶段与 handler 不再执行。
type Gate struct {
	cfg      GateConfig
	sanitize gin.HandlerFunc
	csrf     gin.HandlerFunc
	auth     gin.HandlerFunc
	limiters map[rate.Class]gin.HandlerFunc
}

// NewGate 创建网关，Limiter、CSRF、Verifier 必需
func NewGate(cfg GateConfig) *Gate {
	if cfg.Logger == nil {
		cfg.Logger = log.G
	}
	g := &Gate{
		cfg:      cfg,
		limiters: make(map[rate.Class]gin.HandlerFunc, 3),
	}
	for _, class := range []rate.Class{rate.General, rate.Auth, rate.API} {
		g.limiters[class] = RateLimit(RateLimitConfig{
			Limiter: cfg.Limiter,
			Class:   class,
			Auditor: cfg.Auditor,
			Metrics: cfg.Metrics,
			Logger:  cfg.Logger,
		})
	}
	g.sanitize = XssWithConfig(XssConfig{Sanitizer: cfg.Sanitizer, Logger: cfg.Logger})
	g.csrf = CSRF(CSRFConfig{
		Validator: cfg.CSRF,
		Verifier:  cfg.Verifier,
		Header:    cfg.CSRFHeader,
		SkipPaths: cfg.CSRFSkipPaths,
		Auditor:   cfg.Auditor,
		Metrics:   cfg.Metrics,
		Logger:    cfg.Logger,
	})
	g.auth = Auth(AuthConfig{
		Verifier: cfg.Verifier,
		Auditor:  cfg.Auditor,
		Metrics:  cfg.Metrics,
		Logger:   cfg.Logger,
	})
	return g
}

// Chain 返回某一限流类别的网关链
func (g *Gate) Chain(class rate.Class) []gin.HandlerFunc {
	limiter, ok := g.limiters[class]
	if !ok {
		limiter = g.limiters[rate.General]
	}
	return []gin.HandlerFunc{limiter, g.sanitize, g.csrf}
}

// General 全站限流，挂在所有业务路由之前，与类别限流分别计数
func (g *Gate) General() gin.HandlerFunc {
	return g.limiters[rate.General]
}

// Auth 认证中间件，复用 CSRF 阶段已校验的 claims
func (g *Gate) Auth() gin.HandlerFunc {
	return g.auth
}

// RequireRole 角色检查，需放在 Auth 之后
func (g *Gate) RequireRole(roles ...string) gin.HandlerFunc {
	return RequireRole(g.cfg.Auditor, g.cfg.Metrics, roles...)
}
