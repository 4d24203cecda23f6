package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CorsConfig CORS 中间件配置
type CorsConfig struct {
	Enabled          bool                    `json:"enabled" mapstructure:"enabled"`
	AllowOrigins     []string                `json:"allow_origins" mapstructure:"allow_origins"`         // 允许的源，支持 "*" 与 "*.example.com"
	AllowMethods     []string                `json:"allow_methods" mapstructure:"allow_methods"`         // 允许的 HTTP 方法
	AllowHeaders     []string                `json:"allow_headers" mapstructure:"allow_headers"`         // 允许的请求头
	AllowCredentials bool                    `json:"allow_credentials" mapstructure:"allow_credentials"` // 是否允许携带凭证
	ExposeHeaders    []string                `json:"expose_headers" mapstructure:"expose_headers"`       // 暴露给客户端的响应头
	MaxAge           int                     `json:"max_age" mapstructure:"max_age"`                     // 预检请求缓存时间（秒）
	SkipPaths        []string                `json:"skip_paths" mapstructure:"skip_paths"`
	SkipFunc         func(*gin.Context) bool `json:"-" mapstructure:"-"`
}

// DefaultCorsConfig 返回默认 CORS 配置
func DefaultCorsConfig() CorsConfig {
	return CorsConfig{
		Enabled:          true,
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", DefaultCSRFHeader, "Authorization", "X-Request-Id"},
		AllowCredentials: false, // 当 AllowOrigins 为 "*" 时，AllowCredentials 必须为 false
		ExposeHeaders:    []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:           43200,
	}
}

// corsPolicy 预先拼好的响应头
type corsPolicy struct {
	anyOrigin   bool
	exact       map[string]struct{}
	suffixes    []string // "*.example.com" 存为 ".example.com"
	credentials bool
	headers     map[string]string
}

func newCorsPolicy(cfg CorsConfig) *corsPolicy {
	p := &corsPolicy{
		exact:       make(map[string]struct{}, len(cfg.AllowOrigins)),
		credentials: cfg.AllowCredentials,
		headers: map[string]string{
			"Access-Control-Allow-Methods":     strings.Join(cfg.AllowMethods, ", "),
			"Access-Control-Allow-Headers":     strings.Join(cfg.AllowHeaders, ", "),
			"Access-Control-Allow-Credentials": strconv.FormatBool(cfg.AllowCredentials),
			"Access-Control-Max-Age":           strconv.Itoa(cfg.MaxAge),
		},
	}
	if len(cfg.ExposeHeaders) > 0 {
		p.headers["Access-Control-Expose-Headers"] = strings.Join(cfg.ExposeHeaders, ", ")
	}
	for _, o := range cfg.AllowOrigins {
		switch {
		case o == "*":
			p.anyOrigin = true
		case strings.HasPrefix(o, "*."):
			p.suffixes = append(p.suffixes, o[1:])
		default:
			p.exact[o] = struct{}{}
		}
	}
	return p
}

// allowOrigin 返回 Access-Control-Allow-Origin 的取值
func (p *corsPolicy) allowOrigin(origin string) (string, bool) {
	if p.anyOrigin {
		if p.credentials {
			return origin, true
		}
		return "*", true
	}
	if _, ok := p.exact[origin]; ok {
		return origin, true
	}
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(origin, suffix) {
			return origin, true
		}
	}
	return "", false
}

// Cors 创建 CORS 中间件，未设置的字段取默认值
//
// 预检请求直接以 204 结束，不进入网关。
func Cors(cfg CorsConfig) gin.HandlerFunc {
	def := DefaultCorsConfig()
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = def.AllowOrigins
	}
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = def.AllowMethods
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = def.AllowHeaders
	}
	if len(cfg.ExposeHeaders) == 0 {
		cfg.ExposeHeaders = def.ExposeHeaders
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = def.MaxAge
	}

	policy := newCorsPolicy(cfg)
	matcher := NewPathMatcher(cfg.SkipPaths)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || shouldSkip(c, matcher, cfg.SkipFunc) {
			c.Next()
			return
		}
		allow, ok := policy.allowOrigin(origin)
		if !ok {
			c.Next()
			return
		}

		header := c.Writer.Header()
		header.Set("Access-Control-Allow-Origin", allow)
		if allow != "*" {
			header.Add("Vary", "Origin")
		}
		for k, v := range policy.headers {
			header.Set(k, v)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
