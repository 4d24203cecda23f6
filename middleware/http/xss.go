package middleware

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/authgate/core/sanitize"
	"github.com/kochabx/authgate/log"
)

// XssConfig 输入清洗配置
type XssConfig struct {
	Sanitizer *sanitize.Sanitizer // 默认 sanitize.New()
	// 请求体读取上限，超出部分不清洗
	MaxBodyBytes int64
	SkipPaths    []string
	SkipFunc     func(*gin.Context) bool
	Logger       *log.Logger
}

func Xss() gin.HandlerFunc {
	return XssWithConfig(XssConfig{})
}

// XssWithConfig 清洗查询参数、表单与 JSON 请求体中的 HTML 标记
//
// 非法 JSON 原样放行，由后续绑定报错。
func XssWithConfig(cfg XssConfig) gin.HandlerFunc {
	if cfg.Sanitizer == nil {
		cfg.Sanitizer = sanitize.New()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = log.G
	}

	matcher := NewPathMatcher(cfg.SkipPaths)

	return func(c *gin.Context) {
		if shouldSkip(c, matcher, cfg.SkipFunc) {
			c.Next()
			return
		}

		if c.Request.URL.RawQuery != "" {
			query := c.Request.URL.Query()
			cfg.Sanitizer.Values(query)
			c.Request.URL.RawQuery = query.Encode()
		}

		if c.Request.Body != nil && c.Request.Body != http.NoBody {
			mediaType, _, _ := mime.ParseMediaType(c.Request.Header.Get("Content-Type"))
			switch mediaType {
			case "application/json":
				sanitizeBody(c, cfg, func(body []byte) ([]byte, error) {
					return cfg.Sanitizer.JSON(body)
				})
			case "application/x-www-form-urlencoded":
				sanitizeBody(c, cfg, func(body []byte) ([]byte, error) {
					values, err := url.ParseQuery(string(body))
					if err != nil {
						return nil, err
					}
					cfg.Sanitizer.Values(values)
					return []byte(values.Encode()), nil
				})
			}
		}

		c.Next()
	}
}

func sanitizeBody(c *gin.Context, cfg XssConfig, clean func([]byte) ([]byte, error)) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, cfg.MaxBodyBytes+1))
	_ = c.Request.Body.Close()
	if err != nil {
		cfg.Logger.Warn().Err(err).Msg("xss: read body failed")
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		return
	}
	if int64(len(body)) > cfg.MaxBodyBytes {
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		return
	}

	cleaned, err := clean(body)
	if err != nil {
		cleaned = body
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(cleaned))
	c.Request.ContentLength = int64(len(cleaned))
	c.Request.Header.Set("Content-Length", strconv.Itoa(len(cleaned)))
}
