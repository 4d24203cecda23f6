package middleware

import (
	"context"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/authgate/core/audit"
	"github.com/kochabx/authgate/core/auth/token"
)

// TokenVerifier 校验 access token
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*token.Claims, error)
}

// Auditor 记录安全事件
type Auditor interface {
	Record(ctx context.Context, e audit.Event)
}

type claimsKey struct{}

// WithClaims 把已校验的 claims 放入 context
func WithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext 取出 Auth 阶段放入的 claims
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*token.Claims)
	return claims, ok && claims != nil
}

// GetClaims 等价于 ClaimsFromContext(c.Request.Context())
func GetClaims(c *gin.Context) (*token.Claims, bool) {
	return ClaimsFromContext(c.Request.Context())
}

// BearerToken 从 Authorization 头提取 token
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, raw, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// authenticate 复用 context 中已有的 claims，否则校验 Bearer token 并写回 context
func authenticate(c *gin.Context, verifier TokenVerifier) (*token.Claims, string, error) {
	if claims, ok := GetClaims(c); ok {
		return claims, "", nil
	}
	raw, ok := BearerToken(c.Request)
	if !ok {
		return nil, "missing bearer token", errMissingToken
	}
	claims, err := verifier.Verify(c.Request.Context(), raw)
	if err != nil {
		return nil, "token rejected", err
	}
	c.Request = c.Request.WithContext(WithClaims(c.Request.Context(), claims))
	return claims, "", nil
}

// record 记录被拒绝的请求，auditor 为 nil 时忽略
func record(c *gin.Context, auditor Auditor, typ audit.Type, reason string) {
	if auditor == nil {
		return
	}
	e := audit.Event{
		Type:   typ,
		IP:     c.ClientIP(),
		Method: c.Request.Method,
		Path:   c.Request.URL.Path,
		Reason: reason,
	}
	if claims, ok := GetClaims(c); ok {
		e.UserID = claims.UserID()
		e.SessionID = claims.SessionID
	}
	auditor.Record(c.Request.Context(), e)
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// prefixPath 预编译的前缀路径
type prefixPath struct {
	prefix    string // 原始前缀，如 "/api"
	prefixLen int    // 前缀长度
}

// PathMatcher 路径匹配器
type PathMatcher struct {
	exactPaths  map[string]struct{} // 精确匹配路径, 如 "/health"
	prefixPaths []prefixPath        // 前缀匹配路径, 如 "/api/**"
	patterns    []string            // glob 模式匹配, 如 "/api/*/users"
}

// NewPathMatcher 创建路径匹配器
// 支持三种匹配模式：
//   - 精确匹配："/health" 只匹配 "/health"
//   - 前缀匹配："/api/**" 匹配 "/api" 及其所有子路径
//   - Glob 模式："/api/*/users" 使用 path.Match 进行模式匹配
//
// Glob 模式语法（与 path.Match 一致）：
//   - '*' 匹配任意非 '/' 字符序列
//   - '?' 匹配任意单个非 '/' 字符
//   - '[abc]' 匹配括号内任意字符
//   - '[a-z]' 匹配范围内任意字符
func NewPathMatcher(paths []string) *PathMatcher {
	if len(paths) == 0 {
		return &PathMatcher{
			exactPaths: make(map[string]struct{}),
		}
	}

	pm := &PathMatcher{
		exactPaths:  make(map[string]struct{}, len(paths)),
		prefixPaths: make([]prefixPath, 0, len(paths)/2), // 预估一半用于前缀匹配
		patterns:    make([]string, 0, len(paths)/4),     // 预估四分之一用于 glob 模式
	}
	for _, p := range paths {
		if prefix, ok := strings.CutSuffix(p, "/**"); ok {
			// 前缀匹配模式：预编译前缀信息
			pm.prefixPaths = append(pm.prefixPaths, prefixPath{
				prefix:    prefix,
				prefixLen: len(prefix),
			})
		} else if strings.ContainsAny(p, "*?[") {
			// Glob 模式
			pm.patterns = append(pm.patterns, p)
		} else {
			// 精确匹配模式
			pm.exactPaths[p] = struct{}{}
		}
	}
	return pm
}

// Match 检查路径是否匹配
func (pm *PathMatcher) Match(urlPath string) bool {
	// 空匹配器快速返回
	if pm == nil {
		return false
	}

	// 1. 精确匹配检查 (O(1) 哈希查找，最快)
	if _, ok := pm.exactPaths[urlPath]; ok {
		return true
	}

	pathLen := len(urlPath)

	// 2. 前缀匹配检查
	for i := range pm.prefixPaths {
		pp := &pm.prefixPaths[i]
		if pathLen < pp.prefixLen {
			continue // 路径比前缀短，不可能匹配
		}
		// 精确匹配前缀本身
		if pathLen == pp.prefixLen {
			if urlPath == pp.prefix {
				return true
			}
			continue
		}
		// pathLen > pp.prefixLen: 使用 strings.HasPrefix 替代切片比较
		// 先检查分隔符位置，避免不必要的前缀比较
		if urlPath[pp.prefixLen] == '/' && strings.HasPrefix(urlPath, pp.prefix) {
			return true
		}
	}

	// 3. Glob 模式匹配 (最慢，放最后)
	for i := range pm.patterns {
		if matched, _ := path.Match(pm.patterns[i], urlPath); matched {
			return true
		}
	}
	return false
}

// shouldSkip 检查请求是否应跳过处理
func shouldSkip(c *gin.Context, matcher *PathMatcher, skipFunc func(*gin.Context) bool) bool {
	// 先检查自定义跳过函数（通常更轻量）
	if skipFunc != nil && skipFunc(c) {
		return true
	}
	// matcher.Match 内部已处理 nil 检查
	return matcher.Match(c.Request.URL.Path)
}
