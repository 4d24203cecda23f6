package desensitize

import (
	"fmt"
	"regexp"
	"sync/atomic"
)

const mask = "******"

// Rule 脱敏规则
type Rule interface {
	Name() string
	Enabled() bool
	SetEnabled(enabled bool)
	Process(s string) string
}

type baseRule struct {
	name     string
	disabled atomic.Bool
}

func (r *baseRule) Name() string            { return r.name }
func (r *baseRule) Enabled() bool           { return !r.disabled.Load() }
func (r *baseRule) SetEnabled(enabled bool) { r.disabled.Store(!enabled) }

// ContentRule 按正则替换整段文本
type ContentRule struct {
	baseRule
	pattern     *regexp.Regexp
	replacement string
}

// NewContentRule 创建内容规则，replacement 支持 $1 形式的分组引用
func NewContentRule(name, pattern, replacement string) (*ContentRule, error) {
	if name == "" || pattern == "" {
		return nil, fmt.Errorf("rule name and pattern are required")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return &ContentRule{baseRule: baseRule{name: name}, pattern: re, replacement: replacement}, nil
}

func (r *ContentRule) Process(s string) string {
	if !r.Enabled() {
		return s
	}
	return r.pattern.ReplaceAllString(s, r.replacement)
}

// FieldRule 遮盖 JSON 中指定字段的字符串值
type FieldRule struct {
	baseRule
	field   string
	pattern *regexp.Regexp
}

// NewFieldRule 创建字段规则
func NewFieldRule(name, field string) (*FieldRule, error) {
	if name == "" || field == "" {
		return nil, fmt.Errorf("rule name and field are required")
	}
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(field) + `"\s*:\s*"(?:[^"\\]|\\.)*"`)
	return &FieldRule{baseRule: baseRule{name: name}, field: field, pattern: re}, nil
}

func (r *FieldRule) Process(s string) string {
	if !r.Enabled() {
		return s
	}
	return r.pattern.ReplaceAllLiteralString(s, `"`+r.field+`":"`+mask+`"`)
}

func mustContent(name, pattern, replacement string) *ContentRule {
	r, err := NewContentRule(name, pattern, replacement)
	if err != nil {
		panic(err)
	}
	return r
}

func mustField(field string) *FieldRule {
	r, err := NewFieldRule(field, field)
	if err != nil {
		panic(err)
	}
	return r
}

// AuthRules 鉴权相关的内置规则：Bearer 凭证、JWT、口令、验证码与 CSRF token
func AuthRules() []Rule {
	return []Rule{
		mustContent("bearer", `(?i)(bearer\s+)[A-Za-z0-9\-_.~+/=]+`, "${1}"+mask),
		mustContent("jwt", `eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`, mask),
		mustField("password"),
		mustField("access_token"),
		mustField("refresh_token"),
		mustField("csrf_token"),
		mustField("code"),
		mustField("secret"),
	}
}
