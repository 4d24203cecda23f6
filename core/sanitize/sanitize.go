// Package sanitize 去除请求输入中的 HTML 标记。
//
// 递归处理 JSON 对象与数组、查询参数和表单值中的字符串。
// 不含 '<' 或 '>' 的字符串原样保留，其余交给 bluemonday 策略处理。
package sanitize

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultSkipFields 默认不处理的字段，密码需要原样参与校验
var DefaultSkipFields = []string{"password", "current_password", "new_password"}

// Sanitizer 输入清洗器，可并发使用
type Sanitizer struct {
	policy *bluemonday.Policy
	skip   map[string]struct{}
}

// Option 选项
type Option func(*Sanitizer)

// WithPolicy 替换默认的 StrictPolicy
func WithPolicy(p *bluemonday.Policy) Option {
	return func(s *Sanitizer) { s.policy = p }
}

// WithSkipFields 替换不处理的字段名（大小写不敏感）
func WithSkipFields(fields ...string) Option {
	return func(s *Sanitizer) {
		s.skip = make(map[string]struct{}, len(fields))
		for _, f := range fields {
			s.skip[strings.ToLower(f)] = struct{}{}
		}
	}
}

// New 创建清洗器，默认使用 bluemonday.StrictPolicy 去除所有标签
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{policy: bluemonday.StrictPolicy()}
	WithSkipFields(DefaultSkipFields...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// String 清洗单个字符串
func (s *Sanitizer) String(v string) string {
	if !strings.ContainsAny(v, "<>") {
		return v
	}
	return s.policy.Sanitize(v)
}

// Value 递归清洗 JSON 解码得到的值
func (s *Sanitizer) Value(v any) any {
	switch t := v.(type) {
	case string:
		return s.String(t)
	case map[string]any:
		for k, child := range t {
			if s.skipped(k) {
				continue
			}
			t[k] = s.Value(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = s.Value(child)
		}
		return t
	default:
		return v
	}
}

// JSON 清洗 JSON 文本，数字保持原样。非法 JSON 返回错误
func (s *Sanitizer) JSON(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s.Value(v)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Values 原地清洗查询参数或表单值
func (s *Sanitizer) Values(values url.Values) {
	for key, vals := range values {
		if s.skipped(key) {
			continue
		}
		for i, v := range vals {
			vals[i] = s.String(v)
		}
	}
}

func (s *Sanitizer) skipped(key string) bool {
	_, ok := s.skip[strings.ToLower(key)]
	return ok
}
