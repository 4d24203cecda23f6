package desensitize

import (
	"io"
	"sync"
)

// Hook 按添加顺序依次应用的规则集合
type Hook struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewHook 创建脱敏钩子
func NewHook(rules ...Rule) *Hook {
	h := &Hook{}
	h.Add(rules...)
	return h
}

// Add 添加规则，同名规则会被替换
func (h *Hook) Add(rules ...Rule) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range rules {
		if r == nil {
			continue
		}
		replaced := false
		for i, existing := range h.rules {
			if existing.Name() == r.Name() {
				h.rules[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			h.rules = append(h.rules, r)
		}
	}
}

// Remove 移除规则
func (h *Hook) Remove(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, r := range h.rules {
		if r.Name() == name {
			h.rules = append(h.rules[:i], h.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rule 按名称查找规则
func (h *Hook) Rule(name string) (Rule, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.rules {
		if r.Name() == name {
			return r, true
		}
	}
	return nil, false
}

// Len 规则数量
func (h *Hook) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rules)
}

// Desensitize 对字符串应用全部启用的规则
func (h *Hook) Desensitize(s string) string {
	if s == "" {
		return s
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, r := range h.rules {
		s = r.Process(s)
	}
	return s
}

// Writer 在写入前脱敏的 io.Writer
type Writer struct {
	w    io.Writer
	hook *Hook
}

// NewWriter 包装 w
func NewWriter(w io.Writer, hook *Hook) *Writer {
	return &Writer{w: w, hook: hook}
}

// Write 脱敏后写入，返回值始终为 len(p)
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 || w.hook.Len() == 0 {
		return w.w.Write(p)
	}
	text := string(p)
	out := w.hook.Desensitize(text)
	if out == text {
		return w.w.Write(p)
	}
	if _, err := io.WriteString(w.w, out); err != nil {
		return 0, err
	}
	return len(p), nil
}
