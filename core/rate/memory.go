package rate

import (
	"context"
	"sync"
	"time"
)

// Memory 进程内滑动日志
type Memory struct {
	rule Rule

	mu   sync.Mutex
	logs map[string][]time.Time
}

// NewMemory 创建进程内限流器
func NewMemory(rule Rule) *Memory {
	return &Memory{rule: rule, logs: make(map[string][]time.Time)}
}

func (m *Memory) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := trim(m.logs[key], now.Add(-m.rule.Window))
	d := Decision{Limit: m.rule.Limit}

	if len(log) >= m.rule.Limit {
		m.logs[key] = log
		if len(log) > 0 {
			d.RetryAfter = log[0].Add(m.rule.Window).Sub(now)
		}
		return d, nil
	}

	log = append(log, now)
	m.logs[key] = log
	d.Allowed = true
	d.Remaining = m.rule.Limit - len(log)
	return d, nil
}

func (m *Memory) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-m.rule.Window)
	n := 0
	for key, log := range m.logs {
		log = trim(log, cutoff)
		if len(log) == 0 {
			delete(m.logs, key)
			n++
			continue
		}
		m.logs[key] = log
	}
	return n, nil
}

// Len 当前跟踪的 key 数量
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs)
}

// trim 丢弃不晚于 cutoff 的时间戳，log 按时间升序
func trim(log []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(log) && !log[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return log
	}
	return append(log[:0:0], log[i:]...)
}

var _ Limiter = (*Memory)(nil)
