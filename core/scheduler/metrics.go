package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 清理任务指标
type Metrics struct {
	runs     *prometheus.CounterVec   // 执行次数（按状态：success/failed/skipped）
	removed  *prometheus.CounterVec   // 清理掉的条目数
	duration *prometheus.HistogramVec // 执行时长
}

// NewMetrics 创建指标并注册到 reg，reg 为 nil 时不注册
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "runs_total",
				Help:      "Total number of sweep runs",
			},
			[]string{"job", "status"},
		),
		removed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "removed_total",
				Help:      "Total number of expired entries removed",
			},
			[]string{"job"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sweeper",
				Name:      "duration_seconds",
				Help:      "Sweep duration in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"job"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.removed, m.duration)
	}
	return m
}

func (m *Metrics) record(job, status string, removed int, seconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job, status).Inc()
	if status == statusSkipped {
		return
	}
	m.duration.WithLabelValues(job).Observe(seconds)
	if removed > 0 {
		m.removed.WithLabelValues(job).Add(float64(removed))
	}
}
