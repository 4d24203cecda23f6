package token

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics token 指标
type Metrics struct {
	issued        prometheus.Counter
	verifications *prometheus.CounterVec // 按 token 类型与结果（valid/invalid）
}

// NewMetrics 创建指标并注册到 reg，reg 为 nil 时不注册
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		issued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "token",
			Name:      "sessions_issued_total",
			Help:      "Total number of sessions issued",
		}),
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "token",
				Name:      "verifications_total",
				Help:      "Total number of token verifications",
			},
			[]string{"type", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.issued, m.verifications)
	}
	return m
}

func (m *Metrics) issue() {
	if m == nil {
		return
	}
	m.issued.Inc()
}

func (m *Metrics) verify(typ Type, err error) {
	if m == nil {
		return
	}
	result := "valid"
	if err != nil {
		result = "invalid"
	}
	m.verifications.WithLabelValues(string(typ), result).Inc()
}
