package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// 登录结果
const (
	resultSuccess     = "success"
	resultFailure     = "failure"
	resultLocked      = "locked"
	resultMFARequired = "mfa_required"
)

// Metrics 登录与 MFA 指标
type Metrics struct {
	logins *prometheus.CounterVec
	mfa    *prometheus.CounterVec
}

// NewMetrics 创建指标并注册到 reg，reg 为 nil 时不注册
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "logins_total",
				Help:      "Total number of password logins by result",
			},
			[]string{"result"},
		),
		mfa: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "mfa_verifications_total",
				Help:      "Total number of second factor verifications",
			},
			[]string{"method", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.logins, m.mfa)
	}
	return m
}

func (m *Metrics) login(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) secondFactor(method, result string) {
	if m == nil {
		return
	}
	m.mfa.WithLabelValues(method, result).Inc()
}
