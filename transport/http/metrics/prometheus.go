// Package metrics 持有进程级 prometheus registry，/metrics 默认暴露它
package metrics

import (
	"errors"
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Prom 进程级 registry，网关、token 与登录计数器都注册在这里
var Prom = New()

// Prometheus 包装独立的 registry，不使用 prometheus.DefaultRegisterer
type Prometheus struct {
	registry *prometheus.Registry
}

func New() *Prometheus {
	return &Prometheus{registry: prometheus.NewRegistry()}
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// RegisterGoCollector 注册 Go 运行时指标，重复注册时忽略
func RegisterGoCollector(reg prometheus.Registerer) {
	register(reg, collectors.NewGoCollector(
		collectors.WithGoCollectorRuntimeMetrics(collectors.GoRuntimeMetricsRule{Matcher: regexp.MustCompile("/.*")}),
	))
}

// RegisterBuildInfoCollector 注册构建信息指标，重复注册时忽略
func RegisterBuildInfoCollector(reg prometheus.Registerer) {
	register(reg, collectors.NewBuildInfoCollector())
}

func register(reg prometheus.Registerer, c prometheus.Collector) {
	err := reg.Register(c)
	var are prometheus.AlreadyRegisteredError
	if err == nil || errors.As(err, &are) {
		return
	}
	panic(err)
}
