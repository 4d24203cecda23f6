package http

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kochabx/authgate/log"
	"github.com/kochabx/authgate/transport"
	httpmetrics "github.com/kochabx/authgate/transport/http/metrics"
)

var _ transport.Server = (*Server)(nil)

const (
	defaultName = "http"
	defaultAddr = ":8080"
)

// Meta is the metadata of the server.
type Meta struct {
	Name string
}

type Server struct {
	meta     Meta
	options  Options
	registry *prometheus.Registry
	server   *http.Server
}

type Option func(*Server)

func WithMeta(meta Meta) Option {
	return func(s *Server) {
		s.meta = meta
	}
}

// WithRegistry 指定 /metrics 暴露的 registry，默认 httpmetrics.Prom
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

func WithMetricsOptions(metrics MetricsOption) Option {
	return func(s *Server) {
		if err := metrics.init(); err != nil {
			log.Error().Err(err).Send()
			return
		}
		s.options.Metrics = metrics
	}
}

func WithHealthOptions(health HealthOption) Option {
	return func(s *Server) {
		if err := health.init(); err != nil {
			log.Error().Err(err).Send()
			return
		}
		s.options.Health = health
	}
}

// WithConfig 应用超时配置与 metrics/health 选项
func WithConfig(cfg Config) Option {
	return func(s *Server) {
		if cfg.Addr != "" {
			s.server.Addr = cfg.Addr
		}
		s.server.ReadHeaderTimeout = cfg.ReadHeaderTimeout
		s.server.ReadTimeout = cfg.ReadTimeout
		s.server.WriteTimeout = cfg.WriteTimeout
		s.server.IdleTimeout = cfg.IdleTimeout
		WithMetricsOptions(cfg.Metrics)(s)
		WithHealthOptions(cfg.Health)(s)
	}
}

func NewServer(addr string, handler http.Handler, opts ...Option) *Server {
	s := &Server{
		registry: httpmetrics.Prom.Registry(),
		server: &http.Server{
			Addr:    addr,
			Handler: handler,
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	additionalHandlers(s)

	return s
}

func (s *Server) Run() error {
	if s.meta.Name == "" {
		s.meta.Name = defaultName
	}

	if ok := transport.ValidateAddress(s.server.Addr); !ok {
		log.Warn().Msgf("invalid address %s, using default address: %s", s.server.Addr, defaultAddr)
		s.server.Addr = defaultAddr
	}
	log.Info().Msgf("%s server listening on %s", s.meta.Name, s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler 返回底层 handler，便于测试
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func additionalHandlers(s *Server) {
	if r, ok := s.server.Handler.(*gin.Engine); ok {
		handleMetrics(s, r)
		handleHealth(s, r)
	}
}

func handleMetrics(s *Server, r *gin.Engine) {
	if !s.options.Metrics.Enabled {
		return
	}
	if s.options.Metrics.EnabledGoCollector {
		httpmetrics.RegisterGoCollector(s.registry)
	}
	if s.options.Metrics.EnabledBuildInfoCollector {
		httpmetrics.RegisterBuildInfoCollector(s.registry)
	}

	r.GET(s.options.Metrics.Path, gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})))
}

func handleHealth(s *Server, r *gin.Engine) {
	if !s.options.Health.Enabled {
		return
	}
	opt := s.options.Health
	r.GET(opt.Path, func(c *gin.Context) {
		if len(opt.Checks) == 0 {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), opt.Timeout)
		defer cancel()

		var (
			mu     sync.Mutex
			wg     sync.WaitGroup
			failed = make(map[string]string)
		)
		for name, check := range opt.Checks {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := check(ctx); err != nil {
					mu.Lock()
					failed[name] = err.Error()
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		checks := make(map[string]string, len(opt.Checks))
		names := make([]string, 0, len(opt.Checks))
		for name := range opt.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if msg, ok := failed[name]; ok {
				checks[name] = msg
			} else {
				checks[name] = "ok"
			}
		}

		if len(failed) > 0 {
			log.Warn().Any("checks", checks).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
	})
}
