// Package scheduler 周期性清理各存储中的过期数据。
//
// Sweeper 基于 robfig/cron 按表达式触发已注册的清理任务；配置了分布式锁时，
// 多个实例中同一任务同一时刻只会有一个在执行。Sweeper 实现了
// transport.Server，可直接交给 app 管理生命周期。
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/kochabx/authgate/core/tag"
	"github.com/kochabx/authgate/log"
	"github.com/kochabx/authgate/transport"
)

var _ transport.Server = (*Sweeper)(nil)

const (
	statusSuccess = "success"
	statusFailed  = "failed"
	statusSkipped = "skipped"
)

// ErrDuplicateJob 重复注册
var ErrDuplicateJob = errors.New("scheduler: job already registered")

// Sweepable 可被清理的组件
type Sweepable interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepFunc 适配普通函数
type SweepFunc func(ctx context.Context) (int, error)

func (f SweepFunc) Sweep(ctx context.Context) (int, error) { return f(ctx) }

// Config 清理配置
type Config struct {
	Spec string `json:"spec" mapstructure:"spec" default:"@every 1m"`
	// 单个任务执行超时
	Timeout time.Duration `json:"timeout" mapstructure:"timeout" default:"30s"`
	// 分布式锁过期时间，应大于 Timeout
	LockTTL time.Duration `json:"lock_ttl" mapstructure:"lock_ttl" default:"1m"`
}

// Result 单个任务一次执行的结果
type Result struct {
	Job     string
	Removed int
	Skipped bool
	Err     error
}

// Sweeper 清理调度器
type Sweeper struct {
	cfg     Config
	cron    *cron.Cron
	locker  Locker
	metrics *Metrics
	logger  *log.Logger

	mu   sync.Mutex
	jobs map[string]Sweepable
	done chan struct{}
	once sync.Once
}

// Option 选项
type Option func(*Sweeper)

// WithLocker 设置分布式锁
func WithLocker(locker Locker) Option {
	return func(s *Sweeper) { s.locker = locker }
}

// WithMetrics 设置指标
func WithMetrics(m *Metrics) Option {
	return func(s *Sweeper) { s.metrics = m }
}

// WithLogger 设置日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// New 创建清理调度器
func New(cfg Config, opts ...Option) (*Sweeper, error) {
	if err := tag.ApplyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("apply sweeper defaults: %w", err)
	}
	if err := ValidateSpec(cfg.Spec); err != nil {
		return nil, err
	}

	s := &Sweeper{
		cfg:    cfg,
		logger: log.G,
		jobs:   make(map[string]Sweepable),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	clog := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	if _, err := s.cron.AddFunc(cfg.Spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("schedule sweeper: %w", err)
	}
	return s, nil
}

// Register 注册清理任务
func (s *Sweeper) Register(name string, job Sweepable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	s.jobs[name] = job
	return nil
}

// Jobs 已注册的任务名（有序）
func (s *Sweeper) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunOnce 依次执行所有任务一次
func (s *Sweeper) RunOnce(ctx context.Context) []Result {
	names := s.Jobs()
	results := make([]Result, 0, len(names))
	for _, name := range names {
		s.mu.Lock()
		job := s.jobs[name]
		s.mu.Unlock()
		results = append(results, s.run(ctx, name, job))
	}
	return results
}

func (s *Sweeper) run(ctx context.Context, name string, job Sweepable) Result {
	res := Result{Job: name}

	if s.locker != nil {
		token := uuid.NewString()
		ok, err := s.locker.Acquire(ctx, "sweep:"+name, token, s.cfg.LockTTL)
		if err != nil {
			res.Err = fmt.Errorf("acquire lock: %w", err)
			s.logger.Warn().Err(err).Str("job", name).Msg("sweep lock failed")
			s.metrics.record(name, statusFailed, 0, 0)
			return res
		}
		if !ok {
			res.Skipped = true
			s.metrics.record(name, statusSkipped, 0, 0)
			return res
		}
		defer func() {
			if _, err := s.locker.Release(context.WithoutCancel(ctx), "sweep:"+name, token); err != nil {
				s.logger.Warn().Err(err).Str("job", name).Msg("sweep unlock failed")
			}
		}()
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	res.Removed, res.Err = job.Sweep(ctx)
	elapsed := time.Since(start)

	if res.Err != nil {
		s.logger.Error().Err(res.Err).Str("job", name).Msg("sweep failed")
		s.metrics.record(name, statusFailed, res.Removed, elapsed.Seconds())
		return res
	}
	s.metrics.record(name, statusSuccess, res.Removed, elapsed.Seconds())
	if res.Removed > 0 {
		s.logger.Debug().Str("job", name).Int("removed", res.Removed).Dur("elapsed", elapsed).Msg("sweep finished")
	}
	return res
}

// Run 启动调度并阻塞直到 Shutdown
func (s *Sweeper) Run() error {
	s.logger.Info().Str("spec", s.cfg.Spec).Strs("jobs", s.Jobs()).Msg("sweeper started")
	s.cron.Start()
	<-s.done
	return nil
}

// Shutdown 停止调度并等待进行中的任务结束
func (s *Sweeper) Shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.done) })
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
