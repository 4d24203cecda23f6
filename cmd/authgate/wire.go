package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/kochabx/authgate/account"
	"github.com/kochabx/authgate/app"
	"github.com/kochabx/authgate/core/audit"
	"github.com/kochabx/authgate/core/auth/csrf"
	"github.com/kochabx/authgate/core/auth/lockout"
	"github.com/kochabx/authgate/core/auth/mfa"
	"github.com/kochabx/authgate/core/auth/token"
	"github.com/kochabx/authgate/core/auth/token/cache"
	"github.com/kochabx/authgate/core/auth/token/cache/memory"
	cacheredis "github.com/kochabx/authgate/core/auth/token/cache/redis"
	"github.com/kochabx/authgate/core/rate"
	"github.com/kochabx/authgate/core/sanitize"
	"github.com/kochabx/authgate/core/scheduler"
	authhandler "github.com/kochabx/authgate/handler/auth"
	"github.com/kochabx/authgate/log"
	middleware "github.com/kochabx/authgate/middleware/http"
	"github.com/kochabx/authgate/store/db"
	"github.com/kochabx/authgate/store/kafka"
	storeredis "github.com/kochabx/authgate/store/redis"
	"github.com/kochabx/authgate/transport/http"
)

// clients 外部连接，按打开的逆序关闭
type clients struct {
	redis *storeredis.Client
	db    *db.Client
	kafka *kafka.Client
}

func openClients(ctx context.Context, cfg *Config, logger *log.Logger) (*clients, error) {
	c := &clients{}
	var err error

	if cfg.Redis.Enabled {
		opts := []storeredis.Option{storeredis.WithLogger(logger)}
		if cfg.Redis.Tracing {
			opts = append(opts, storeredis.WithTracing())
		}
		if cfg.Redis.Metrics {
			opts = append(opts, storeredis.WithMetrics())
		}
		if c.redis, err = storeredis.New(ctx, &cfg.Redis.Config, opts...); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	if cfg.DB.Enabled {
		if c.db, err = db.New(&cfg.DB.Config, db.WithLogger(logger)); err != nil {
			c.close()
			return nil, fmt.Errorf("connect database: %w", err)
		}
	}
	if cfg.Kafka.Enabled {
		if c.kafka, err = kafka.New(&cfg.Kafka.Config, kafka.WithLogger(logger)); err != nil {
			c.close()
			return nil, fmt.Errorf("create kafka client: %w", err)
		}
	}
	return c, nil
}

func (c *clients) close() error {
	var errs []error
	if c.kafka != nil {
		errs = append(errs, c.kafka.Close())
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	return errors.Join(errs...)
}

func (c *clients) checks() map[string]http.CheckFunc {
	checks := map[string]http.CheckFunc{}
	if c.redis != nil {
		checks["redis"] = c.redis.Ping
	}
	if c.db != nil {
		checks["db"] = c.db.Ping
	}
	return checks
}

// stores 会话、锁定、挑战、CSRF 与限流状态，启用 redis 时全部外置
type stores struct {
	sessions  cache.SessionStore
	blacklist cache.Blacklist
	lockout   lockout.Store
	mfa       mfa.Store
	csrf      csrf.Store
	limiter   *rate.Set
}

func newStores(cfg *Config, rdb *storeredis.Client) stores {
	if rdb == nil {
		return stores{
			sessions:  memory.NewSessionStore(),
			blacklist: memory.NewBlacklist(cfg.Token.BlacklistSize),
			lockout:   lockout.NewMemoryStore(),
			mfa:       mfa.NewMemoryStore(),
			csrf:      csrf.NewMemoryStore(),
			limiter:   rate.NewMemorySet(cfg.Rate),
		}
	}
	ns := cfg.Namespace
	return stores{
		sessions:  cacheredis.NewSessionStore(rdb, cacheredis.WithKeyPrefix(ns)),
		blacklist: cacheredis.NewBlacklist(rdb, cacheredis.WithKeyPrefix(ns)),
		lockout:   lockout.NewRedisStore(rdb, ns),
		mfa:       mfa.NewRedisStore(rdb, ns),
		csrf:      csrf.NewRedisStore(rdb, ns),
		limiter:   rate.NewRedisSet(rdb, ns, cfg.Rate),
	}
}

func newAuditLog(cfg *Config, c *clients, logger *log.Logger) (*audit.Log, authhandler.AuditQuerier, error) {
	var (
		sinks   []audit.Sink
		querier authhandler.AuditQuerier
	)
	if cfg.Audit.LogSink {
		sinks = append(sinks, audit.NewLogSink(logger))
	}
	if c.db != nil {
		sink, err := audit.NewDBSink(c.db.DB())
		if err != nil {
			return nil, nil, fmt.Errorf("audit table: %w", err)
		}
		sinks = append(sinks, sink)
		querier = sink
	}
	if c.kafka != nil {
		sinks = append(sinks, audit.NewKafkaSink(c.kafka, cfg.Kafka.Topic))
	}

	l, err := audit.New(cfg.Audit.Config, audit.WithSinks(sinks...), audit.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return l, querier, nil
}

func newDirectory(ctx context.Context, cfg *Config, c *clients) (account.Directory, error) {
	var dir account.Directory = account.NewMemoryDirectory()
	if c.db != nil {
		gd, err := account.NewGormDirectory(c.db.DB())
		if err != nil {
			return nil, fmt.Errorf("users table: %w", err)
		}
		dir = gd
	}
	if err := account.Seed(ctx, dir, cfg.Accounts.Seed); err != nil {
		return nil, err
	}
	return dir, nil
}

// service 组装完成、尚未启动的服务
type service struct {
	app     *app.Application
	server  *http.Server
	sweeper *scheduler.Sweeper
}

// build 组装全部组件，指标注册到 reg
func build(ctx context.Context, cfg *Config, logger *log.Logger, reg *prometheus.Registry) (_ *service, err error) {
	c, err := openClients(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = c.close()
		}
	}()

	ns := cfg.Namespace
	st := newStores(cfg, c.redis)

	auditLog, querier, err := newAuditLog(cfg, c, logger)
	if err != nil {
		return nil, err
	}
	dir, err := newDirectory(ctx, cfg, c)
	if err != nil {
		return nil, err
	}

	tokens, err := token.New(cfg.Token, st.sessions, st.blacklist,
		token.WithLogger(logger), token.WithMetrics(token.NewMetrics(ns, reg)))
	if err != nil {
		return nil, err
	}
	lock, err := lockout.New(cfg.Lockout, st.lockout, lockout.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	challenges, err := mfa.New(cfg.MFA, st.mfa, mfa.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	csrfManager := csrf.New(st.csrf, csrf.WithTTL(cfg.CSRF.TTL))

	gateMetrics := middleware.NewMetrics(ns, reg)
	gate := middleware.NewGate(middleware.GateConfig{
		Limiter:       st.limiter,
		Sanitizer:     sanitize.New(),
		CSRF:          csrfManager,
		Verifier:      tokens,
		CSRFSkipPaths: authhandler.CSRFSkipPaths,
		Auditor:       auditLog,
		Metrics:       gateMetrics,
		Logger:        logger,
	})

	engine, err := newEngine(cfg, logger, gateMetrics)
	if err != nil {
		return nil, err
	}
	authhandler.New(authhandler.Deps{
		Directory:    dir,
		Hasher:       account.NewHasher(cfg.Accounts.BcryptCost),
		Tokens:       tokens,
		Lockout:      lock,
		MFA:          challenges,
		CSRF:         csrfManager,
		Audit:        auditLog,
		AuditQuerier: querier,
		Notifier:     authhandler.NewLogNotifier(logger, cfg.Accounts.RevealMFACodes),
		Gate:         gate,
		Metrics:      authhandler.NewMetrics(ns, reg),
		Logger:       logger,
	}).Register(engine)

	cfg.HTTP.Health.Checks = c.checks()
	server := http.NewServer(cfg.HTTP.Addr, engine, http.WithConfig(cfg.HTTP), http.WithRegistry(reg))

	sweeper, err := newSweeper(cfg, c, logger, reg, map[string]scheduler.Sweepable{
		"tokens":  tokens,
		"lockout": lock,
		"mfa":     challenges,
		"csrf":    csrfManager,
		"rate":    st.limiter,
	})
	if err != nil {
		return nil, err
	}

	application := app.New(
		app.WithLogger(logger),
		app.WithServers(server, sweeper),
		app.WithClose("audit", auditLog.Close, 0),
		app.WithClose("clients", func(context.Context) error { return c.close() }, 0),
		app.WithClose("logger", func(context.Context) error { return logger.Close() }, 0),
	)
	return &service{app: application, server: server, sweeper: sweeper}, nil
}

func newEngine(cfg *Config, logger *log.Logger, metrics *middleware.Metrics) (*gin.Engine, error) {
	if logger.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	engine.Use(
		middleware.Recovery(middleware.RecoveryConfig{Logger: logger}),
		middleware.Logger(middleware.LoggerConfig{Logger: logger, SkipPaths: []string{cfg.HTTP.Health.Path, cfg.HTTP.Metrics.Path}}),
		metrics.Handler(),
	)
	if cfg.Cors.Enabled {
		engine.Use(middleware.Cors(cfg.Cors))
	}
	return engine, nil
}

func newSweeper(cfg *Config, c *clients, logger *log.Logger, reg prometheus.Registerer, jobs map[string]scheduler.Sweepable) (*scheduler.Sweeper, error) {
	opts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(scheduler.NewMetrics(cfg.Namespace, reg)),
	}
	// 多实例部署时同一任务只由一个实例执行
	if c.redis != nil {
		opts = append(opts, scheduler.WithLocker(scheduler.NewDistLock(c.redis.UniversalClient(), cfg.Namespace)))
	}

	sweeper, err := scheduler.New(cfg.Scheduler, opts...)
	if err != nil {
		return nil, err
	}
	for name, job := range jobs {
		if err := sweeper.Register(name, job); err != nil {
			return nil, err
		}
	}
	return sweeper, nil
}
