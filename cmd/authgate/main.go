// Command authgate runs the authentication gateway: login, MFA, session
// tokens and the request gate in front of them.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/kochabx/authgate/config"
	"github.com/kochabx/authgate/log"
	httpmetrics "github.com/kochabx/authgate/transport/http/metrics"
)

const envPrefix = "AUTHGATE"

func main() {
	path := flag.String("config", "", "path to the config file (default ./config.yaml or ./config/config.yaml)")
	flag.Parse()

	if err := run(*path); err != nil {
		log.Error().Err(err).Msg("authgate exited")
		os.Exit(1)
	}
}

func run(path string) error {
	var cfg Config
	var loader *config.Config
	loader = config.New(&cfg,
		config.WithFile(path),
		config.WithEnvPrefix(envPrefix),
		config.OnChange(func() {
			loader.Read(func(target any) {
				reloadLogLevel(target.(*Config).Log.Level)
			})
		}),
	)
	if err := loader.Load(); err != nil {
		return err
	}

	logger, err := log.FromConfig(cfg.Log)
	if err != nil {
		return err
	}
	log.SetGlobalLogger(logger)

	svc, err := build(context.Background(), &cfg, logger, httpmetrics.Prom.Registry())
	if err != nil {
		_ = logger.Close()
		return err
	}

	// 只有日志级别支持热更新，其余配置需要重启
	if err := loader.Watch(); err != nil {
		logger.Warn().Err(err).Msg("config watch disabled")
	}

	logger.Info().Str("addr", cfg.HTTP.Addr).Bool("redis", cfg.Redis.Enabled).Bool("db", cfg.DB.Enabled).
		Bool("kafka", cfg.Kafka.Enabled).Msg("authgate starting")
	return svc.app.Start()
}

func reloadLogLevel(level string) {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("ignore invalid log level")
		return
	}
	log.SetGlobalLevel(l)
	log.Info().Str("level", l.String()).Msg("log level updated")
}
