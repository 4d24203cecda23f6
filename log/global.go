package log

import "github.com/rs/zerolog"

// G 进程级日志实例，启动时由 SetGlobalLogger 替换为配置生成的实例
var G = New()

func SetGlobalLogger(logger *Logger) {
	if logger != nil {
		G = logger
	}
}

// SetGlobalLevel 调整 G 的级别，配置热更新时调用
func SetGlobalLevel(level zerolog.Level) {
	G.Logger = G.Logger.Level(level)
}

func Debug() *zerolog.Event { return G.Debug() }

func Info() *zerolog.Event { return G.Info() }

func Warn() *zerolog.Event { return G.Warn() }

// Error 附带 pkg/errors 堆栈
func Error() *zerolog.Event { return G.Error().Stack() }
