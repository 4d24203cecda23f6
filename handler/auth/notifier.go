package auth

import (
	"context"

	"github.com/kochabx/authgate/account"
	"github.com/kochabx/authgate/log"
)

// Notifier 向用户投递一次性验证码
type Notifier interface {
	Notify(ctx context.Context, u *account.User, code string) error
}

// LogNotifier 只写日志的投递实现，reveal 为 true 时在日志中输出验证码（仅限开发环境）
type LogNotifier struct {
	logger *log.Logger
	reveal bool
}

func NewLogNotifier(logger *log.Logger, reveal bool) *LogNotifier {
	if logger == nil {
		logger = log.G
	}
	return &LogNotifier{logger: logger, reveal: reveal}
}

func (n *LogNotifier) Notify(_ context.Context, u *account.User, code string) error {
	event := n.logger.Info().Str("user_id", u.ID).Str("username", u.Username)
	if n.reveal {
		event = event.Str("mfa_code", code)
	}
	event.Msg("mfa code issued")
	return nil
}
