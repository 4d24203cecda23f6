package lockout

import "time"

// Config 账户锁定配置
type Config struct {
	// 连续失败达到该次数后锁定
	Threshold int `json:"threshold" mapstructure:"threshold" default:"5" validate:"min=1"`
	// 锁定时长
	Duration time.Duration `json:"duration" mapstructure:"duration" default:"15m" validate:"gt=0"`
	// 未锁定的失败计数在最后一次失败后保留的时长，0 表示保留到成功登录、锁定到期或管理员解锁
	Retention time.Duration `json:"retention" mapstructure:"retention" validate:"gte=0"`
}
