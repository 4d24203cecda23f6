package log

import (
	"time"

	"github.com/kochabx/authgate/log/writer"
)

// Config 日志配置
type Config struct {
	// Level trace/debug/info/warn/error
	Level string `json:"level" mapstructure:"level" default:"info"`
	// Output console/file/multi
	Output string `json:"output" mapstructure:"output" default:"console" validate:"oneof=console file multi"`
	Caller bool   `json:"caller" mapstructure:"caller"`
	// 关闭 token、验证码、密码的日志脱敏
	DisableDesensitize bool       `json:"disable_desensitize" mapstructure:"disable_desensitize"`
	File               FileConfig `json:"file" mapstructure:"file"`
}

// FileConfig 日志文件配置
type FileConfig struct {
	Dir        string            `json:"dir" mapstructure:"dir" default:"log"`
	Filename   string            `json:"filename" mapstructure:"filename" default:"authgate"`
	Ext        string            `json:"ext" mapstructure:"ext" default:"log"`
	RotateMode writer.RotateMode `json:"rotate_mode" mapstructure:"rotate_mode"`
	// 按时间轮转
	MaxAgeHours  int           `json:"max_age_hours" mapstructure:"max_age_hours" default:"168"`
	RotatePeriod time.Duration `json:"rotate_period" mapstructure:"rotate_period" default:"24h"`
	// 按大小轮转
	MaxSizeMB  int  `json:"max_size_mb" mapstructure:"max_size_mb" default:"100"`
	MaxBackups int  `json:"max_backups" mapstructure:"max_backups" default:"5"`
	MaxAgeDays int  `json:"max_age_days" mapstructure:"max_age_days" default:"30"`
	Compress   bool `json:"compress" mapstructure:"compress"`
}

func (c FileConfig) rotateConfig() writer.RotateConfig {
	return writer.RotateConfig{
		Mode:         c.RotateMode,
		Dir:          c.Dir,
		Filename:     c.Filename,
		Ext:          c.Ext,
		MaxAgeHours:  c.MaxAgeHours,
		RotatePeriod: c.RotatePeriod,
		MaxSizeMB:    c.MaxSizeMB,
		MaxBackups:   c.MaxBackups,
		MaxAgeDays:   c.MaxAgeDays,
		Compress:     c.Compress,
	}
}
