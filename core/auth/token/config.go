package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config token 配置
type Config struct {
	// 签名密钥，来自环境或配置文件
	Secret        string        `json:"secret" mapstructure:"secret" validate:"required,min=32"`
	SigningMethod string        `json:"signing_method" mapstructure:"signing_method" default:"HS256" validate:"oneof=HS256 HS384 HS512"`
	Issuer        string        `json:"issuer" mapstructure:"issuer" default:"authgate"`
	AccessTTL     time.Duration `json:"access_ttl" mapstructure:"access_ttl" default:"15m" validate:"gt=0"`
	RefreshTTL    time.Duration `json:"refresh_ttl" mapstructure:"refresh_ttl" default:"168h" validate:"gtfield=AccessTTL"`
	// 进程内黑名单容量
	BlacklistSize int `json:"blacklist_size" mapstructure:"blacklist_size" default:"10000" validate:"gt=0"`
}

func (c *Config) signingMethod() jwt.SigningMethod {
	switch c.SigningMethod {
	case "HS384":
		return jwt.SigningMethodHS384
	case "HS512":
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodHS256
	}
}
