package main

import (
	"time"

	"github.com/kochabx/authgate/account"
	"github.com/kochabx/authgate/core/audit"
	"github.com/kochabx/authgate/core/auth/lockout"
	"github.com/kochabx/authgate/core/auth/mfa"
	"github.com/kochabx/authgate/core/auth/token"
	"github.com/kochabx/authgate/core/rate"
	"github.com/kochabx/authgate/core/scheduler"
	"github.com/kochabx/authgate/log"
	middleware "github.com/kochabx/authgate/middleware/http"
	"github.com/kochabx/authgate/store/db"
	"github.com/kochabx/authgate/store/kafka"
	"github.com/kochabx/authgate/store/redis"
	"github.com/kochabx/authgate/transport/http"
)

// Config is the root configuration of the authgate service.
type Config struct {
	// Namespace prefixes metric names and redis keys.
	Namespace string `json:"namespace" mapstructure:"namespace" default:"authgate" validate:"required"`

	Log       log.Config            `json:"log" mapstructure:"log"`
	HTTP      http.Config           `json:"http" mapstructure:"http"`
	Cors      middleware.CorsConfig `json:"cors" mapstructure:"cors"`
	Redis     RedisConfig           `json:"redis" mapstructure:"redis"`
	DB        DBConfig              `json:"db" mapstructure:"db"`
	Kafka     KafkaConfig           `json:"kafka" mapstructure:"kafka"`
	Token     token.Config          `json:"token" mapstructure:"token"`
	Lockout   lockout.Config        `json:"lockout" mapstructure:"lockout"`
	MFA       mfa.Config            `json:"mfa" mapstructure:"mfa"`
	CSRF      CSRFConfig            `json:"csrf" mapstructure:"csrf"`
	Rate      rate.Config           `json:"rate" mapstructure:"rate"`
	Audit     AuditConfig           `json:"audit" mapstructure:"audit"`
	Scheduler scheduler.Config      `json:"scheduler" mapstructure:"scheduler"`
	Accounts  AccountsConfig        `json:"accounts" mapstructure:"accounts"`
}

// RedisConfig switches every store from process memory to redis when enabled.
type RedisConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	// OpenTelemetry instrumentation through redisotel.
	Tracing      bool `json:"tracing" mapstructure:"tracing"`
	Metrics      bool `json:"metrics" mapstructure:"metrics"`
	redis.Config `mapstructure:",squash"`
}

// DBConfig enables the gorm account directory and the audit table.
type DBConfig struct {
	Enabled   bool `json:"enabled" mapstructure:"enabled"`
	db.Config `mapstructure:",squash"`
}

// KafkaConfig enables publishing audit events.
type KafkaConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Topic        string `json:"topic" mapstructure:"topic" default:"authgate.audit"`
	kafka.Config `mapstructure:",squash"`
}

type CSRFConfig struct {
	TTL time.Duration `json:"ttl" mapstructure:"ttl" default:"1h" validate:"gt=0"`
}

type AuditConfig struct {
	// Also write every event to the service log.
	LogSink      bool `json:"log_sink" mapstructure:"log_sink"`
	audit.Config `mapstructure:",squash"`
}

type AccountsConfig struct {
	BcryptCost int `json:"bcrypt_cost" mapstructure:"bcrypt_cost" default:"12" validate:"min=4,max=31"`
	// Log one-time MFA codes. Development only.
	RevealMFACodes bool               `json:"reveal_mfa_codes" mapstructure:"reveal_mfa_codes"`
	Seed           []account.SeedUser `json:"seed" mapstructure:"seed" validate:"dive"`
}
