package config

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/kochabx/authgate/core/tag"
	"github.com/kochabx/authgate/core/validator"
	"github.com/kochabx/authgate/errors"
)

// Loader loads configuration into a target and reports changes.
type Loader interface {
	Load(target any) error
	Watch(callback func()) error
}

// FileLoader reads a yaml/json/toml file through viper. Environment
// variables override file values: with prefix AUTHGATE the key
// token.access_ttl is read from AUTHGATE_TOKEN_ACCESS_TTL.
type FileLoader struct {
	viper    *viper.Viper
	validate *validator.Validator
}

// NewFileLoader creates a loader for file. An empty file searches for
// config.yaml in the working directory and ./config.
func NewFileLoader(file, envPrefix string, v *viper.Viper, validate *validator.Validator) *FileLoader {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &FileLoader{viper: v, validate: validate}
}

// Load applies struct tag defaults, then file and env values, then validates.
func (l *FileLoader) Load(target any) error {
	if err := tag.ApplyDefaults(target); err != nil {
		return errors.Wrap(err, 500, "apply config defaults")
	}
	if err := l.viper.ReadInConfig(); err != nil {
		return errors.Wrap(err, 404, "read config file")
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := l.viper.Unmarshal(target, hook); err != nil {
		return errors.Wrap(err, 500, "parse config")
	}

	if l.validate != nil {
		if err := l.validate.Struct(target); err != nil {
			return errors.Wrap(err, 400, "invalid config: %v", err)
		}
	}
	return nil
}

// Watch invokes callback whenever the config file changes.
func (l *FileLoader) Watch(callback func()) error {
	l.viper.OnConfigChange(func(fsnotify.Event) {
		if callback != nil {
			callback()
		}
	})
	l.viper.WatchConfig()
	return nil
}
