package config

import (
	"sync"

	"github.com/spf13/viper"

	"github.com/kochabx/authgate/core/validator"
	"github.com/kochabx/authgate/log"
)

// Config loads a typed configuration target and keeps it current.
type Config struct {
	mu        sync.RWMutex
	viper     *viper.Viper
	validate  *validator.Validator
	target    any
	loader    Loader
	file      string
	envPrefix string
	onChange  []func()
}

// Option configures a Config.
type Option func(*Config)

// WithViper sets a custom viper instance.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) { c.viper = v }
}

// WithValidator sets a custom validator.
func WithValidator(v *validator.Validator) Option {
	return func(c *Config) { c.validate = v }
}

// WithLoader replaces the default file loader.
func WithLoader(l Loader) Option {
	return func(c *Config) { c.loader = l }
}

// WithFile sets an explicit config file path.
func WithFile(path string) Option {
	return func(c *Config) { c.file = path }
}

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) { c.envPrefix = prefix }
}

// OnChange registers fn to run after every successful reload.
func OnChange(fn func()) Option {
	return func(c *Config) { c.onChange = append(c.onChange, fn) }
}

// New creates a Config that fills target.
func New(target any, opts ...Option) *Config {
	c := &Config{
		viper:    viper.New(),
		validate: validator.Validate,
		target:   target,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.loader == nil {
		c.loader = NewFileLoader(c.file, c.envPrefix, c.viper, c.validate)
	}
	return c
}

// Load reads the configuration into the target.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loader.Load(c.target)
}

// Read runs fn with the target under a read lock.
func (c *Config) Read(fn func(target any)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.target)
}

// Watch reloads the target on file changes. A reload that fails to parse or
// validate is logged and the callbacks are skipped.
func (c *Config) Watch() error {
	return c.loader.Watch(func() {
		log.Info().Msg("config change detected")
		if err := c.Load(); err != nil {
			log.Error().Err(err).Msg("reload config")
			return
		}
		log.Info().Msg("config reloaded")
		for _, fn := range c.onChange {
			fn()
		}
	})
}

// Viper returns the underlying viper instance.
func (c *Config) Viper() *viper.Viper {
	return c.viper
}
