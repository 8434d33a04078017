package ble

import (
	"log/slog"
	"time"

	"i4.energy/across/blegw/rn"
)

// Config holds driver settings. Use NewConfigBuilder to construct one.
type Config struct {
	dialer         Dialer
	logger         *slog.Logger
	commandTimeout time.Duration
	defineTimeout  time.Duration
	rebootTimeout  time.Duration
	lineTimeout    time.Duration
	guardDelay     time.Duration
	promptWait     time.Duration
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.commandTimeout == 0 {
		c.commandTimeout = rn.DefaultCommandTimeout
	}
	if c.defineTimeout == 0 {
		c.defineTimeout = rn.DefineTimeout
	}
	if c.rebootTimeout == 0 {
		c.rebootTimeout = rn.RebootTimeout
	}
	if c.lineTimeout == 0 {
		c.lineTimeout = rn.LineTimeout
	}
	if c.guardDelay == 0 {
		c.guardDelay = rn.GuardDelay
	}
	if c.promptWait == 0 {
		c.promptWait = promptWaitDefault
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
}

// ConfigBuilder assembles a Config.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

// WithDialer sets the Dialer used to open the module's port. Required.
func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

// WithLogger sets the logger for command traffic. Nil means silent.
func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// WithCommandTimeout sets the default response deadline for command
// exchanges.
func (b *ConfigBuilder) WithCommandTimeout(d time.Duration) *ConfigBuilder {
	b.config.commandTimeout = d
	return b
}

// WithDefineTimeout sets the shorter deadline used for characteristic
// definition commands.
func (b *ConfigBuilder) WithDefineTimeout(d time.Duration) *ConfigBuilder {
	b.config.defineTimeout = d
	return b
}

// WithRebootTimeout sets the deadline for the reboot acknowledgment; the
// same duration is slept afterwards while the module restarts.
func (b *ConfigBuilder) WithRebootTimeout(d time.Duration) *ConfigBuilder {
	b.config.rebootTimeout = d
	return b
}

// WithLineTimeout bounds a single CR-terminated line read.
func (b *ConfigBuilder) WithLineTimeout(d time.Duration) *ConfigBuilder {
	b.config.lineTimeout = d
	return b
}

// WithGuardDelay sets the quiet period observed before sending the
// command-mode escape sequence.
func (b *ConfigBuilder) WithGuardDelay(d time.Duration) *ConfigBuilder {
	b.config.guardDelay = d
	return b
}

// WithPromptWait bounds the wait for the command prompt after the escape
// sequence.
func (b *ConfigBuilder) WithPromptWait(d time.Duration) *ConfigBuilder {
	b.config.promptWait = d
	return b
}

func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
