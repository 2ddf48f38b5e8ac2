// Package logging builds the process-wide zap logger and provides Tagged
// plus one tag constant per node loop, grounded on nspcc-dev-neo-go's
// pkg/config.Logger + cli/util logging setup. The loops in internal/node
// log through Context.Log directly and do not attach these tags.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the encoding and level of the root logger.
type Config struct {
	Encoding string `yaml:"encoding"` // "console" or "json"
	Level    string `yaml:"level"`    // zap level name, e.g. "info"
}

// Validate mirrors neo-go's config.Logger.Validate.
func (c Config) Validate() error {
	if c.Encoding != "" && c.Encoding != "console" && c.Encoding != "json" {
		return fmt.Errorf("invalid log encoding: %s", c.Encoding)
	}
	return nil
}

// New builds a *zap.SugaredLogger per cfg. An empty Config yields sane
// production defaults (JSON encoding, info level).
func New(cfg Config) (*zap.SugaredLogger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "json"
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = encoding
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = true
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.Sugar(), nil
}

// Tags used to prefix lines emitted by each of the node's loops.
const (
	TagBidder  = "[SerialBidder]"
	TagProver  = "[SerialProver]"
	TagMonitor = "[SerialMonitor]"
)

// Tagged returns a child logger named tag: the tag is carried in the
// entry's logger-name field, not inside the message text. Loggers built by
// New never attach stack traces (expected failures are not crashes).
func Tagged(base *zap.SugaredLogger, tag string) *zap.SugaredLogger {
	return base.Named(tag)
}
