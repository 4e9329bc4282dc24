package config

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error
	Development bool   `yaml:"development"` // console encoder, stack traces on warn
	File        string `yaml:"file"`        // write here instead of stderr
}

func (c LoggingConfig) level() (zapcore.Level, error) {
	if c.Level == "" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.ParseLevel(c.Level)
}

// Build creates a logger. verbose forces debug level.
func (c LoggingConfig) Build(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if c.Development {
		config = zap.NewDevelopmentConfig()
	}
	lvl, err := c.level()
	if err != nil {
		return nil, err
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	if c.File != "" {
		config.OutputPaths = []string{c.File}
		config.ErrorOutputPaths = []string{c.File}
	}
	return config.Build()
}
