// Package logger builds the zap loggers used by the goTodo binaries.
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production logger for mode "release" and a development
// logger otherwise. level overrides the default level when it parses.
func New(mode, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if mode == "release" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	if level = strings.TrimSpace(level); level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	return cfg.Build()
}

// Must is [New] that falls back to a no-op logger on error.
func Must(mode, level string) *zap.Logger {
	l, err := New(mode, level)
	if err != nil {
		return zap.NewNop()
	}
	return l
}
