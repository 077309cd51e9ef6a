package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewAtomicLevel parses level into a zap level that can be changed while running.
// Unknown levels fall back to info.
func NewAtomicLevel(level string) zap.AtomicLevel {
	lvl := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl.SetLevel(zapcore.InfoLevel)
	}
	if strings.EqualFold(level, "warning") {
		lvl.SetLevel(zapcore.WarnLevel)
	}
	return lvl
}

// SetLevel changes lvl in place, ignoring unknown names.
func SetLevel(lvl zap.AtomicLevel, level string) bool {
	next := NewAtomicLevel(level)
	if next.Level() == lvl.Level() {
		return false
	}
	lvl.SetLevel(next.Level())
	return true
}

// NewZapLogger builds the zap logger used by the domain and infrastructure packages.
func NewZapLogger(cfg *Config, lvl zap.AtomicLevel) (*zap.Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var zc zap.Config
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
	default:
		zc = zap.NewProductionConfig()
		zc.Sampling = nil
	}
	zc.Level = lvl
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return l, nil
}
