// Package logger builds the zap loggers used across linked.
//
// Components receive a *zap.SugaredLogger and name it after themselves with
// Component, so every line carries its origin ("store", "observe",
// "linked", "cli"). Libraries default to Nop; only the CLI builds a real
// logger.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// ParseLevel maps a level name (debug, info, warn, error) to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

// VerbosityToLevel maps CLI -v counts to levels:
//
//	0 → configured level
//	1 → info
//	2+ → debug
func VerbosityToLevel(verbosity int, configured zapcore.Level) zapcore.Level {
	switch {
	case verbosity <= 0:
		return configured
	case verbosity == 1:
		return min(configured, zapcore.InfoLevel)
	default:
		return zapcore.DebugLevel
	}
}

// New builds a logger writing to stderr. Development mode uses the console
// encoder with colored levels; otherwise lines are JSON.
func New(level zapcore.Level, development bool) (*zap.SugaredLogger, error) {
	var encoder zapcore.Encoder
	if development {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	}
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level))
	return zap.New(core).Sugar(), nil
}

// Component returns base named after a component. A nil base yields Nop.
func Component(base *zap.SugaredLogger, name string) *zap.SugaredLogger {
	if base == nil {
		return Nop().Named(name)
	}
	return base.Named(name)
}
