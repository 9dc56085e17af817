// Package logging holds the process-wide zap logger.
//
// Call Initialize once from the CLI; packages log through the helpers below.
// Until Initialize runs every call is discarded, which keeps tests quiet.
package logging

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var singleton atomic.Pointer[zap.SugaredLogger]

func init() {
	singleton.Store(zap.NewNop().Sugar())
}

// Options selects the encoder and level.
type Options struct {
	Debug  bool
	Format string // "json" or "console"
}

// Initialize builds the logger and installs it as the singleton.
func Initialize(opts Options) error {
	var cfg zap.Config
	switch opts.Format {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return fmt.Errorf("unknown log format %q", opts.Format)
	}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	singleton.Store(l.Sugar())
	return nil
}

// Get returns the underlying logger for injection into structs.
func Get() *zap.SugaredLogger {
	return singleton.Load()
}

// Set replaces the singleton. Tests use it with zaptest or observer cores.
func Set(l *zap.SugaredLogger) {
	singleton.Store(l)
}

// Sync flushes buffered entries.
func Sync() {
	_ = singleton.Load().Sync()
}

func Debugf(msg string, args ...any) { singleton.Load().Debugf(msg, args...) }

func Debugw(msg string, keysAndValues ...any) { singleton.Load().Debugw(msg, keysAndValues...) }

func Infof(msg string, args ...any) { singleton.Load().Infof(msg, args...) }

func Infow(msg string, keysAndValues ...any) { singleton.Load().Infow(msg, keysAndValues...) }

func Warnf(msg string, args ...any) { singleton.Load().Warnf(msg, args...) }

func Warnw(msg string, keysAndValues ...any) { singleton.Load().Warnw(msg, keysAndValues...) }

func Errorf(msg string, args ...any) { singleton.Load().Errorf(msg, args...) }

func Errorw(msg string, keysAndValues ...any) { singleton.Load().Errorw(msg, keysAndValues...) }
