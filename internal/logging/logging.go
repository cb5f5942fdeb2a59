// Package logging builds owned *zap.Logger values for the pipeline's
// components. Unlike the teacher's package-global logger registry,
// every caller here receives its own logger instance threaded through
// by reference — the pipeline's tests must be able to isolate log
// output per run, which a global logger cannot do.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls how a logger is built.
type Config struct {
	// Debug enables debug-level output. Defaults to info level.
	Debug bool
	// JSON selects structured JSON encoding over human-readable console
	// encoding.
	JSON bool
	// OutputPaths are zap sink targets ("stdout", "stderr", or a file
	// path). Defaults to ["stderr"].
	OutputPaths []string
}

// New builds a *zap.Logger from cfg. The returned logger is owned by
// the caller; nothing is stored in package state.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	encoder := zapcore.NewJSONEncoder(encoderCfg)
	if !cfg.JSON {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	paths := cfg.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stderr"}
	}

	sinks := make([]zapcore.WriteSyncer, 0, len(paths))
	for _, p := range paths {
		switch p {
		case "stderr":
			sinks = append(sinks, zapcore.AddSync(os.Stderr))
		case "stdout":
			sinks = append(sinks, zapcore.AddSync(os.Stdout))
		default:
			f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, zapcore.AddSync(f))
		}
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	return zap.New(core), nil
}

// Nop returns a logger that discards everything, for tests that don't
// care about log output.
func Nop() *zap.Logger {
	return zap.NewNop()
}
