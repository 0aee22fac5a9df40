// Package logger builds the process-wide zap logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Level string
	Dev   bool
	Dir   string // rotated files are written here; empty disables files
}

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(l) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init returns a logger writing JSON to stdout and, when Dir is set, to
// daily rotated combined.log and error.log files kept for 14 days.
func Init(cfg Config) (*zap.Logger, error) {
	lvl := levelFromString(cfg.Level)
	if cfg.Dev && cfg.Dir == "" {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encoderCfg)

	var stdout zapcore.Encoder = enc
	if cfg.Dev {
		dev := zap.NewDevelopmentEncoderConfig()
		dev.EncodeLevel = zapcore.CapitalColorLevelEncoder
		stdout = zapcore.NewConsoleEncoder(dev)
	}
	cores := []zapcore.Core{zapcore.NewCore(stdout, zapcore.Lock(consoleSyncer{os.Stdout}), lvl)}

	if cfg.Dir != "" {
		combined, err := rotating(cfg.Dir, "combined")
		if err != nil {
			return nil, err
		}
		errs, err := rotating(cfg.Dir, "error")
		if err != nil {
			return nil, err
		}
		cores = append(cores,
			zapcore.NewCore(enc, zapcore.AddSync(combined), lvl),
			zapcore.NewCore(enc, zapcore.AddSync(errs), zapcore.ErrorLevel),
		)
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	return zap.New(zapcore.NewTee(cores...), opts...), nil
}

// consoleSyncer skips fsync, which fails with EINVAL when stdout is a pipe
// or a terminal.
type consoleSyncer struct{ io.Writer }

func (consoleSyncer) Sync() error { return nil }

func rotating(dir, name string) (*rotatelogs.RotateLogs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	w, err := rotatelogs.New(
		filepath.Join(dir, name+".%Y%m%d.log"),
		rotatelogs.WithLinkName(filepath.Join(dir, name+".log")),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(14*24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("open %s log: %w", name, err)
	}
	return w, nil
}
