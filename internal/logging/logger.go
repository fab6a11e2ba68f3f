package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logFileMaxSizeMB  = 100
	logFileMaxAgeDays = 28
	logFileMaxBackups = 5
)

// NewLogger returns a zap logger configured for structured production logging.
// When filePath is set, entries are also written to a size-rotated file.
func NewLogger(level, filePath string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return logger, nil
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg.EncoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    logFileMaxSizeMB,
			MaxAge:     logFileMaxAgeDays,
			MaxBackups: logFileMaxBackups,
			Compress:   true,
		}),
		cfg.Level,
	)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

// ParseLevel maps a textual level onto a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info", "":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
