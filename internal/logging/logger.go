package logging

import (
	"os"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	fileMaxSizeMegabytes = 10
	fileMaxBackups       = 7
	fileMaxAgeDays       = 28
)

// Config selects the log level and an optional rotating log file.
type Config struct {
	Level string
	File  string
}

// NewLogger returns a zap logger configured for structured production logging.
// When cfg.File is set, entries are also written to a size-rotated file.
func NewLogger(cfg Config) (*zap.Logger, error) {
	level := parseLevel(cfg.Level)
	if strings.TrimSpace(cfg.File) == "" {
		productionConfig := zap.NewProductionConfig()
		productionConfig.Level = zap.NewAtomicLevelAt(level)
		return productionConfig.Build()
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	rotating := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    fileMaxSizeMegabytes,
		MaxBackups: fileMaxBackups,
		MaxAge:     fileMaxAgeDays,
		Compress:   true,
	}
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level),
		zapcore.NewCore(encoder, zapcore.AddSync(rotating), level),
	)
	return zap.New(core, zap.AddCaller()), nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
