package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	baseLogger *zap.Logger
	atomicLVL  zap.AtomicLevel
)

func init() {
	atomicLVL = zap.NewAtomicLevelAt(parseLevel(getEnv("FMQ_LOG_LEVEL", "info")))
	baseLogger = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.Lock(os.Stderr), atomicLVL),
		zap.AddCaller())
}

// Options 日志输出配置，File 为空时只写 stderr
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Setup 按配置重建全局 logger，File 非空时额外写入按大小滚动的日志文件
func Setup(opts Options) *zap.Logger {
	if opts.Level != "" {
		SetLevel(opts.Level)
	}
	enc := zapcore.NewJSONEncoder(encoderConfig())
	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(os.Stderr), atomicLVL)}
	if opts.File != "" {
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    atLeast(opts.MaxSizeMB, 10),
			MaxBackups: atLeast(opts.MaxBackups, 1),
			MaxAge:     atLeast(opts.MaxAgeDays, 7),
			Compress:   opts.Compress,
		}), atomicLVL))
	}
	baseLogger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
	return baseLogger
}

func L() *zap.Logger { return baseLogger }

func SetLevel(level string) { atomicLVL.SetLevel(parseLevel(level)) }

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func atLeast(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
