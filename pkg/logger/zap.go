package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Defaults for rotating log files.
const (
	DEF_LOG_MAX_SIZE_MB = 20
	DEF_LOG_MAX_BACKUPS = 5
	DEF_LOG_MAX_AGE     = 28
)

// ZapConfig configures the rotating-file logger backend.
type ZapConfig struct {
	File       string // log file path, required
	Level      string // debug | info | warn | error (default info)
	MaxSizeMB  int    // rotate after this size, 0 = DEF_LOG_MAX_SIZE_MB
	MaxBackups int    // rotated files to keep, 0 = DEF_LOG_MAX_BACKUPS
	MaxAgeDays int    // days to keep rotated files, 0 = DEF_LOG_MAX_AGE
}

// ZapLogger is a Logger backed by zap with lumberjack file rotation.
// Long-running players use it so logs survive restarts without growing
// unbounded on small flash storage.
type ZapLogger struct {
	zl *zap.Logger
	s  *zap.SugaredLogger
}

// NewZapLogger opens (creating parent directories as needed) a rotating log
// file and returns a logger writing JSON lines to it. Combine with a
// StandardLogger through NewMultiLogger for a console tee.
func NewZapLogger(cfg ZapConfig) (*ZapLogger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
		return nil, err
	}

	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = DEF_LOG_MAX_SIZE_MB
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = DEF_LOG_MAX_BACKUPS
	}
	maxAge := cfg.MaxAgeDays
	if maxAge <= 0 {
		maxAge = DEF_LOG_MAX_AGE
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   true,
	})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), fileWriter, level)

	zl := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return &ZapLogger{zl: zl, s: zl.Sugar()}, nil
}

// Info logs an informational message.
func (z *ZapLogger) Info(format string, args ...interface{}) {
	z.s.Infof(format, args...)
}

// Warning logs a warning message.
func (z *ZapLogger) Warning(format string, args ...interface{}) {
	z.s.Warnf(format, args...)
}

// Error logs an error message with a stacktrace attached.
func (z *ZapLogger) Error(format string, args ...interface{}) {
	z.s.Errorf(format, args...)
}

// Close flushes buffered log entries to the file.
func (z *ZapLogger) Close() error {
	_ = z.zl.Sync()
	return nil
}

// Ensure ZapLogger satisfies the Logger interface.
var _ Logger = (*ZapLogger)(nil)
