package logger

import (
	"os"
	"strings"
	"sync"

	"battery-observer/src/models"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name  string
	sugar *zap.SugaredLogger
	exit  func(int)
}

// bases caches one zap core per (level, file) so that every component logger
// writing to the same file shares a single lumberjack writer.
var (
	basesMu sync.Mutex
	bases   = map[string]*zap.Logger{}
)

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. cfg may be nil (INFO to stdout).
func NewLogger(cfg *models.MConfig, name string) *Logger {
	level, file := "INFO", ""
	if cfg != nil {
		level, file = cfg.LogLevel, cfg.LogFile
	}
	return FromZap(baseLogger(level, file), name)
}

// -----------------------------------------------------------------------------

// FromZap wraps an existing zap logger (tests pass zaptest loggers here).
func FromZap(z *zap.Logger, name string) *Logger {
	return &Logger{
		name:  name,
		sugar: z.Named(name).Sugar(),
		exit:  os.Exit,
	}
}

// -----------------------------------------------------------------------------

func baseLogger(level, file string) *zap.Logger {
	key := strings.ToUpper(level) + "|" + file

	basesMu.Lock()
	defer basesMu.Unlock()

	if z, ok := bases[key]; ok {
		return z
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)
	lvl := ParseLevel(level)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lvl),
	}
	if file != "" {
		rotating := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotating), lvl))
	}

	z := zap.New(zapcore.NewTee(cores...))
	bases[key] = z
	return z
}

// -----------------------------------------------------------------------------

// ParseLevel maps the config log level onto a zap level. Unknown values fall
// back to INFO.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARNING", "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "CRITICAL", "FATAL":
		return zapcore.DPanicLevel
	default:
		return zapcore.InfoLevel
	}
}

// -----------------------------------------------------------------------------

// Name returns the component name the logger was created with
func (l *Logger) Name() string {
	return l.name
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application. It logs at the
// CRITICAL level so the message survives the strictest log_level.
func (l *Logger) Critical(format string, args ...interface{}) {
	l.sugar.DPanicf("CRITICAL: "+format, args...)
	_ = l.sugar.Sync()
	l.exit(1)
}

// -----------------------------------------------------------------------------

// Sync flushes buffered log entries
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
