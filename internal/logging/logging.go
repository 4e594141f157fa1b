package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

// Config controls where and how log lines are written.
type Config struct {
	// Level is one of debug, info, warn, error. Empty falls back to LOG_LEVEL/DEBUG.
	Level string
	// Format is "console" or "json". Empty picks console for terminals, json otherwise.
	Format string
	// File, when set, additionally writes JSON lines to a rotated log file.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	currentLevel LogLevel
	levelOnce    sync.Once

	loggerMu    sync.RWMutex
	sugar       *zap.SugaredLogger
	atomicLevel = zap.NewAtomicLevel()
)

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		// Check DEBUG environment variable first
		if debug := os.Getenv("DEBUG"); debug != "" {
			switch strings.ToLower(debug) {
			case "1", "true", "yes", "on":
				currentLevel = LevelDebug
				atomicLevel.SetLevel(toZapLevel(currentLevel))
				return
			}
		}

		currentLevel = ParseLevel(os.Getenv("LOG_LEVEL"))
		atomicLevel.SetLevel(toZapLevel(currentLevel))
	})
}

// ParseLevel converts a level name to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func toZapLevel(l LogLevel) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init builds the process logger. It is safe to call more than once; the
// last call wins. Logging before Init uses a console logger on stderr.
func Init(cfg Config) error {
	initLevel()
	if cfg.Level != "" {
		SetLevel(ParseLevel(cfg.Level))
	}

	format := cfg.Format
	if format == "" {
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = "console"
		} else {
			format = "json"
		}
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(format), zapcore.Lock(os.Stderr), atomicLevel),
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 50),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(rotator), atomicLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))

	loggerMu.Lock()
	sugar = logger.Sugar()
	loggerMu.Unlock()
	return nil
}

// InitWriter points the logger at an arbitrary writer. Used by tests that
// want to assert on log output.
func InitWriter(w io.Writer, level LogLevel) {
	initLevel()
	SetLevel(level)
	core := zapcore.NewCore(newEncoder("console"), zapcore.AddSync(w), atomicLevel)

	loggerMu.Lock()
	sugar = zap.New(core, zap.AddCallerSkip(1)).Sugar()
	loggerMu.Unlock()
}

func newEncoder(format string) zapcore.Encoder {
	if format == "json" {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05")
	return zapcore.NewConsoleEncoder(cfg)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func logger() *zap.SugaredLogger {
	loggerMu.RLock()
	l := sugar
	loggerMu.RUnlock()
	if l != nil {
		return l
	}

	initLevel()
	core := zapcore.NewCore(newEncoder("console"), zapcore.Lock(os.Stderr), atomicLevel)
	l = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()

	loggerMu.Lock()
	if sugar == nil {
		sugar = l
	}
	l = sugar
	loggerMu.Unlock()
	return l
}

// Sync flushes buffered log entries.
func Sync() {
	_ = logger().Sync()
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return currentLevel
}

// SetLevel changes the level at runtime.
func SetLevel(level LogLevel) {
	initLevel()
	loggerMu.Lock()
	currentLevel = level
	loggerMu.Unlock()
	atomicLevel.SetLevel(toZapLevel(level))
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	logger().Debugf(format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	logger().Infof(format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	logger().Warnf(format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	logger().Errorf(format, args...)
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	logger().Fatalf(format, args...)
}

// Printf logs at info level. Used for banners and shutdown messages.
func Printf(format string, args ...interface{}) {
	logger().Infof(format, args...)
}

// Println is the line variant of Printf.
func Println(args ...interface{}) {
	Printf("%s", strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
