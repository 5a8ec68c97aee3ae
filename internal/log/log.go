package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	charmLog "github.com/charmbracelet/log"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	logger     *charmLog.Logger
	loggerOnce sync.Once
	mu         sync.Mutex
)

// initLogger builds the global logger writing to stderr with timestamps.
func initLogger() {
	loggerOnce.Do(func() {
		logger = newLogger(os.Stderr, charmLog.InfoLevel)
	})
}

func newLogger(w io.Writer, level charmLog.Level) *charmLog.Logger {
	return charmLog.NewWithOptions(w, charmLog.Options{
		Level:           level,
		Prefix:          "gridgen",
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})
}

// ParseLevel maps debug/info/warn/error (any case) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

func SetLevel(l Level) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	logger.SetLevel(charmLevel(l))
}

// SetOutput redirects log output, keeping the current level.
func SetOutput(w io.Writer) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w, logger.GetLevel())
}

func Debug(msg string, kv ...any) {
	current().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Info(msg, kv...)
}

func Warn(msg string, kv ...any) {
	current().Warn(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Error(msg, extended...)
}

func current() *charmLog.Logger {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func charmLevel(l Level) charmLog.Level {
	switch l {
	case LevelDebug:
		return charmLog.DebugLevel
	case LevelWarn:
		return charmLog.WarnLevel
	case LevelError:
		return charmLog.ErrorLevel
	default:
		return charmLog.InfoLevel
	}
}
