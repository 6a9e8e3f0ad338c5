// Package logging owns the process-wide zap logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT" // console | json

	FormatConsole = "console"
	FormatJSON    = "json"
)

var (
	mu     sync.Mutex
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	output = io.Writer(os.Stderr)
)

// ParseLevel maps a level name to a zap level. An empty name is info.
func ParseLevel(name string) (zapcore.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

// Init builds the global logger. Empty arguments fall back to LOG_LEVEL and
// LOG_FORMAT, then to info and console.
func Init(levelName, format string) error {
	if levelName == "" {
		levelName = os.Getenv(EnvLogLevel)
	}
	if format == "" {
		format = os.Getenv(EnvLogFormat)
	}
	format = strings.ToLower(format)
	if format == "" {
		format = FormatConsole
	}

	lvl, err := ParseLevel(levelName)
	if err != nil {
		return err
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     iso8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}

	var enc zapcore.Encoder
	switch format {
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(encoderCfg)
	case FormatConsole:
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}

	mu.Lock()
	defer mu.Unlock()
	level.SetLevel(lvl)
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(output)), level)
	logger = zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel))
	return nil
}

func iso8601TimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

// L returns the global logger, building a default one on first use.
func L() *zap.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l != nil {
		return l
	}
	if err := Init("", ""); err != nil {
		// A bad LOG_LEVEL or LOG_FORMAT must not leave callers without a logger.
		_ = Init("info", FormatConsole)
	}
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// SetLevel changes the level of the global logger at runtime.
func SetLevel(name string) error {
	lvl, err := ParseLevel(name)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Level returns the current level name.
func Level() string { return level.Level().String() }

// Sync flushes buffered entries.
func Sync() {
	mu.Lock()
	l := logger
	mu.Unlock()
	if l != nil {
		_ = l.Sync()
	}
}

// SetOutputForTesting redirects log output and drops the current logger so
// the next Init or L rebuilds it. Only use in tests.
func SetOutputForTesting(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	logger = nil
	level.SetLevel(zapcore.InfoLevel)
}
