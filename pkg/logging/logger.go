package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ANSI color codes
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red          = "\033[31m"
	Green        = "\033[32m"
	Yellow       = "\033[33m"
	Blue         = "\033[34m"
	Cyan         = "\033[36m"
	White        = "\033[37m"
	Gray         = "\033[90m"
	BrightRed    = "\033[91m"
	BrightGreen  = "\033[92m"
	BrightYellow = "\033[93m"
	BrightBlue   = "\033[94m"
	BrightWhite  = "\033[97m"
)

// ColoredLogger wraps zap.Logger with component-tagged, optionally colored output.
type ColoredLogger struct {
	*zap.Logger
	enableColors bool
}

// Component identifies the part of the gateway emitting a log line.
type Component string

const (
	ComponentGateway Component = "GATEWAY"
	ComponentShell   Component = "SHELL"
	ComponentLogs    Component = "LOGS"
	ComponentTools   Component = "TOOLS"
	ComponentConfig  Component = "CONFIG"
	ComponentGeneral Component = "GENERAL"
)

func getComponentColor(component Component) string {
	switch component {
	case ComponentGateway:
		return BrightGreen
	case ComponentShell:
		return BrightBlue
	case ComponentLogs:
		return Cyan
	case ComponentTools:
		return Blue
	case ComponentConfig:
		return Green
	case ComponentGeneral:
		return Yellow
	default:
		return White
	}
}

func getLevelColor(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return Gray
	case zapcore.InfoLevel:
		return BrightWhite
	case zapcore.WarnLevel:
		return BrightYellow
	case zapcore.ErrorLevel:
		return BrightRed
	default:
		return Red
	}
}

// Options controls logger construction.
type Options struct {
	Level        string // debug, info, warn, error
	Format       string // console, json
	OutputFile   string // empty for stdout
	EnableColors bool
}

// ParseLevel maps a level name to a zap level. Unknown names fall back to info.
func ParseLevel(s string) zapcore.Level {
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

func coloredConsoleEncoder(enableColors bool) zapcore.Encoder {
	config := zap.NewDevelopmentEncoderConfig()

	// HH:MM:SS only
	config.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		timeStr := t.Format("15:04:05")
		if enableColors {
			enc.AppendString(Dim + timeStr + Reset)
		} else {
			enc.AppendString(timeStr)
		}
	}

	config.EncodeLevel = func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		levelStr := "?"
		switch level {
		case zapcore.DebugLevel:
			levelStr = "D"
		case zapcore.InfoLevel:
			levelStr = "I"
		case zapcore.WarnLevel:
			levelStr = "W"
		case zapcore.ErrorLevel:
			levelStr = "E"
		}
		if enableColors {
			enc.AppendString(getLevelColor(level) + Bold + levelStr + Reset)
		} else {
			enc.AppendString(levelStr)
		}
	}

	config.EncodeCaller = func(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		file := caller.File
		if idx := strings.LastIndex(file, "/"); idx >= 0 {
			file = file[idx+1:]
		}
		file = strings.TrimSuffix(file, ".go")
		if enableColors {
			enc.AppendString(Dim + file + Reset)
		} else {
			enc.AppendString(file)
		}
	}

	return zapcore.NewConsoleEncoder(config)
}

// New builds a logger from Options. JSON format never carries ANSI colors.
func New(opts Options) (*ColoredLogger, error) {
	var out io.Writer = os.Stdout
	if opts.OutputFile != "" {
		file, err := os.OpenFile(opts.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", opts.OutputFile, err)
		}
		out = file
		opts.EnableColors = false
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(opts.Format, "json") {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		opts.EnableColors = false
	} else {
		encoder = coloredConsoleEncoder(opts.EnableColors)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), ParseLevel(opts.Level))
	return &ColoredLogger{
		Logger:       zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)),
		enableColors: opts.EnableColors,
	}, nil
}

// NewColoredLogger creates a debug-level console logger on stdout.
func NewColoredLogger(enableColors bool) (*ColoredLogger, error) {
	return New(Options{Level: "debug", EnableColors: enableColors})
}

// NewNop returns a logger that discards everything.
func NewNop() *ColoredLogger {
	return &ColoredLogger{Logger: zap.NewNop()}
}

// NewWithCore wraps an existing zap core, mostly useful with zaptest/observer.
func NewWithCore(core zapcore.Core) *ColoredLogger {
	return &ColoredLogger{Logger: zap.New(core)}
}

func (l *ColoredLogger) tag(component Component, msg string) string {
	if l.enableColors {
		return fmt.Sprintf("%s[%s]%s %s", getComponentColor(component), component, Reset, msg)
	}
	return fmt.Sprintf("[%s] %s", component, msg)
}

func (l *ColoredLogger) ComponentInfo(component Component, msg string, fields ...zap.Field) {
	l.Info(l.tag(component, msg), fields...)
}

func (l *ColoredLogger) ComponentWarn(component Component, msg string, fields ...zap.Field) {
	l.Warn(l.tag(component, msg), fields...)
}

func (l *ColoredLogger) ComponentError(component Component, msg string, fields ...zap.Field) {
	l.Error(l.tag(component, msg), fields...)
}

func (l *ColoredLogger) ComponentDebug(component Component, msg string, fields ...zap.Field) {
	l.Debug(l.tag(component, msg), fields...)
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *ColoredLogger) *ColoredLogger {
	if l == nil {
		return NewNop()
	}
	return l
}
