package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	level  = zerolog.InfoLevel
	output io.Writer = os.Stderr
)

// SetLevel sets the minimum level printed. Unknown names fall back to info.
func SetLevel(name string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	mu.Lock()
	level = lvl
	mu.Unlock()
}

// SetOutput redirects log output.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

func logger() zerolog.Logger {
	mu.RLock()
	out, lvl := output, level
	mu.RUnlock()

	// Customize ConsoleWriter
	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	consoleWriter.FormatLevel = func(i interface{}) string {
		switch i {
		case "info":
			return "\033[32m[INFO]\033[0m" // Green
		case "error":
			return "\033[31m[ERROR]\033[0m" // Red
		case "debug":
			return "\033[36m[DEBUG]\033[0m" // Cyan
		case "warn":
			return "\033[33m[WARN]\033[0m" // Yellow
		case "fatal":
			return "\033[35m[FATAL]\033[0m" // Magenta
		default:
			return fmt.Sprintf("[%s]", i)
		}
	}
	consoleWriter.FormatMessage = func(i interface{}) string {
		return fmt.Sprintf("%s", i)
	}
	consoleWriter.FormatFieldName = func(i interface{}) string {
		return fmt.Sprintf("\033[1m%s:\033[0m", i) // Bold field names
	}
	consoleWriter.FormatFieldValue = func(i interface{}) string {
		return fmt.Sprintf("%v", i)
	}

	return zerolog.New(consoleWriter).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func emit(e *zerolog.Event, message string, args []interface{}) {
	if len(args) == 0 {
		e.Msg(message)
		return
	}
	e.Msgf(message, args...)
}

func Info(message string, args ...interface{}) {
	l := logger()
	emit(l.Info(), message, args)
}

func Warn(message string, args ...interface{}) {
	l := logger()
	emit(l.Warn(), message, args)
}

func Error(message string, args ...interface{}) {
	l := logger()
	emit(l.Error(), message, args)
}

func Fatal(message string, args ...interface{}) {
	l := logger()
	emit(l.Fatal(), message, args)
}

func Debug(message string, args ...interface{}) {
	l := logger()
	emit(l.Debug(), message, args)
}
