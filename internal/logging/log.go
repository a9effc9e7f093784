// Package logging is the gateway's process-wide logger. It wraps log/slog with a compact
// single-line handler and exposes printf-style helpers plus field-carrying entries.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

var (
	defaultLogger *slog.Logger
	logLevel                = new(slog.LevelVar)
	logOutput     io.Writer = os.Stdout
	outputMu      sync.RWMutex
	nowFunc       = time.Now
)

// Fields is a set of structured attributes attached to one log line.
type Fields map[string]any

func init() {
	logLevel.Set(slog.LevelInfo)
	defaultLogger = slog.New(NewLineHandler(os.Stdout, logLevel, true))
}

func reconfigure(w io.Writer, addSource bool) {
	outputMu.Lock()
	defer outputMu.Unlock()
	logOutput = w
	defaultLogger = slog.New(NewLineHandler(w, logLevel, addSource))
}

func current() *slog.Logger {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return defaultLogger
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	reconfigure(w, true)
}

// SetLevel sets the minimum level that is written.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// GetLevel returns the current minimum level.
func GetLevel() slog.Level {
	return logLevel.Level()
}

// SetDebug toggles between debug and info level.
func SetDebug(enabled bool) {
	if enabled {
		SetLevel(slog.LevelDebug)
		return
	}
	SetLevel(slog.LevelInfo)
}

func Debug(msg string) { logAt(slog.LevelDebug, msg, nil) }

func Debugf(format string, args ...any) { logAt(slog.LevelDebug, fmt.Sprintf(format, args...), nil) }

func Info(msg string) { logAt(slog.LevelInfo, msg, nil) }

func Infof(format string, args ...any) { logAt(slog.LevelInfo, fmt.Sprintf(format, args...), nil) }

func Warn(msg string) { logAt(slog.LevelWarn, msg, nil) }

func Warnf(format string, args ...any) { logAt(slog.LevelWarn, fmt.Sprintf(format, args...), nil) }

func Error(msg string) { logAt(slog.LevelError, msg, nil) }

func Errorf(format string, args ...any) { logAt(slog.LevelError, fmt.Sprintf(format, args...), nil) }

// Fatalf logs at error level, runs registered exit handlers and exits with status 1.
func Fatalf(format string, args ...any) {
	logAt(slog.LevelError, fmt.Sprintf(format, args...), nil)
	runExitHandlers()
	os.Exit(1)
}

func logAt(level slog.Level, msg string, attrs []slog.Attr) {
	logger := current()
	if !logger.Enabled(context.Background(), level) {
		return
	}

	// skip runtime.Callers, logAt and the exported helper
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(nowFunc(), level, msg, pcs[0])
	if len(attrs) > 0 {
		r.AddAttrs(attrs...)
	}
	_ = logger.Handler().Handle(context.Background(), r)
}

// Entry accumulates fields for a single log line.
type Entry struct {
	attrs []slog.Attr
}

func WithError(err error) *Entry {
	return &Entry{attrs: []slog.Attr{slog.Any("error", err)}}
}

func WithField(key string, value any) *Entry {
	return &Entry{attrs: []slog.Attr{slog.Any(key, value)}}
}

func WithFields(fields Fields) *Entry {
	e := &Entry{attrs: make([]slog.Attr, 0, len(fields))}
	for k, v := range fields {
		e.attrs = append(e.attrs, slog.Any(k, v))
	}
	return e
}

func (e *Entry) WithField(key string, value any) *Entry {
	e.attrs = append(e.attrs, slog.Any(key, value))
	return e
}

func (e *Entry) WithError(err error) *Entry {
	e.attrs = append(e.attrs, slog.Any("error", err))
	return e
}

func (e *Entry) Debug(msg string) { logAt(slog.LevelDebug, msg, e.attrs) }

func (e *Entry) Debugf(format string, args ...any) {
	logAt(slog.LevelDebug, fmt.Sprintf(format, args...), e.attrs)
}

func (e *Entry) Info(msg string) { logAt(slog.LevelInfo, msg, e.attrs) }

func (e *Entry) Infof(format string, args ...any) {
	logAt(slog.LevelInfo, fmt.Sprintf(format, args...), e.attrs)
}

func (e *Entry) Warn(msg string) { logAt(slog.LevelWarn, msg, e.attrs) }

func (e *Entry) Warnf(format string, args ...any) {
	logAt(slog.LevelWarn, fmt.Sprintf(format, args...), e.attrs)
}

func (e *Entry) Error(msg string) { logAt(slog.LevelError, msg, e.attrs) }

func (e *Entry) Errorf(format string, args ...any) {
	logAt(slog.LevelError, fmt.Sprintf(format, args...), e.attrs)
}

// WriterLevel returns an io.Writer that logs every written line at level.
func WriterLevel(level slog.Level) io.Writer {
	return &levelWriter{level: level}
}

type levelWriter struct {
	level slog.Level
}

func (w *levelWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\r\n")
	if msg == "" {
		return len(p), nil
	}
	logger := current()
	if !logger.Enabled(context.Background(), w.level) {
		return len(p), nil
	}
	r := slog.NewRecord(nowFunc(), w.level, msg, 0)
	_ = logger.Handler().Handle(context.Background(), r)
	return len(p), nil
}

var (
	exitHandlers   []func()
	exitHandlersMu sync.Mutex
)

// RegisterExitHandler adds a hook run by Fatalf before the process exits.
func RegisterExitHandler(handler func()) {
	exitHandlersMu.Lock()
	defer exitHandlersMu.Unlock()
	exitHandlers = append(exitHandlers, handler)
}

func runExitHandlers() {
	exitHandlersMu.Lock()
	handlers := append([]func(){}, exitHandlers...)
	exitHandlersMu.Unlock()

	for _, h := range handlers {
		h()
	}
}
