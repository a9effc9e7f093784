package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// LineHandler renders records as
//
//	[2006-01-02 15:04:05] [level] [file.go:42] message | key=value key=value
type LineHandler struct {
	w         io.Writer
	level     *slog.LevelVar
	addSource bool
	attrs     []slog.Attr
	mu        *sync.Mutex
}

func NewLineHandler(w io.Writer, level *slog.LevelVar, addSource bool) *LineHandler {
	return &LineHandler{w: w, level: level, addSource: addSource, mu: &sync.Mutex{}}
}

func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(r.Time.Format("2006-01-02 15:04:05"))
	b.WriteString("] [")
	b.WriteString(strings.ToLower(r.Level.String()))
	b.WriteString("] ")

	if h.addSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := frames.Next()
		fmt.Fprintf(&b, "[%s:%d] ", filepath.Base(f.File), f.Line)
	}
	b.WriteString(r.Message)

	first := true
	writeAttr := func(a slog.Attr) bool {
		if first {
			b.WriteString(" | ")
			first = false
		} else {
			b.WriteString(" ")
		}
		b.WriteString(a.Key)
		b.WriteString("=")
		fmt.Fprintf(&b, "%v", a.Value.Any())
		return true
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(writeAttr)
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup is a no-op; the line format has no notion of groups.
func (h *LineHandler) WithGroup(string) slog.Handler {
	return h
}
