// Package prettylog is a colorized slog handler for interactive use.
// Production deployments should stick with the default text handler.
package prettylog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

const timeFormat = "15:04:05.000"

const (
	reset = "\033[0m"

	yellow   = 33
	cyan     = 36
	darkGray = 90
	lightRed = 91
	white    = 97
)

func colorize(code int, v string) string {
	return "\033[" + strconv.Itoa(code) + "m" + v + reset
}

type handler struct {
	level  slog.Level
	output io.Writer
	attrs  []slog.Attr
	lock   *sync.Mutex
}

func NewHandler(level slog.Level) slog.Handler {
	return &handler{
		level:  level,
		output: os.Stderr,
		lock:   &sync.Mutex{},
	}
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *handler) WithGroup(name string) slog.Handler {
	return h
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"
	switch r.Level {
	case slog.LevelDebug:
		level = colorize(darkGray, level)
	case slog.LevelInfo:
		level = colorize(cyan, level)
	case slog.LevelWarn:
		level = colorize(yellow, level)
	case slog.LevelError:
		level = colorize(lightRed, level)
	}

	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = flatten(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = flatten(a.Value)
		return true
	})

	h.lock.Lock()
	defer h.lock.Unlock()

	fmt.Fprint(h.output, colorize(darkGray, r.Time.Format(timeFormat)), " ",
		level, " ", colorize(white, r.Message))
	if len(attrs) > 0 {
		fmt.Fprint(h.output, " ", colorize(darkGray, renderAttrs(attrs)))
	}
	fmt.Fprintln(h.output)

	return nil
}

func flatten(v slog.Value) any {
	resolved := v.Resolve().Any()
	if err, ok := resolved.(error); ok {
		return err.Error()
	}
	return resolved
}

func renderAttrs(attrs map[string]any) string {
	asJSON, err := json.MarshalIndent(attrs, "  ", "  ")
	if err != nil {
		return fmt.Sprintf("%v", attrs)
	}
	return string(asJSON)
}
