package dlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

type color int

const (
	timeFormat = "[2006-01-02 15:04:05.000]"

	reset = "\033[0m"

	cyan         color = 36
	lightGray    color = 37
	darkGray     color = 90
	lightRed     color = 91
	lightYellow  color = 93
	lightMagenta color = 95
	white        color = 97
)

func colorizer(code color, v string) string {
	return "\033[" + strconv.Itoa(int(code)) + "m" + v + reset
}

// PrettyHandler writes one human readable line per record:
// timestamp, level, message, then key=value attributes.
type PrettyHandler struct {
	w      io.Writer
	m      *sync.Mutex
	level  slog.Leveler
	source bool
	color  bool
	attrs  []slog.Attr
	group  string
}

type PrettyOption func(*PrettyHandler)

func WithColor(enabled bool) PrettyOption {
	return func(h *PrettyHandler) {
		h.color = enabled
	}
}

func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions, options ...PrettyOption) *PrettyHandler {
	h := &PrettyHandler{w: w, m: &sync.Mutex{}, level: slog.LevelInfo}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.source = opts.AddSource
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), h.qualify(attrs)...)
	return &clone
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.group = h.group + name + "."
	return &clone
}

func (h *PrettyHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = slog.Attr{Key: h.group + a.Key, Value: a.Value}
	}
	return out
}

func (h *PrettyHandler) paint(code color, v string) string {
	if !h.color {
		return v
	}
	return colorizer(code, v)
}

func (h *PrettyHandler) levelColor(level slog.Level) color {
	switch {
	case level < slog.LevelInfo:
		return lightGray
	case level < slog.LevelWarn:
		return cyan
	case level < slog.LevelError:
		return lightYellow
	case level == slog.LevelError:
		return lightRed
	default:
		return lightMagenta
	}
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	out := strings.Builder{}
	if !r.Time.IsZero() {
		out.WriteString(h.paint(lightGray, r.Time.Format(timeFormat)))
		out.WriteString(" ")
	}
	out.WriteString(h.paint(h.levelColor(r.Level), r.Level.String()+":"))
	out.WriteString(" ")
	out.WriteString(h.paint(white, r.Message))

	if h.source && r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		out.WriteString(" ")
		out.WriteString(h.paint(darkGray, fmt.Sprintf("%s:%d", frame.File, frame.Line)))
	}

	write := func(a slog.Attr) {
		if a.Equal(slog.Attr{}) {
			return
		}
		out.WriteString(" ")
		out.WriteString(h.paint(darkGray, a.Key+"="))
		out.WriteString(a.Value.Resolve().String())
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(slog.Attr{Key: h.group + a.Key, Value: a.Value})
		return true
	})
	out.WriteString("\n")

	h.m.Lock()
	defer h.m.Unlock()
	_, err := io.WriteString(h.w, out.String())
	return err
}
