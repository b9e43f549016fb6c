package logger

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"
)

// StdLog returns a *log.Logger that writes to l at the given level, for stdlib
// servers that only accept one (http.Server.ErrorLog).
func StdLog(l *Logger, level slog.Level) *log.Logger {
	return slog.NewLogLogger(NewSlogHandler(l), level)
}

// NewSlogHandler returns a slog.Handler writing through l. Groups become
// prefixes on a child logger, so the handler follows the level of l's root.
func NewSlogHandler(l *Logger) slog.Handler {
	if l == nil {
		return nil
	}
	return &slogHandler{log: l}
}

type slogHandler struct {
	log *Logger
	// attrs is preformatted "k=v k=v" text from WithAttrs
	attrs string
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarn
	case level >= slog.LevelInfo:
		return LevelInfo
	default:
		return LevelDebug
	}
}

func (h *slogHandler) Enabled(_ context.Context, level slog.Level) bool {
	current := h.log.GetLevel()
	return current != LevelNone && fromSlogLevel(level) >= current
}

func (h *slogHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	if h.attrs != "" {
		b.WriteByte(' ')
		b.WriteString(h.attrs)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, "", a)
		return true
	})
	h.log.log(fromSlogLevel(r.Level), "%s", strings.TrimSpace(b.String()))
	return nil
}

func (h *slogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.attrs)
	for _, a := range attrs {
		appendAttr(&b, "", a)
	}
	return &slogHandler{log: h.log, attrs: strings.TrimSpace(b.String())}
}

func (h *slogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &slogHandler{log: h.log.WithPrefix(name), attrs: h.attrs}
}

// appendAttr writes " key=value", flattening nested groups into dotted keys
func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, nested := range a.Value.Group() {
			appendAttr(b, key, nested)
		}
		return
	}
	if key == "" {
		key = "attr"
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	fmt.Fprintf(b, "%s=%v", key, a.Value)
}
