package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CompactHandler writes one short human-readable line per record.
// Format: [LEVEL] HH:MM:SS (component) message | key=value key=value
type CompactHandler struct {
	opts      slog.HandlerOptions
	mu        *sync.Mutex
	out       io.Writer
	component string
	attrs     []slog.Attr // accumulated attributes from WithAttrs, already group-qualified
	group     string      // group prefix from WithGroup
}

// NewCompactHandler returns a CompactHandler writing to w
func NewCompactHandler(w io.Writer, opts *slog.HandlerOptions) *CompactHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &CompactHandler{
		opts: *opts,
		mu:   &sync.Mutex{},
		out:  w,
	}
}

func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.Leveler(slog.LevelInfo)
	if h.opts.Level != nil {
		threshold = h.opts.Level
	}
	return level >= threshold.Level()
}

// levelLabel returns the fixed-width tag of a level
func levelLabel(l slog.Level) string {
	switch {
	case l <= LevelTrace:
		return "[TRACE]"
	case l == slog.LevelDebug:
		return "[DEBUG]"
	case l == slog.LevelInfo:
		return "[INFO] "
	case l == slog.LevelWarn:
		return "[WARN] "
	case l == slog.LevelError:
		return "[ERROR]"
	}
	return fmt.Sprintf("[%-5s]", l.String())
}

func (h *CompactHandler) Handle(ctx context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256)
	buf = append(buf, levelLabel(r.Level)...)
	buf = append(buf, ' ')
	buf = r.Time.AppendFormat(buf, "15:04:05")
	buf = append(buf, ' ')
	if h.component != "" {
		buf = append(buf, '(')
		buf = append(buf, h.component...)
		buf = append(buf, ") "...)
	}
	buf = append(buf, r.Message...)

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.qualify(a))
		return true
	})

	sep := " |"
	for _, a := range attrs {
		if a.Equal(slog.Attr{}) {
			continue
		}
		buf = append(buf, sep...)
		sep = ""
		buf = append(buf, ' ')
		buf = h.appendAttr(buf, a)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func (h *CompactHandler) qualify(a slog.Attr) slog.Attr {
	if h.group == "" {
		return a
	}
	a.Key = h.group + "." + a.Key
	return a
}

// appendAttr writes key=value. Request IDs are cut to 8 characters, durations get a
// unit and errors are always quoted.
func (h *CompactHandler) appendAttr(buf []byte, a slog.Attr) []byte {
	v := a.Value.Resolve()
	switch {
	case a.Key == "requestID" && v.Kind() == slog.KindString && len(v.String()) > 8:
		return append(append(buf, "req="...), v.String()[:8]...)
	case a.Key == "durationMs":
		return fmt.Appendf(buf, "duration=%sms", v)
	case a.Key == "error":
		return strconv.AppendQuote(append(buf, "error="...), fmt.Sprint(v.Any()))
	}
	return appendValue(append(append(buf, a.Key...), '='), v)
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		if needsQuoting(v.String()) {
			return strconv.AppendQuote(buf, v.String())
		}
		return append(buf, v.String()...)
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	}
	return fmt.Appendf(buf, "%v", v.Any())
}

func needsQuoting(s string) bool {
	return s == "" || strings.ContainsAny(s, " \t\n\"=")
}

func (h *CompactHandler) clone() *CompactHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	return &c
}

// WithAttrs lifts a "component" attribute into the line prefix and keeps the rest
func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		if a.Key == "component" && h.group == "" {
			c.component = a.Value.String()
			continue
		}
		c.attrs = append(c.attrs, h.qualify(a))
	}
	return c
}

func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	if c.group != "" {
		c.group += "." + name
	} else {
		c.group = name
	}
	return c
}
