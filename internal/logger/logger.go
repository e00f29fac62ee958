// Package logger is lspcord's slog setup.
//
// Records are written one per line:
//
//	2006-01-02T15:04:05.000Z [LEVEL] (component) message | key=value, key2="two words"
//
// The component prefix appears when a "component" attribute is attached with
// Logger.With. stdout belongs to the LSP stream, so output goes to a rotating
// file or to stderr, never stdout.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Environment variables that override the settings file.
const (
	EnvLevel  = "LSPCORD_LOG_LEVEL"
	EnvOutput = "LSPCORD_LOG_OUTPUT"
)

// Output destinations accepted by [Options.Output].
const (
	OutputFile   = "file"
	OutputStderr = "stderr"
)

// componentKey is lifted out of the attribute list into the line prefix.
const componentKey = "component"

// ///////////////////////////////////////////////
// Custom Levels
// ///////////////////////////////////////////////

const (
	LevelTrace slog.Level = -8
	LevelDebug slog.Level = slog.LevelDebug
	LevelInfo  slog.Level = slog.LevelInfo
	LevelWarn  slog.Level = slog.LevelWarn
	LevelError slog.Level = slog.LevelError
	LevelFail  slog.Level = 12
)

var levelNames = []struct {
	max  slog.Level
	name string
}{
	{LevelTrace, "TRACE"},
	{LevelDebug, "DEBUG"},
	{LevelInfo, "INFO"},
	{LevelWarn, "WARN"},
	{LevelError, "ERROR"},
}

func levelName(l slog.Level) string {
	for _, n := range levelNames {
		if l <= n.max {
			return n.name
		}
	}
	return "FAIL"
}

// ParseLevel converts trace, debug, info, warn, error or fail (any case) to
// a level. Anything else is LevelInfo.
func ParseLevel(s string) slog.Level {
	for _, n := range levelNames {
		if strings.EqualFold(s, n.name) {
			return n.max
		}
	}
	if strings.EqualFold(s, "fail") {
		return LevelFail
	}
	return LevelInfo
}

// ///////////////////////////////////////////////
// Handler
// ///////////////////////////////////////////////

var lineEnding = "\n"

func init() {
	if runtime.GOOS == "windows" {
		lineEnding = "\r\n"
	}
}

// Handler writes records in the package's line format. Handlers derived
// with WithAttrs or WithGroup share the parent's writer lock.
type Handler struct {
	out       io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	component string
	prefix    string // rendered attrs from WithAttrs
	group     string
}

// NewHandler returns a Handler writing to w at or above level.
func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	return &Handler{out: w, mu: &sync.Mutex{}, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	t := r.Time
	if t.IsZero() {
		t = time.Now()
	}
	b.WriteString(t.UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteString(" [")
	b.WriteString(levelName(r.Level))
	b.WriteString("] ")

	component := h.component
	var attrs strings.Builder
	attrs.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == componentKey && h.group == "" {
			component = a.Value.String()
			return true
		}
		appendAttr(&attrs, h.group, a)
		return true
	})

	if component != "" {
		b.WriteString("(")
		b.WriteString(component)
		b.WriteString(") ")
	}
	b.WriteString(r.Message)
	if attrs.Len() > 0 {
		b.WriteString(" | ")
		b.WriteString(attrs.String())
	}
	b.WriteString(lineEnding)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := *h
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, a := range attrs {
		if a.Key == componentKey && h.group == "" {
			h2.component = a.Value.String()
			continue
		}
		appendAttr(&b, h.group, a)
	}
	h2.prefix = b.String()
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.group = joinKey(h.group, name)
	return &h2
}

// appendAttr renders a as key=value, flattening groups into dotted keys.
func appendAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		g := group
		if a.Key != "" {
			g = joinKey(group, a.Key)
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, g, ga)
		}
		return
	}
	if b.Len() > 0 {
		b.WriteString(", ")
	}
	b.WriteString(joinKey(group, a.Key))
	b.WriteByte('=')
	b.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	s := v.String()
	if v.Kind() == slog.KindTime {
		s = v.Time().UTC().Format(time.RFC3339)
	}
	if s == "" || strings.ContainsAny(s, " ,|=\"\n\r\t") {
		return strconv.Quote(s)
	}
	return s
}

func joinKey(group, key string) string {
	if group == "" {
		return key
	}
	return group + "." + key
}

// ///////////////////////////////////////////////
// Constructor
// ///////////////////////////////////////////////

// Options selects where and how much to log.
type Options struct {
	Level     string
	Output    string
	Path      string
	MaxSizeMB int
	// Stderr receives output when Output is OutputStderr. Defaults to os.Stderr.
	Stderr io.Writer
}

// ApplyEnv overrides Level and Output from the environment.
func (o *Options) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvLevel); v != "" {
		o.Level = v
	}
	if v := getenv(EnvOutput); v != "" {
		o.Output = strings.ToLower(v)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New builds a logger from opts. The returned io.Closer flushes and closes
// the log file.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(opts.Level)
	switch opts.Output {
	case OutputStderr:
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		return slog.New(NewHandler(w, level)), nopCloser{}, nil
	case OutputFile, "":
		if opts.Path == "" {
			return nil, nil, fmt.Errorf("log output %q needs a path", OutputFile)
		}
		lj := &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    max(opts.MaxSizeMB, 1),
			MaxBackups: 3,
			MaxAge:     28,
		}
		return slog.New(NewHandler(lj, level)), lj, nil
	}
	return nil, nil, fmt.Errorf("unknown log output %q", opts.Output)
}

// ///////////////////////////////////////////////
// Helper Functions
// ///////////////////////////////////////////////

// Trace logs at LevelTrace.
func Trace(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelTrace, msg, args...)
}

// Fail logs at LevelFail.
func Fail(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelFail, msg, args...)
}
