// Package log provides the small leveled logging facade used throughout
// dwarfsynth. It is deliberately narrow: a Logger writes key/value pairs at
// a Level, a Helper adds printf-style convenience on top, and a Filter
// gates a Logger by minimum level. There is no global logger; every
// component that needs one receives it explicitly.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Level is the severity of a log record, ordered Debug < Info < Warn < Error < Fatal.
type Level int8

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a CLI-supplied level name (as accepted by the -l flag) to
// a Level. It defaults to LevelInfo for an unrecognized name.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Logger writes one record of alternating key/value pairs at the given level.
type Logger interface {
	Log(level Level, keyvals ...interface{}) error
}

// stdLogger writes records to an underlying io.Writer via the stdlib log package.
type stdLogger struct {
	mu  sync.Mutex
	log *log.Logger
}

// NewStdLogger returns a Logger that formats records as "level=X k=v k=v ..." to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{log: log.New(w, "", log.LstdFlags)}
}

func (l *stdLogger) Log(level Level, keyvals ...interface{}) error {
	if len(keyvals)%2 != 0 {
		keyvals = append(keyvals, "MISSING_VALUE")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	buf := fmt.Sprintf("level=%s", level.String())
	for i := 0; i < len(keyvals); i += 2 {
		buf += fmt.Sprintf(" %v=%v", keyvals[i], keyvals[i+1])
	}
	l.log.Println(buf)
	return nil
}

// NewNopLogger returns a Logger that discards every record.
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Log(Level, ...interface{}) error { return nil }

// Filter wraps a Logger and drops records below a configured minimum level.
type Filter struct {
	logger Logger
	level  Level
}

// FilterOption configures a Filter.
type FilterOption func(*Filter)

// FilterLevel sets the minimum level a Filter will pass through.
func FilterLevel(level Level) FilterOption {
	return func(f *Filter) { f.level = level }
}

// NewFilter returns a Logger that forwards to logger only records at or above
// the configured level (LevelInfo if unset).
func NewFilter(logger Logger, opts ...FilterOption) *Filter {
	f := &Filter{logger: logger, level: LevelInfo}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Filter) Log(level Level, keyvals ...interface{}) error {
	if level < f.level {
		return nil
	}
	return f.logger.Log(level, keyvals...)
}

// Helper adds printf-style convenience methods on top of a Logger.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger in printf-style convenience methods.
func NewHelper(logger Logger) *Helper {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, format string, a ...interface{}) {
	_ = h.logger.Log(level, "msg", fmt.Sprintf(format, a...))
}

func (h *Helper) Debugf(format string, a ...interface{}) { h.log(LevelDebug, format, a...) }
func (h *Helper) Infof(format string, a ...interface{})  { h.log(LevelInfo, format, a...) }
func (h *Helper) Warnf(format string, a ...interface{})  { h.log(LevelWarn, format, a...) }
func (h *Helper) Errorf(format string, a ...interface{}) { h.log(LevelError, format, a...) }

func (h *Helper) Fatalf(format string, a ...interface{}) {
	h.log(LevelFatal, format, a...)
	os.Exit(1)
}
