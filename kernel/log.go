package kernel

import (
	"fmt"
	"strings"
	"sync/atomic"

	"hartos/hal"
)

// Level is a kernel log level.
type Level int32

const (
	LevelError Level = iota + 1
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	case LevelTrace:
		return "TRACE"
	default:
		return "OFF"
	}
}

// ParseLevel parses a level name; unknown names yield LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError
	case "WARN":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	case "TRACE":
		return LevelTrace
	case "OFF":
		return 0
	default:
		return LevelInfo
	}
}

// Log writes leveled kernel log lines to a HAL logger. A nil *Log discards.
type Log struct {
	out   hal.Logger
	level atomic.Int32
}

// NewLog returns a log writing lines at or below level.
func NewLog(out hal.Logger, level Level) *Log {
	l := &Log{out: out}
	l.level.Store(int32(level))
	return l
}

func (l *Log) SetLevel(level Level) {
	if l != nil {
		l.level.Store(int32(level))
	}
}

func (l *Log) Enabled(level Level) bool {
	return l != nil && l.out != nil && level <= Level(l.level.Load())
}

func (l *Log) logf(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	l.out.WriteLineString(fmt.Sprintf("[%5s] ", level) + fmt.Sprintf(format, args...))
}

func (l *Log) Errorf(format string, args ...any) { l.logf(LevelError, format, args...) }
func (l *Log) Warnf(format string, args ...any)  { l.logf(LevelWarn, format, args...) }
func (l *Log) Infof(format string, args ...any)  { l.logf(LevelInfo, format, args...) }
func (l *Log) Debugf(format string, args ...any) { l.logf(LevelDebug, format, args...) }
func (l *Log) Tracef(format string, args ...any) { l.logf(LevelTrace, format, args...) }
