package logger

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// KeyFork is the context key of the fork number of the chain the process works on.
const KeyFork = "Fork"

type (
	// ContextLogger is a named logger. The underlying zerolog logger is
	// replaced atomically when configuration or context changes.
	ContextLogger struct {
		f  *factory
		zl atomic.Pointer[zerolog.Logger]
	}

	Context map[string]interface{}
)

func (c *ContextLogger) logger() *zerolog.Logger {
	c.f.ensureConfigured()
	return c.zl.Load()
}

func (c *ContextLogger) Trace(format string, args ...interface{}) {
	logMessage(c.logger().Trace(), format, args)
}

func (c *ContextLogger) Debug(format string, args ...interface{}) {
	logMessage(c.logger().Debug(), format, args)
}

func (c *ContextLogger) Info(format string, args ...interface{}) {
	logMessage(c.logger().Info(), format, args)
}

func (c *ContextLogger) Warning(format string, args ...interface{}) {
	logMessage(c.logger().Warn(), format, args)
}

func (c *ContextLogger) Error(format string, args ...interface{}) {
	logMessage(c.logger().Error(), format, args)
}

// logMessage does not treat "format" as format string when there are no args,
// so messages containing % (ie file paths) are logged as is.
func logMessage(event *zerolog.Event, format string, args []interface{}) {
	if len(args) == 0 {
		event.Msg(format)
	} else {
		event.Msgf(format, args...)
	}
}

// ChangeLevel changes the level of the context logger. The change is lost when
// global configuration or context is updated.
func (c *ContextLogger) ChangeLevel(newLevel LogLevel) {
	zl := c.logger().Level(toZeroLevel(newLevel))
	c.zl.Store(&zl)
}

func (c *ContextLogger) GetLevel() LogLevel {
	return fromZeroLevel(c.logger().GetLevel())
}

type goroutineIDHook struct{}

func (goroutineIDHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	e.Uint64("GoID", goroutineID())
}

// goroutineID parses the id from the "goroutine N [running]:" header of the stack trace.
func goroutineID() uint64 {
	var buf [64]byte
	s := buf[:runtime.Stack(buf[:], false)]
	s = bytes.TrimPrefix(s, []byte("goroutine "))
	if i := bytes.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	id, _ := strconv.ParseUint(string(s), 10, 64)
	return id
}

func toZeroLevel(lvl LogLevel) zerolog.Level {
	switch lvl {
	case NONE:
		return zerolog.Disabled
	case TRACE:
		return zerolog.TraceLevel
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARNING:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		panic(fmt.Sprintf("unknown level: %d", lvl))
	}
}

func fromZeroLevel(l zerolog.Level) LogLevel {
	switch l {
	case zerolog.Disabled:
		return NONE
	case zerolog.TraceLevel:
		return TRACE
	case zerolog.DebugLevel:
		return DEBUG
	case zerolog.InfoLevel:
		return INFO
	case zerolog.WarnLevel:
		return WARNING
	case zerolog.ErrorLevel:
		return ERROR
	default:
		panic(fmt.Sprintf("unknown level: %v", l))
	}
}
