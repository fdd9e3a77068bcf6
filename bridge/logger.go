package bridge

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// LogSink receives a fully formatted log line. Logger writes to stdout by
// itself and forwards to an optional secondary sink (CloudWatch Logs).
type LogSink interface {
	Write(line string) error
}

// Logger is a small leveled wrapper around the standard library's
// *log.Logger, matching the prefix/timestamp style every handler in this
// module already uses. Debug and Verbose are off by default; Warn and
// Error are on by default, mirroring loghandler.py's ll_warn/ll_error.
type Logger struct {
	std *log.Logger

	mu      sync.Mutex
	sink    LogSink
	debug   bool
	verbose bool
	warn    bool
	error_  bool
}

// NewLogger builds a Logger writing to stdout with the given prefix.
func NewLogger(prefix string) *Logger {
	return &Logger{
		std:  log.New(os.Stdout, prefix, log.LstdFlags),
		warn: true, error_: true,
	}
}

// SetLevels configures which of the four independent log levels are active.
func (l *Logger) SetLevels(debug, verbose, warn, errorLevel bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug, l.verbose, l.warn, l.error_ = debug, verbose, warn, errorLevel
}

// SetSink attaches a secondary sink (e.g. CloudWatch Logs) that receives
// every emitted line in addition to stdout.
func (l *Logger) SetSink(sink LogSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

func (l *Logger) emit(level, format string, args ...interface{}) {
	msg := fmt.Sprintf("[%s] %s", level, fmt.Sprintf(format, args...))
	l.std.Println(msg)

	l.mu.Lock()
	sink := l.sink
	l.mu.Unlock()
	if sink != nil {
		if err := sink.Write(msg); err != nil {
			l.std.Printf("[ERROR] failed to write to log sink: %v", err)
		}
	}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.mu.Lock()
	on := l.debug
	l.mu.Unlock()
	if on {
		l.emit("DEBUG", format, args...)
	}
}

func (l *Logger) Verbose(format string, args ...interface{}) {
	l.mu.Lock()
	on := l.verbose
	l.mu.Unlock()
	if on {
		l.emit("VERBOSE", format, args...)
	}
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.mu.Lock()
	on := l.warn
	l.mu.Unlock()
	if on {
		l.emit("WARN", format, args...)
	}
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	on := l.error_
	l.mu.Unlock()
	if on {
		l.emit("ERROR", format, args...)
	}
}
