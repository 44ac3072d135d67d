package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Logger writes leveled, printf-style log lines to stdout and, optionally,
// to a log file. Derived loggers share the parent's sinks.
type Logger struct {
	Verbose bool

	sink      *sink
	component string
}

type sink struct {
	mu      sync.Mutex
	writer  io.Writer
	errOut  io.Writer
	fileLog *os.File
}

// New creates a new Logger instance
func New(verbose bool) *Logger {
	return &Logger{
		Verbose: verbose,
		sink:    &sink{writer: os.Stdout, errOut: os.Stderr},
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{sink: &sink{writer: io.Discard, errOut: io.Discard}}
}

// Named returns a logger that prefixes every line with the component name.
func (l *Logger) Named(component string) *Logger {
	if l == nil {
		return Nop().Named(component)
	}
	return &Logger{Verbose: l.Verbose, sink: l.sink, component: component}
}

// SetOutput redirects console output (stdout and stderr lines) to w.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.writer = w
	l.sink.errOut = w
}

// SetFileLog enables logging to a file
func (l *Logger) SetFileLog(path string) error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.sink.fileLog = f
	return nil
}

// Close closes the log file if open
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.fileLog != nil {
		err := l.sink.fileLog.Close()
		l.sink.fileLog = nil
		return err
	}
	return nil
}

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.log("INFO", false, format, args...)
}

// Debug logs detailed messages only in verbose mode; the file sink always gets them.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log("DEBUG", false, format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log("WARN", false, format, args...)
}

// Error logs error messages to stderr
func (l *Logger) Error(format string, args ...interface{}) {
	l.log("ERROR", true, format, args...)
}

func (l *Logger) log(level string, toErr bool, format string, args ...interface{}) {
	if l == nil || l.sink == nil {
		return
	}
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	body := fmt.Sprintf(format, args...)
	if l.component != "" {
		body = l.component + ": " + body
	}

	var msg string
	if level == "INFO" {
		msg = body + "\n"
	} else {
		msg = "[" + level + "] " + body + "\n"
	}

	switch {
	case toErr:
		fmt.Fprint(s.errOut, msg)
	case level != "DEBUG" || l.Verbose:
		fmt.Fprint(s.writer, msg)
	}

	if s.fileLog != nil {
		s.fileLog.WriteString(time.Now().Format("2006-01-02 15:04:05") + " [" + level + "] " + body + "\n")
	}
}
