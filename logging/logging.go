// Package logging is the process log sink shared by the scheduler, the world and the interop
// layer. A Logger is created once and handed to its collaborators; it filters by level and can
// be redirected to a host callback.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	// LevelNone silences everything but Fatalf's exit
	LevelNone
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	case LevelNone:
		return "none"
	}
	return fmt.Sprintf("level(%d)", int32(l))
}

// ParseLevel accepts the names returned by Level.String, case insensitive
func ParseLevel(name string) (Level, error) {
	for level := LevelDebug; level <= LevelNone; level++ {
		if strings.EqualFold(name, level.String()) {
			return level, nil
		}
	}
	return LevelInfo, fmt.Errorf("logging: unknown level %q", name)
}

// RedirectFunc receives every message that passes the level filter instead of the writer
type RedirectFunc func(level Level, message string)

// Logger is safe for concurrent use. The zero value is not usable, call New or Discard.
// A nil *Logger drops everything, which keeps optional loggers cheap to pass around.
type Logger struct {
	level atomic.Int32

	mu       sync.Mutex
	out      *log.Logger
	redirect RedirectFunc
	exit     func(code int)
}

func New(out io.Writer, level Level) *Logger {
	l := &Logger{
		out:  log.New(out, "", log.LstdFlags|log.Lmicroseconds),
		exit: os.Exit,
	}
	l.level.Store(int32(level))
	return l
}

// Discard returns a logger that writes nowhere, for tests
func Discard() *Logger {
	return New(io.Discard, LevelNone)
}

func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.level.Store(int32(level))
}

func (l *Logger) Level() Level {
	if l == nil {
		return LevelNone
	}
	return Level(l.level.Load())
}

func (l *Logger) Enabled(level Level) bool {
	return l != nil && level >= l.Level() && level < LevelNone
}

// Redirect sends messages to fn. A nil fn restores the writer.
func (l *Logger) Redirect(fn RedirectFunc) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.redirect = fn
}

// SetExitHook replaces os.Exit in Fatalf
func (l *Logger) SetExitHook(exit func(code int)) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exit = exit
}

func (l *Logger) logf(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	message := fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.redirect != nil {
		l.redirect(level, message)
		return
	}
	l.out.Printf("[%s] %s", strings.ToUpper(level.String()), message)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logf(LevelInfo, format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logf(LevelWarn, format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logf(LevelError, format, args...)
}

// Fatalf logs and then calls the exit hook with status 1
func (l *Logger) Fatalf(format string, args ...any) {
	if l == nil {
		os.Exit(1)
	}
	l.logf(LevelFatal, format, args...)

	l.mu.Lock()
	exit := l.exit
	l.mu.Unlock()
	exit(1)
}
