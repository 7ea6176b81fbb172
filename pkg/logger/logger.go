package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

// New returns a stdlib-backed logger with component prefix.
func New(component string) *log.Logger {
	return NewWithWriter(os.Stderr, component)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, component string) *log.Logger {
	prefix := fmt.Sprintf("[%s] ", component)
	return log.New(w, prefix, log.LstdFlags|log.Lmsgprefix)
}

// Printf adapts a logger to the printf-style callbacks taken by browser tooling.
// A nil logger yields a callback that drops everything.
func Printf(l *log.Logger) func(string, ...any) {
	if l == nil {
		return func(string, ...any) {}
	}
	return l.Printf
}
