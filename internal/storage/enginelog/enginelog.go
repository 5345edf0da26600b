// Package enginelog gives every storage component the same "[component] ..."
// log prefix convention the teacher uses in internal/watcher and
// internal/jobs, instead of adopting a structured logging library the
// example pack never reaches for in this tree.
package enginelog

import (
	"log"
	"os"
)

// Logger prefixes every line with a component tag, e.g. "[index] ...".
type Logger struct {
	component string
	std       *log.Logger
}

// New returns a Logger for the named component, writing to stderr like the
// teacher's default *log.Logger.
func New(component string) *Logger {
	return &Logger{
		component: component,
		std:       log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) Printf(format string, args ...any) {
	l.std.Printf("["+l.component+"] "+format, args...)
}

func (l *Logger) Println(args ...any) {
	all := append([]any{"[" + l.component + "]"}, args...)
	l.std.Println(all...)
}
