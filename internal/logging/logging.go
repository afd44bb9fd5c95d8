// Package logging provides the bracketed-component-tag logging idiom used
// throughout SolFlow. The teacher logs exclusively via the standard
// library log package with tags like "[Committer]" or "[%s]" (service
// name); this package formalizes that idiom into a small reusable type
// instead of adopting a structured logging library the teacher never
// reaches for.
package logging

import (
	"log"
	"os"
)

// Logger prefixes every line with a bracketed component tag, e.g. "[Flush]".
type Logger struct {
	tag    string
	stdlog *log.Logger
}

// New returns a Logger tagged with component, writing to stderr with the
// standard library's default timestamp flags.
func New(component string) *Logger {
	return &Logger{
		tag:    "[" + component + "] ",
		stdlog: log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) Printf(format string, args ...interface{}) {
	l.stdlog.Printf(l.tag+format, args...)
}

func (l *Logger) Println(args ...interface{}) {
	l.stdlog.Print(append([]interface{}{l.tag}, args...)...)
}
