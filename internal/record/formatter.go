package record

import "fmt"

// Formatter renders a Record to its line-oriented textual form. Formatters
// are shared by many reader goroutines and must never mutate state, so
// implementations are expected to be pure functions of their (fixed)
// configuration and the record.
type Formatter interface {
	Format(r Record) string
}

// DefaultFormatter renders "{logger} [{LEVEL}] {message}", matching the
// fixed format spec.md names; it carries no configuration and is safe to
// share as a package-level singleton.
type DefaultFormatter struct{}

func (DefaultFormatter) Format(r Record) string {
	return fmt.Sprintf("%s [%s] %s", r.Logger, r.Severity, r.Message)
}

// Default is the shared, stateless default formatter instance.
var Default Formatter = DefaultFormatter{}

// FormatterFunc adapts a plain function to the Formatter interface.
type FormatterFunc func(Record) string

func (f FormatterFunc) Format(r Record) string { return f(r) }
