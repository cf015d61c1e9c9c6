// Package filter implements the predicate pipeline applied to a Record
// before it is dispatched to a logger's handlers.
package filter

import (
	"strings"

	"femtolog/internal/record"
	"femtolog/internal/warner"
)

// Filter is a pure predicate: record -> bool. Variants compose by AND in a
// Chain.
type Filter interface {
	Match(r record.Record) bool
}

// Func adapts a plain function to Filter.
type Func func(record.Record) bool

func (f Func) Match(r record.Record) bool { return f(r) }

// Chain is an ordered, insertion-order predicate pipeline. ShouldLog
// returns true iff every filter returns true.
type Chain struct {
	filters []Filter
}

// NewChain builds a chain from the given filters, in order.
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: append([]Filter(nil), filters...)}
}

// Add appends a filter to the end of the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Filters returns the chain's filters in insertion order.
func (c *Chain) Filters() []Filter {
	return append([]Filter(nil), c.filters...)
}

// ShouldLog returns true iff every filter in the chain matches r.
func (c *Chain) ShouldLog(r record.Record) bool {
	if c == nil {
		return true
	}
	for _, f := range c.filters {
		if !f.Match(r) {
			return false
		}
	}
	return true
}

// Level is the `Level(max)` variant: a record at severity S passes iff
// S <= max. A record whose Severity is the zero value (never produced by
// record.New/ParseSeverity, but possible from a zero-value Record reaching
// the filter through a misbehaving host binding) fails to parse and the
// filter rejects it, recording a rate-limited warning.
func Level(max record.Severity, w *warner.Warner) Filter {
	return Func(func(r record.Record) bool {
		if r.Severity == 0 {
			if w != nil {
				w.RecordDrop(warner.CategoryUnknownLevel)
			}
			return false
		}
		return r.Severity <= max
	})
}

// Name is the `Name(prefix)` variant: matches when record.Logger == prefix
// or starts with prefix + ".".
func Name(prefix string) Filter {
	return Func(func(r record.Record) bool {
		if r.Logger == prefix {
			return true
		}
		return strings.HasPrefix(r.Logger, prefix+".")
	})
}
