// Package parse adapts a natural-language date parser to the message
// pipeline. The pipeline feeds it bracket-stripped candidates; anything the
// parser does not recognize is dropped, which is the common case since most
// bracketed text is not a time.
package parse

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Parser resolves candidate strings to concrete instants, preferring the
// future occurrence for expressions without an explicit date.
type Parser struct {
	w *when.Parser
}

// New creates a Parser with English and common rules.
func New() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

// Parse resolves one candidate relative to base. ok is false when the
// candidate is not a time expression. All parser failure modes, panics
// included, collapse to ok=false; nothing propagates to the caller.
func (p *Parser) Parse(text string, base time.Time) (result time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			result, ok = time.Time{}, false
		}
	}()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return time.Time{}, false
	}

	r, err := p.w.Parse(trimmed, base)
	if err != nil || r == nil {
		return time.Time{}, false
	}

	// The rules can latch onto a small slice of a longer sentence; such a
	// candidate is almost never meant as a time expression.
	if len(r.Text)*2 < len(trimmed) {
		return time.Time{}, false
	}

	result = r.Time
	// Bare clock times resolve to today even when that moment has passed;
	// read those as the next occurrence.
	if result.Before(base) && base.Sub(result) < 24*time.Hour {
		result = result.Add(24 * time.Hour)
	}
	return result, true
}

// ParseAll resolves a list of candidates, keeping input order and skipping
// everything unparseable.
func (p *Parser) ParseAll(texts []string, base time.Time) []time.Time {
	var out []time.Time
	for _, text := range texts {
		if t, ok := p.Parse(text, base); ok {
			out = append(out, t)
		}
	}
	return out
}
