// Diagnostic reporting for the Lumen toolchain.
// Every pipeline stage (checking, lowering, codegen) reports through this
// package; checking continues past individual errors so one run surfaces
// the maximal useful error set.

package diagnostic

import (
	"fmt"
	"io"
	"sort"

	"github.com/lumen-lang/lumen/internal/position"
)

// Severity represents the severity level of a diagnostic message.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityHint
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Diagnostic codes. The LUM00xx range covers type checking, LUM01xx covers
// lowering, LUM02xx covers codegen.
const (
	CodeUnificationMismatch  = "LUM0001"
	CodeUnknownType          = "LUM0002"
	CodeMissingSignature     = "LUM0003"
	CodeAmbiguousInstance    = "LUM0004"
	CodeKindMismatch         = "LUM0005"
	CodeResidualConstraint   = "LUM0006"
	CodeNonExhaustiveMatch   = "LUM0101"
	CodeClauseArity          = "LUM0102"
	CodeUnsupportedConstruct = "LUM0201"
)

// Diagnostic represents a single diagnostic message.
type Diagnostic struct {
	Code     string
	Message  string
	Span     position.Span
	Severity Severity
}

// String renders the diagnostic in path:line:col: severity[code]: message
// form. Diagnostics raised past the surface tree may carry no position;
// those render without the location prefix.
func (d Diagnostic) String() string {
	if d.Span.Start.Line == 0 {
		return fmt.Sprintf("%s[%s]: %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s[%s]: %s",
		d.Span.Start.Filename, d.Span.Start.Line, d.Span.Start.Column,
		d.Severity, d.Code, d.Message)
}

// Bag accumulates diagnostics across a compilation. It is not safe for
// concurrent use; the pipeline is single-threaded per compilation unit.
type Bag struct {
	items []Diagnostic
}

// NewBag creates an empty diagnostic bag.
func NewBag() *Bag {
	return &Bag{}
}

// Add appends a diagnostic.
func (b *Bag) Add(d Diagnostic) {
	b.items = append(b.items, d)
}

// Error reports an error diagnostic at span.
func (b *Bag) Error(code string, span position.Span, format string, args ...any) {
	b.Add(Diagnostic{Code: code, Message: fmt.Sprintf(format, args...), Span: span, Severity: SeverityError})
}

// Warning reports a warning diagnostic at span.
func (b *Bag) Warning(code string, span position.Span, format string, args ...any) {
	b.Add(Diagnostic{Code: code, Message: fmt.Sprintf(format, args...), Span: span, Severity: SeverityWarning})
}

// HasErrors returns true if any error-severity diagnostic was reported.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Len returns the number of diagnostics collected.
func (b *Bag) Len() int { return len(b.items) }

// Items returns the collected diagnostics ordered by (path, line, column, code).
// Ordering is stable so front-end tools see a deterministic stream.
func (b *Bag) Items() []Diagnostic {
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	sort.SliceStable(out, func(i, j int) bool {
		a, c := out[i], out[j]
		if a.Span.Start.Filename != c.Span.Start.Filename {
			return a.Span.Start.Filename < c.Span.Start.Filename
		}
		if a.Span.Start.Line != c.Span.Start.Line {
			return a.Span.Start.Line < c.Span.Start.Line
		}
		if a.Span.Start.Column != c.Span.Start.Column {
			return a.Span.Start.Column < c.Span.Start.Column
		}
		return a.Code < c.Code
	})
	return out
}

// Write renders the ordered stream to w, one diagnostic per line.
func (b *Bag) Write(w io.Writer) error {
	for _, d := range b.Items() {
		if _, err := fmt.Fprintln(w, d.String()); err != nil {
			return err
		}
	}
	return nil
}
