// Package diag defines the structured diagnostics the engine reports:
// merge conflicts, type mismatches, divergence, assertion failures. Every
// diagnostic carries enough structure (path, priorities, origins) for a
// caller to pinpoint the responsible modules; rendering is the caller's
// concern.
package diag

import (
	"fmt"
	"strings"
)

// Kind classifies a diagnostic.
type Kind int

const (
	// UndeclaredOption: a definition targets a path with no declaration.
	UndeclaredOption Kind = iota
	// DuplicateDeclaration: two declarations exist for one path.
	DuplicateDeclaration
	// TypeMismatch: a definition's value fails the declared type's validator.
	TypeMismatch
	// Conflict: same-priority irreconcilable definitions.
	Conflict
	// Divergence: the fixed point was not reached within the iteration bound.
	Divergence
	// AssertionFailure: a post-resolution predicate evaluated false.
	AssertionFailure
	// MissingDependency: a module requires another module that is absent.
	MissingDependency
	// EvaluationFailure: a deferred computation could not produce its
	// definitions at all (as opposed to producing ill-typed ones).
	EvaluationFailure
)

// String returns the kind's stable name.
func (k Kind) String() string {
	switch k {
	case UndeclaredOption:
		return "undeclared-option"
	case DuplicateDeclaration:
		return "duplicate-declaration"
	case TypeMismatch:
		return "type-mismatch"
	case Conflict:
		return "conflict"
	case Divergence:
		return "divergence"
	case AssertionFailure:
		return "assertion-failure"
	case MissingDependency:
		return "missing-dependency"
	case EvaluationFailure:
		return "evaluation-failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Severity distinguishes blocking errors from advisory warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one structured problem report.
type Diagnostic struct {
	Kind       Kind
	Severity   Severity
	Path       string   // dotted option path, empty when not path-scoped
	Detail     string   // human-readable description
	Origins    []string // "module (source)" strings of the contributing definitions
	Priorities []int    // offending priorities, aligned with Origins where applicable
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(d.Kind.String())
	if d.Path != "" {
		b.WriteString(": ")
		b.WriteString(d.Path)
	}
	if d.Detail != "" {
		b.WriteString(": ")
		b.WriteString(d.Detail)
	}
	if len(d.Origins) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(d.Origins, ", "))
		b.WriteString("]")
	}
	return b.String()
}

// New creates an error-severity diagnostic.
func New(kind Kind, path, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Kind:     kind,
		Severity: SeverityError,
		Path:     path,
		Detail:   fmt.Sprintf(format, args...),
	}
}

// Diagnostics is a collection of diagnostics. The engine keeps resolving
// independent paths after a path-level error, so one run usually carries
// several of these.
type Diagnostics []*Diagnostic

// Error implements the error interface over the aggregate.
func (ds Diagnostics) Error() string {
	if len(ds) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(ds))
	for _, d := range ds {
		msgs = append(msgs, d.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if any diagnostic has error severity.
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ByKind returns the diagnostics of the given kind.
func (ds Diagnostics) ByKind(kind Kind) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// ForPath returns the diagnostics scoped to the given dotted path.
func (ds Diagnostics) ForPath(path string) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Path == path {
			out = append(out, d)
		}
	}
	return out
}

// Append adds diagnostics, skipping nils.
func (ds Diagnostics) Append(more ...*Diagnostic) Diagnostics {
	for _, d := range more {
		if d != nil {
			ds = append(ds, d)
		}
	}
	return ds
}

// Extend concatenates another collection.
func (ds Diagnostics) Extend(more Diagnostics) Diagnostics {
	return append(ds, more...)
}
