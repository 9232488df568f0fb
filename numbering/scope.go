package numbering

import (
	"fmt"
	"time"
)

// =============================================================================
// SCOPE - Per-period, per-kind numbering namespace
// =============================================================================

// Scope is the namespace within which serial numbers are unique and densely
// increasing. It is derived, never persisted: a pure function of the document
// kind and the source transaction's effective date.
type Scope struct {
	Kind  DocumentKind
	Year  int
	Month time.Month
}

// ResolveScope computes the period scope for a document kind and effective
// date. Pure and total; invalid dates are rejected upstream by whoever
// validated the source transaction.
func ResolveScope(kind DocumentKind, effectiveAt time.Time) Scope {
	return Scope{Kind: kind, Year: effectiveAt.Year(), Month: effectiveAt.Month()}
}

// Prefix returns the textual prefix used for serial number formatting,
// e.g. "RCP-202501". Different kinds use disjoint prefixes and therefore
// disjoint numbering spaces even when they share one documents table.
func (s Scope) Prefix() string {
	return fmt.Sprintf("%s-%04d%02d", s.Kind.KindCode(), s.Year, int(s.Month))
}

func (s Scope) String() string { return s.Prefix() }
