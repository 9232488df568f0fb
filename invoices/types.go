/*
Package invoices implements invoice issuance over the numbering engine.

PURPOSE:
  Demonstrates that the engine generalizes beyond receipts: the invoice
  kind gets its own serial prefix (INV-{YYYYMM}) and therefore its own
  numbering space, while sharing the same documents table and the same
  uniqueness machinery.

KEY DIFFERENCES FROM RECEIPTS:
  None in mechanism - that is the point. Only the kind code differs, which
  partitions the serial space. Payroll statements or credit notes would be
  added the same way, or registered at runtime through the series factory.

SEE ALSO:
  - receipts/: The receipt domain package
  - factory/series.go: Runtime-registered series
*/
package invoices

import "github.com/warp/billing-engine/numbering"

// =============================================================================
// INVOICE DOCUMENT KIND
// =============================================================================

// Kind is the concrete document kind for the invoices domain.
// Implements numbering.DocumentKind interface.
type Kind string

func (k Kind) KindCode() string   { return string(k) }
func (k Kind) KindDomain() string { return "invoices" }

// Compile-time check that Kind implements numbering.DocumentKind
var _ numbering.DocumentKind = Kind("")

// KindInvoice prefixes serials INV-{YYYYMM}-{counter}.
const KindInvoice Kind = "INV"

// Register the invoice kind with the numbering registry
func init() {
	numbering.RegisterKind(KindInvoice)
}

// DefaultSeriesJSON returns the canonical series definition for invoices.
func DefaultSeriesJSON() string {
	return `{
		"code": "INV",
		"name": "Invoice",
		"domain": "invoices",
		"counter_width": 3
	}`
}
