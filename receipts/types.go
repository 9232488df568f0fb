// Package receipts implements payment-receipt issuance.
// It uses the numbering engine with the receipt document kind and wraps it
// in a service the HTTP layer can call directly.
package receipts

import "github.com/warp/billing-engine/numbering"

// =============================================================================
// RECEIPT DOCUMENT KIND
// =============================================================================

// Kind is the concrete document kind for the receipts domain.
// Implements numbering.DocumentKind interface.
type Kind string

func (k Kind) KindCode() string   { return string(k) }
func (k Kind) KindDomain() string { return "receipts" }

// Compile-time check that Kind implements numbering.DocumentKind
var _ numbering.DocumentKind = Kind("")

// KindReceipt prefixes serials RCP-{YYYYMM}-{counter}.
const KindReceipt Kind = "RCP"

// Register the receipt kind with the numbering registry
func init() {
	numbering.RegisterKind(KindReceipt)
}

// DefaultSeriesJSON returns the canonical series definition for receipts,
// in the format factory.ParseSeries accepts. Used by the demo scenarios
// and as a seed for fresh databases.
func DefaultSeriesJSON() string {
	return `{
		"code": "RCP",
		"name": "Payment receipt",
		"domain": "receipts",
		"counter_width": 3
	}`
}
