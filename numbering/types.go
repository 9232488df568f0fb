/*
Package numbering provides the document numbering and idempotent issuance engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for minting
  unique, human-readable serial numbers for financial documents derived
  from underlying transactions. Whether issuing payment receipts, invoices,
  or payroll statements, the same engine handles scope resolution, serial
  allocation, and idempotent issuance.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A decimal amount with a currency (e.g., 150.00 EUR)
  - Transaction: The immutable source record a document is issued against
  - Document: The issued artifact, a point-in-time snapshot
  - Transaction/Document/Owner IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Documents are created once and never updated or deleted
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Type Safety: Strong typing for IDs prevents mixing transaction/document IDs
  4. Snapshot Semantics: Document fields are copied at issuance and never
     track later changes to the source transaction

USAGE:
  issuer := numbering.NewIssuer(receipts.KindReceipt)
  doc, err := issuer.EnsureDocument(ctx, store, "pay-123", "admin-1")

SEE ALSO:
  - scope.go: Period scope resolution (prefix computation)
  - allocator.go: Serial number allocation
  - issuer.go: Idempotent issuance coordination
  - store.go: Persistence interfaces
*/
package numbering

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal amount with currency
// =============================================================================

type Money struct {
	Value    decimal.Decimal
	Currency string
}

func NewMoney(value float64, currency string) Money {
	return Money{Value: decimal.NewFromFloat(value), Currency: currency}
}

func NewMoneyFromString(value, currency string) Money {
	return Money{Value: MustParseDecimal(value), Currency: currency}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (m Money) Add(b Money) Money        { return Money{Value: m.Value.Add(b.Value), Currency: m.Currency} }
func (m Money) Sub(b Money) Money        { return Money{Value: m.Value.Sub(b.Value), Currency: m.Currency} }
func (m Money) Neg() Money               { return Money{Value: m.Value.Neg(), Currency: m.Currency} }
func (m Money) IsZero() bool             { return m.Value.IsZero() }
func (m Money) IsNegative() bool         { return m.Value.IsNegative() }
func (m Money) Equal(b Money) bool       { return m.Currency == b.Currency && m.Value.Equal(b.Value) }
func (m Money) GreaterThan(b Money) bool { return m.Value.GreaterThan(b.Value) }
func (m Money) String() string           { return m.Value.StringFixed(2) + " " + m.Currency }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TransactionID string
type DocumentID string
type OwnerID string

// DocumentKind identifies what kind of document is being issued.
// This is an interface so domain packages define their own concrete types.
// The numbering package has NO knowledge of specific document kinds.
//
// Domain packages implement this:
//
//   // In receipts/types.go
//   type Kind string
//   func (k Kind) KindCode() string { return string(k) }
//   func (k Kind) KindDomain() string { return "receipts" }
//   const KindReceipt Kind = "RCP"
//
type DocumentKind interface {
	// KindCode returns the short code used as the serial number prefix
	// component (e.g., "RCP", "INV"). Codes must be disjoint across kinds
	// because they partition the serial number space.
	KindCode() string

	// KindDomain returns which domain this document kind belongs to.
	KindDomain() string
}

// =============================================================================
// TRANSACTION - Immutable source record (owned by the billing collaborator)
// =============================================================================

// Transaction is the source record a document is issued against. The engine
// only ever reads it: once, at issuance time, to derive the period scope and
// to populate the document's snapshot fields.
type Transaction struct {
	ID          TransactionID
	OwnerID     OwnerID
	Amount      Money
	EffectiveAt time.Time
	Note        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// =============================================================================
// DOCUMENT - The issued artifact
// =============================================================================

// Document is a point-in-time snapshot minted for exactly one transaction.
// Invariants:
//   - At most one Document exists per TransactionID (unique constraint).
//   - SerialNumber is globally unique (unique constraint).
//   - Amount never changes after creation, even if the source transaction
//     is later adjusted.
type Document struct {
	ID            DocumentID
	TransactionID TransactionID
	Kind          DocumentKind
	SerialNumber  string
	Amount        Money
	IssuedBy      string // optional actor reference, empty when unattributed
	CreatedAt     time.Time
}

// =============================================================================
// DOCUMENT VIEW - Read-only join for rendering
// =============================================================================

// DocumentView joins a document with its owner's contact data. Purely a
// presentation concern; not part of the numbering engine's correctness
// surface.
type DocumentView struct {
	Document
	OwnerID    OwnerID
	OwnerName  string
	OwnerEmail string
}
