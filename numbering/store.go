/*
store.go - Persistence interfaces for documents and source transactions

PURPOSE:
  Defines the interface between the issuance logic and the database.
  The store handles persistence while maintaining append-only semantics
  for documents. Different implementations can use SQLite, PostgreSQL,
  or in-memory storage.

KEY INTERFACES:
  DocumentStore:     Document persistence (insert, lookup, max serial)
  TransactionSource: Read access to the billing collaborator's transactions
  Store:             Both of the above, the issuer's working surface
  TxStore:           Transactional view (existence check + insert atomically)
  ViewStore:         Read-only document/owner join for rendering

APPEND-ONLY CONTRACT:
  Documents are created exactly once and never updated or deleted:
  - InsertDocument(): The ONLY write operation
  - NO Update() or Delete() methods exist
  Corrections are issued as new documents against new transactions by the
  billing collaborator; that policy is not owned by this engine.

UNIQUENESS AS THE CONCURRENCY MECHANISM:
  The store's two uniqueness constraints - on transaction_id and on
  serial_number - are the sole concurrency-correctness mechanism. The
  engine holds no in-memory counter state and takes no in-process locks
  for allocation, because multiple processes may share one store.
  InsertDocument MUST classify a violation into ErrDuplicateDocument or
  ErrDuplicateSerial depending on which constraint fired.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - numbering/store/memory.go: In-memory for testing

SEE ALSO:
  - issuer.go: Higher-level issuance using Store
  - allocator.go: Uses MaxSerialCounter
*/
package numbering

import "context"

// =============================================================================
// DOCUMENT STORE - Document persistence (append-only)
// =============================================================================

// DocumentStore handles persistence of issued documents.
// IMPORTANT: DocumentStore is APPEND-ONLY. No Update, No Delete. Ever.
type DocumentStore interface {
	// GetDocumentByTransaction returns the document issued for a transaction,
	// or (nil, nil) when none exists yet.
	GetDocumentByTransaction(ctx context.Context, id TransactionID) (*Document, error)

	// MaxSerialCounter returns the highest counter issued within a prefix,
	// comparing the trailing numeric component numerically. Returns 0 when
	// no document exists for the prefix.
	MaxSerialCounter(ctx context.Context, prefix string) (int, error)

	// InsertDocument persists a new document. This is the ONLY write
	// operation. Returns ErrDuplicateDocument if a document already exists
	// for the transaction, ErrDuplicateSerial if the serial number is taken.
	InsertDocument(ctx context.Context, doc Document) error
}

// =============================================================================
// TRANSACTION SOURCE - The billing collaborator's records
// =============================================================================

// TransactionSource provides read access to source transactions. The engine
// reads a transaction exactly once per issuance, to derive the scope and to
// populate the document's snapshot fields.
type TransactionSource interface {
	// GetTransaction returns the transaction, or (nil, nil) when it does
	// not exist.
	GetTransaction(ctx context.Context, id TransactionID) (*Transaction, error)
}

// Store is the issuer's working surface: documents plus their sources.
type Store interface {
	DocumentStore
	TransactionSource
}

// =============================================================================
// TRANSACTIONAL STORE - One logical transaction around check + insert
// =============================================================================

// TxStore wraps Store with transaction support. Request handlers wrap
// EnsureDocument in WithTx so the existence check and the insert share one
// store transaction; the issuer itself never commits or rolls back.
type TxStore interface {
	Store

	// WithTx executes fn within a store transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// VIEW STORE - Rendering joins
// =============================================================================

// ViewStore provides the read-only document/owner join used for rendering.
// Purely presentational; not part of the engine's correctness surface.
type ViewStore interface {
	// GetDocumentView returns the document for a transaction joined with
	// its owner's contact data. When ownerFilter is non-empty, documents
	// belonging to a different owner are treated as not found.
	// Returns (nil, nil) when no document exists.
	GetDocumentView(ctx context.Context, id TransactionID, ownerFilter OwnerID) (*DocumentView, error)
}
