/*
issuer.go - Idempotent issuance coordination

PURPOSE:
  Orchestrates document issuance: fast-path lookup of an existing document,
  source transaction read, scope derivation, serial allocation, and the
  insert with constraint-classified recovery.

STATE MACHINE (per transaction):
  NoDocument -> [EnsureDocument] -> Issued

  Issued is terminal and idempotent-safe: repeated calls are no-ops
  returning the same document.

RACE RECOVERY:
  The insert can fail two distinct ways, and they require different
  recoveries - never a single code path for both:

    serial_number taken  -> lost the allocation race to another prefix
                            sibling; re-derive, re-allocate, re-insert,
                            up to the attempt budget
    transaction_id taken -> lost the idempotency race for this very
                            transaction; re-read the winner's document
                            and return it

TRANSACTION DISCIPLINE:
  All reads and the eventual write run against the store handle the caller
  passes in. The issuer never commits or rolls back; request handlers wrap
  EnsureDocument in TxStore.WithTx so the existence check and the insert
  are not separated by an interleaving commit for the same transaction.
  The unique constraint on transaction_id is the final backstop even though
  the fast-path check is advisory.

SEE ALSO:
  - allocator.go: Serial proposal
  - store.go: Store contract, constraint classification
  - errors.go: Error taxonomy
*/
package numbering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultAttempts is the allocation retry budget. Three attempts are
// sufficient under expected contention: issuance is low-frequency and
// human-triggered.
const DefaultAttempts = 3

// =============================================================================
// ISSUER - Idempotent issuance coordinator
// =============================================================================

// Issuer coordinates idempotent document issuance for one document kind.
// It holds no mutable state and is safe for concurrent use.
type Issuer struct {
	kind      DocumentKind
	allocator Allocator
	attempts  int
	now       func() time.Time
	newID     func() DocumentID
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithAttempts overrides the allocation retry budget.
func WithAttempts(n int) IssuerOption {
	return func(i *Issuer) { i.attempts = n }
}

// WithCounterWidth overrides the serial counter zero-padding width.
func WithCounterWidth(w int) IssuerOption {
	return func(i *Issuer) { i.allocator.Width = w }
}

// WithClock overrides the issuance timestamp source. For tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates an issuer for the given document kind.
func NewIssuer(kind DocumentKind, opts ...IssuerOption) *Issuer {
	i := &Issuer{
		kind:     kind,
		attempts: DefaultAttempts,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() DocumentID { return DocumentID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Kind returns the document kind this issuer mints.
func (i *Issuer) Kind() DocumentKind { return i.kind }

// EnsureDocument returns the document for a transaction, issuing it first if
// none exists. Guarantees:
//   - If a document already exists, it is returned unchanged; no allocation
//     or write occurs.
//   - If the transaction does not exist, ErrTransactionNotFound is returned
//     and nothing is created.
//   - Otherwise a new document is inserted with a freshly allocated serial,
//     snapshotting the transaction's amount at issuance time.
//
// issuedBy is an optional actor reference; empty means unattributed.
func (i *Issuer) EnsureDocument(ctx context.Context, store Store, id TransactionID, issuedBy string) (*Document, error) {
	// Fast path: already issued. Advisory only - the transaction_id
	// constraint is the real guarantee.
	existing, err := store.GetDocumentByTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing document: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	txn, err := store.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
	}
	if txn == nil {
		return nil, ErrTransactionNotFound
	}

	scope := ResolveScope(i.kind, txn.EffectiveAt)
	prefix := scope.Prefix()

	for attempt := 1; attempt <= i.attempts; attempt++ {
		serial, err := i.allocator.AllocateNext(ctx, store, prefix)
		if err != nil {
			return nil, err
		}

		doc := Document{
			ID:            i.newID(),
			TransactionID: txn.ID,
			Kind:          i.kind,
			SerialNumber:  serial,
			Amount:        txn.Amount,
			IssuedBy:      issuedBy,
			CreatedAt:     i.now(),
		}

		err = store.InsertDocument(ctx, doc)
		switch {
		case err == nil:
			return &doc, nil

		case errors.Is(err, ErrDuplicateDocument):
			// Lost the idempotency race: another caller issued the document
			// between our fast-path check and the insert. Return theirs.
			winner, readErr := store.GetDocumentByTransaction(ctx, id)
			if readErr != nil {
				return nil, fmt.Errorf("failed to re-read document after idempotency race: %w", readErr)
			}
			if winner == nil {
				// Insert said a document exists but the read found none.
				// Only possible if the surrounding store transaction saw a
				// conflicting uncommitted row; surface the original error.
				return nil, err
			}
			return winner, nil

		case errors.Is(err, ErrDuplicateSerial):
			// Lost the allocation race: a concurrent issuance for the same
			// prefix consumed our proposed counter. Re-read and re-propose.
			continue

		default:
			return nil, err
		}
	}

	return nil, &AllocationConflictError{Prefix: prefix, Attempts: i.attempts}
}
