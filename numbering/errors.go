/*
errors.go - Centralized error types for the numbering engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages should wrap these errors with additional context.

ERROR CATEGORIES:
  1. Issuance errors - Missing source transactions, exhausted retry budgets
  2. Store errors - Constraint violations classified by which index fired

CONSTRAINT CLASSIFICATION:
  The store MUST map its two uniqueness violations onto the two distinct
  sentinels below. They trigger different recoveries in the issuer:

    ErrDuplicateSerial   -> lost the allocation race, retry the whole
                            derive-allocate-insert cycle
    ErrDuplicateDocument -> lost the idempotency race, re-read and return
                            the existing document

  A uniqueness violation is never success and never silently swallowed.

USAGE:
  Domain packages can wrap these errors:

    if errors.Is(err, numbering.ErrTransactionNotFound) {
        return &ReceiptError{...}
    }

SEE ALSO:
  - issuer.go: Uses these errors
  - store.go: Store implementations return these errors
*/
package numbering

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTransactionNotFound is returned when no source transaction exists
	// for the requested ID. Nothing to issue a document for.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrDocumentNotFound is returned by lookups for transactions that have
	// no issued document yet.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDuplicateSerial is returned by the store when an insert violates
	// the serial_number uniqueness constraint. Expected under concurrent
	// issuance for the same prefix; the issuer retries.
	ErrDuplicateSerial = errors.New("duplicate serial number")

	// ErrDuplicateDocument is returned by the store when an insert violates
	// the transaction_id uniqueness constraint. Another caller already
	// issued the document; the issuer re-reads and returns it.
	ErrDuplicateDocument = errors.New("document already exists for transaction")

	// ErrAllocationConflict is returned when the retry budget is exhausted
	// on serial number races. Transient; the caller may retry the whole
	// operation later.
	ErrAllocationConflict = errors.New("serial allocation conflict")

	// ErrStoreRequired is returned when an operation requires a specific
	// store capability.
	ErrStoreRequired = errors.New("operation requires extended store interface")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AllocationConflictError reports an exhausted allocation retry budget.
type AllocationConflictError struct {
	Prefix   string
	Attempts int
}

func (e *AllocationConflictError) Error() string {
	return fmt.Sprintf("serial allocation conflict: gave up on prefix %s after %d attempts",
		e.Prefix, e.Attempts)
}

func (e *AllocationConflictError) Unwrap() error {
	return ErrAllocationConflict
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAllocationConflict) ||
		errors.Is(err, ErrDuplicateSerial)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrDocumentNotFound)
}

// IsClientError returns true if the error is due to the caller's request
// rather than a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrDocumentNotFound) ||
		errors.Is(err, ErrDuplicateDocument)
}
