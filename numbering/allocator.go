/*
allocator.go - Serial number allocation within a period scope

PURPOSE:
  Determines the next serial number for a prefix by reading the current
  maximum issued counter and proposing successor+1. This is read-then-propose,
  NOT an atomic increment: under concurrent issuance for the same prefix two
  allocators can legitimately propose the same counter. The allocator does
  not resolve that itself - it is cheap to re-invoke, so the issuer retries
  the whole read-propose-insert cycle when the insert loses the race.

COUNTER WIDTH:
  Counters are zero-padded to a fixed width (3 by convention: 001..999).
  Past the width's capacity the format widens naturally (1000, 1001, ...)
  rather than wrapping. This is safe because MaxSerialCounter compares the
  trailing counter numerically, not lexicographically, so mixed-width
  serials within one prefix still yield the true maximum.

SEE ALSO:
  - scope.go: Prefix computation
  - issuer.go: Retry loop around allocation
*/
package numbering

import (
	"context"
	"fmt"
)

// DefaultCounterWidth is the zero-padding width for serial counters.
const DefaultCounterWidth = 3

// =============================================================================
// ALLOCATOR - Read-then-propose serial allocation
// =============================================================================

// Allocator proposes serial numbers for a prefix. It holds no state between
// calls; the store's maximum issued counter is the only source of truth.
type Allocator struct {
	// Width is the zero-padding width for the counter component.
	// Zero means DefaultCounterWidth.
	Width int
}

// AllocateNext proposes the next serial number for a prefix, executed against
// the caller's store handle (which may be a transactional view). The caller
// is responsible for attempting the insert and detecting a uniqueness
// violation; a proposal is not a reservation.
func (a Allocator) AllocateNext(ctx context.Context, store DocumentStore, prefix string) (string, error) {
	max, err := store.MaxSerialCounter(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to read max serial for %s: %w", prefix, err)
	}
	return a.format(prefix, max+1), nil
}

func (a Allocator) format(prefix string, counter int) string {
	width := a.Width
	if width <= 0 {
		width = DefaultCounterWidth
	}
	return fmt.Sprintf("%s-%0*d", prefix, width, counter)
}
