package numbering_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/numbering"
	"github.com/warp/billing-engine/numbering/store"
)

func newMemoryWithSerials(t *testing.T, serials ...string) *store.Memory {
	t.Helper()
	mem := store.NewMemory()
	for i, serial := range serials {
		err := mem.InsertDocument(context.Background(), numbering.Document{
			ID:            numbering.DocumentID(fmt.Sprintf("doc-%d", i)),
			TransactionID: numbering.TransactionID(fmt.Sprintf("pay-%d", i)),
			Kind:          testKind,
			SerialNumber:  serial,
			Amount:        numbering.NewMoney(10, "EUR"),
			CreatedAt:     time.Now(),
		})
		require.NoError(t, err)
	}
	return mem
}

// =============================================================================
// ALLOCATION TESTS
// =============================================================================

func TestAllocateNext_EmptyPrefix_StartsAtOne(t *testing.T) {
	// GIVEN: No documents for the prefix
	// WHEN: Allocating
	// THEN: The first counter is 001

	mem := newMemoryWithSerials(t)

	serial, err := numbering.Allocator{}.AllocateNext(context.Background(), mem, "RCP-202501")
	require.NoError(t, err)
	assert.Equal(t, "RCP-202501-001", serial)
}

func TestAllocateNext_ProposesSuccessor(t *testing.T) {
	// GIVEN: Documents 001 and 002 issued within the prefix
	// WHEN: Allocating
	// THEN: The proposal is 003

	mem := newMemoryWithSerials(t, "RCP-202501-001", "RCP-202501-002")

	serial, err := numbering.Allocator{}.AllocateNext(context.Background(), mem, "RCP-202501")
	require.NoError(t, err)
	assert.Equal(t, "RCP-202501-003", serial)
}

func TestAllocateNext_OtherPrefixesInvisible(t *testing.T) {
	// GIVEN: Serials issued under other months and other kinds
	// WHEN: Allocating for RCP-202502
	// THEN: The counter starts at 1; foreign prefixes don't leak in

	mem := newMemoryWithSerials(t,
		"RCP-202501-001", "RCP-202501-002", "INV-202502-007")

	serial, err := numbering.Allocator{}.AllocateNext(context.Background(), mem, "RCP-202502")
	require.NoError(t, err)
	assert.Equal(t, "RCP-202502-001", serial)
}

func TestAllocateNext_GapsDoNotShrinkProposal(t *testing.T) {
	// GIVEN: A gap in the issued serials (a surrounding transaction aborted
	//        after allocation)
	// WHEN: Allocating
	// THEN: The proposal continues past the maximum, never refills the gap

	mem := newMemoryWithSerials(t, "RCP-202501-001", "RCP-202501-003")

	serial, err := numbering.Allocator{}.AllocateNext(context.Background(), mem, "RCP-202501")
	require.NoError(t, err)
	assert.Equal(t, "RCP-202501-004", serial)
}

func TestAllocateNext_WidensPastPaddingCapacity(t *testing.T) {
	// GIVEN: The prefix has reached counter 999
	// WHEN: Allocating
	// THEN: The counter widens to 1000 instead of wrapping

	mem := newMemoryWithSerials(t, "RCP-202501-999")

	serial, err := numbering.Allocator{}.AllocateNext(context.Background(), mem, "RCP-202501")
	require.NoError(t, err)
	assert.Equal(t, "RCP-202501-1000", serial)
}

func TestAllocateNext_MixedWidths_NumericMaxWins(t *testing.T) {
	// GIVEN: A prefix holding both padded and widened serials
	// WHEN: Allocating
	// THEN: 1000 > 999 numerically even though "999" > "1000"
	//       lexicographically

	mem := newMemoryWithSerials(t, "RCP-202501-999", "RCP-202501-1000")

	serial, err := numbering.Allocator{}.AllocateNext(context.Background(), mem, "RCP-202501")
	require.NoError(t, err)
	assert.Equal(t, "RCP-202501-1001", serial)
}

func TestAllocateNext_CustomWidth(t *testing.T) {
	// A series configured with width 5 pads accordingly.

	mem := newMemoryWithSerials(t)

	serial, err := numbering.Allocator{Width: 5}.AllocateNext(context.Background(), mem, "PAY-202501")
	require.NoError(t, err)
	assert.Equal(t, "PAY-202501-00001", serial)
}
