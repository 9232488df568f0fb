package numbering_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/numbering"
	"github.com/warp/billing-engine/numbering/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newIssuerFixture(t *testing.T) (*numbering.Issuer, *store.Memory) {
	t.Helper()
	return numbering.NewIssuer(testKind), store.NewMemory()
}

func putPayment(mem *store.Memory, id string, amount float64, at time.Time) {
	mem.PutTransaction(numbering.Transaction{
		ID:          numbering.TransactionID(id),
		OwnerID:     "mem-1",
		Amount:      numbering.NewMoney(amount, "EUR"),
		EffectiveAt: at,
	})
}

// raceStore wraps Memory to inject insert failures, simulating lost races
// against concurrent issuers.
type raceStore struct {
	*store.Memory
	insertErrs []error // consumed front-to-back; nil entries delegate
	hideFirst  bool    // make the fast-path existence check miss once
	hid        bool
	inserts    int
}

func (r *raceStore) InsertDocument(ctx context.Context, doc numbering.Document) error {
	r.inserts++
	if len(r.insertErrs) > 0 {
		err := r.insertErrs[0]
		r.insertErrs = r.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	return r.Memory.InsertDocument(ctx, doc)
}

func (r *raceStore) GetDocumentByTransaction(ctx context.Context, id numbering.TransactionID) (*numbering.Document, error) {
	if r.hideFirst && !r.hid {
		r.hid = true
		return nil, nil
	}
	return r.Memory.GetDocumentByTransaction(ctx, id)
}

// =============================================================================
// IDEMPOTENCY TESTS
// =============================================================================

func TestEnsureDocument_FirstCall_IssuesDocument(t *testing.T) {
	// GIVEN: A payment with no document
	// WHEN: Ensuring a document
	// THEN: A document is issued with the first serial of its scope

	issuer, mem := newIssuerFixture(t)
	putPayment(mem, "pay-1", 150.00, day(2025, time.January, 15))

	doc, err := issuer.EnsureDocument(context.Background(), mem, "pay-1", "admin-1")
	require.NoError(t, err)

	assert.Equal(t, "RCP-202501-001", doc.SerialNumber)
	assert.Equal(t, numbering.TransactionID("pay-1"), doc.TransactionID)
	assert.Equal(t, "admin-1", doc.IssuedBy)
	assert.True(t, doc.Amount.Equal(numbering.NewMoney(150.00, "EUR")))
}

func TestEnsureDocument_SecondCall_ReturnsSameDocument(t *testing.T) {
	// GIVEN: A document already issued for the payment
	// WHEN: Ensuring again
	// THEN: The identical document comes back; nothing new is written

	issuer, mem := newIssuerFixture(t)
	putPayment(mem, "pay-1", 150.00, day(2025, time.January, 15))

	first, err := issuer.EnsureDocument(context.Background(), mem, "pay-1", "admin-1")
	require.NoError(t, err)

	second, err := issuer.EnsureDocument(context.Background(), mem, "pay-1", "someone-else")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.SerialNumber, second.SerialNumber)
	assert.Equal(t, first.IssuedBy, second.IssuedBy, "existing document returned unchanged")
	assert.Len(t, mem.Documents(), 1)
}

func TestEnsureDocument_MissingTransaction_NotFound(t *testing.T) {
	// GIVEN: No payment with the requested ID
	// WHEN: Ensuring a document
	// THEN: ErrTransactionNotFound; nothing is created

	issuer, mem := newIssuerFixture(t)

	doc, err := issuer.EnsureDocument(context.Background(), mem, "pay-missing", "")
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, numbering.ErrTransactionNotFound)
	assert.Empty(t, mem.Documents())
}

// =============================================================================
// SERIAL SEQUENCE TESTS
// =============================================================================

func TestEnsureDocument_SerializedIssuance_DenseCounters(t *testing.T) {
	// GIVEN: Payments issued one after another within one month
	// WHEN: Ensuring documents in order
	// THEN: The k-th issuance receives counter k

	issuer, mem := newIssuerFixture(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("pay-%d", i)
		putPayment(mem, id, 10.00, day(2025, time.January, i))

		doc, err := issuer.EnsureDocument(ctx, mem, numbering.TransactionID(id), "")
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("RCP-202501-%03d", i), doc.SerialNumber)
	}
}

func TestEnsureDocument_NewMonth_CounterResets(t *testing.T) {
	// GIVEN: Two January documents issued
	// WHEN: Ensuring a document for a February payment
	// THEN: The February counter starts over at 001

	issuer, mem := newIssuerFixture(t)
	ctx := context.Background()

	putPayment(mem, "pay-jan-1", 150.00, day(2025, time.January, 15))
	putPayment(mem, "pay-jan-2", 75.00, day(2025, time.January, 20))
	putPayment(mem, "pay-feb-1", 99.00, day(2025, time.February, 1))

	d1, err := issuer.EnsureDocument(ctx, mem, "pay-jan-1", "")
	require.NoError(t, err)
	d2, err := issuer.EnsureDocument(ctx, mem, "pay-jan-2", "")
	require.NoError(t, err)
	d3, err := issuer.EnsureDocument(ctx, mem, "pay-feb-1", "")
	require.NoError(t, err)

	assert.Equal(t, "RCP-202501-001", d1.SerialNumber)
	assert.Equal(t, "RCP-202501-002", d2.SerialNumber)
	assert.Equal(t, "RCP-202502-001", d3.SerialNumber)
}

// =============================================================================
// SNAPSHOT SEMANTICS
// =============================================================================

func TestEnsureDocument_AmountIsSnapshot(t *testing.T) {
	// GIVEN: A document issued for a payment
	// WHEN: The payment's amount is adjusted afterwards
	// THEN: The document's stored amount does not change

	issuer, mem := newIssuerFixture(t)
	ctx := context.Background()

	putPayment(mem, "pay-1", 150.00, day(2025, time.January, 15))
	doc, err := issuer.EnsureDocument(ctx, mem, "pay-1", "")
	require.NoError(t, err)

	putPayment(mem, "pay-1", 999.99, day(2025, time.January, 15))

	again, err := issuer.EnsureDocument(ctx, mem, "pay-1", "")
	require.NoError(t, err)
	assert.True(t, again.Amount.Equal(numbering.NewMoney(150.00, "EUR")),
		"issued amount must not track source adjustments")
	assert.Equal(t, doc.SerialNumber, again.SerialNumber)
}

// =============================================================================
// RACE RECOVERY TESTS
// =============================================================================

func TestEnsureDocument_SerialRace_RetriesAndSucceeds(t *testing.T) {
	// GIVEN: The first two inserts lose the allocation race
	// WHEN: Ensuring a document
	// THEN: The third attempt inside the default budget succeeds

	issuer, mem := newIssuerFixture(t)
	putPayment(mem, "pay-1", 150.00, day(2025, time.January, 15))

	rs := &raceStore{
		Memory:     mem,
		insertErrs: []error{numbering.ErrDuplicateSerial, numbering.ErrDuplicateSerial, nil},
	}

	doc, err := issuer.EnsureDocument(context.Background(), rs, "pay-1", "")
	require.NoError(t, err)
	assert.Equal(t, 3, rs.inserts)
	assert.Equal(t, "RCP-202501-001", doc.SerialNumber)
}

func TestEnsureDocument_SerialRace_BudgetExhausted_Conflict(t *testing.T) {
	// GIVEN: Every insert loses the allocation race
	// WHEN: Ensuring a document
	// THEN: After 3 attempts the issuer surfaces an allocation conflict

	issuer, mem := newIssuerFixture(t)
	putPayment(mem, "pay-1", 150.00, day(2025, time.January, 15))

	rs := &raceStore{
		Memory: mem,
		insertErrs: []error{
			numbering.ErrDuplicateSerial,
			numbering.ErrDuplicateSerial,
			numbering.ErrDuplicateSerial,
		},
	}

	doc, err := issuer.EnsureDocument(context.Background(), rs, "pay-1", "")
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, numbering.ErrAllocationConflict)

	var conflict *numbering.AllocationConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "RCP-202501", conflict.Prefix)
	assert.Equal(t, 3, conflict.Attempts)
	assert.Equal(t, 3, rs.inserts, "budget is 3 attempts, no more")
}

func TestEnsureDocument_IdempotencyRace_ReturnsWinner(t *testing.T) {
	// GIVEN: Another caller issues the document between our fast-path check
	//        and our insert
	// WHEN: Our insert hits the transaction_id constraint
	// THEN: We re-read and return the winner's document - no retry loop,
	//       no duplicate

	issuer, mem := newIssuerFixture(t)
	ctx := context.Background()
	putPayment(mem, "pay-1", 150.00, day(2025, time.January, 15))

	// The winner's document is already in the store; hideFirst makes our
	// fast-path check miss it, so we proceed to insert and collide.
	winner, err := issuer.EnsureDocument(ctx, mem, "pay-1", "winner")
	require.NoError(t, err)

	rs := &raceStore{Memory: mem, hideFirst: true}

	doc, err := issuer.EnsureDocument(ctx, rs, "pay-1", "loser")
	require.NoError(t, err)
	assert.Equal(t, winner.ID, doc.ID)
	assert.Equal(t, winner.SerialNumber, doc.SerialNumber)
	assert.Equal(t, "winner", doc.IssuedBy)
	assert.Len(t, mem.Documents(), 1)
}

func TestEnsureDocument_StoreError_PropagatedUnmodified(t *testing.T) {
	// Errors other than the two known constraint shapes pass through
	// without retries.

	issuer, mem := newIssuerFixture(t)
	putPayment(mem, "pay-1", 150.00, day(2025, time.January, 15))

	boom := errors.New("disk on fire")
	rs := &raceStore{Memory: mem, insertErrs: []error{boom}}

	_, err := issuer.EnsureDocument(context.Background(), rs, "pay-1", "")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, rs.inserts)
}
