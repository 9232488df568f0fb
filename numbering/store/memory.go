// Package store provides numbering store implementations.
package store

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/warp/billing-engine/numbering"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.Mutex
	transactions map[numbering.TransactionID]numbering.Transaction
	documents    map[numbering.TransactionID]numbering.Document
	serials      map[string]numbering.TransactionID
	owners       map[numbering.OwnerID]Owner
}

// Owner is the minimal owner record the memory store keeps for view joins.
type Owner struct {
	ID    numbering.OwnerID
	Name  string
	Email string
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[numbering.TransactionID]numbering.Transaction),
		documents:    make(map[numbering.TransactionID]numbering.Document),
		serials:      make(map[string]numbering.TransactionID),
		owners:       make(map[numbering.OwnerID]Owner),
	}
}

// PutTransaction stores or replaces a source transaction. Stands in for the
// billing collaborator that owns transaction records.
func (m *Memory) PutTransaction(tx numbering.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.ID] = tx
}

// PutOwner stores or replaces an owner record.
func (m *Memory) PutOwner(o Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[o.ID] = o
}

// GetTransaction implements numbering.TransactionSource.
func (m *Memory) GetTransaction(_ context.Context, id numbering.TransactionID) (*numbering.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	return &tx, nil
}

// GetDocumentByTransaction implements numbering.DocumentStore.
func (m *Memory) GetDocumentByTransaction(_ context.Context, id numbering.TransactionID) (*numbering.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

// MaxSerialCounter implements numbering.DocumentStore. Compares the trailing
// counter numerically so widened serials (1000+) still sort correctly.
func (m *Memory) MaxSerialCounter(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	max := 0
	for serial := range m.serials {
		counter, ok := counterWithin(serial, prefix)
		if ok && counter > max {
			max = counter
		}
	}
	return max, nil
}

// InsertDocument implements numbering.DocumentStore. Enforces both
// uniqueness constraints, classified the same way the SQLite store
// classifies its index violations.
func (m *Memory) InsertDocument(_ context.Context, doc numbering.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.documents[doc.TransactionID]; exists {
		return numbering.ErrDuplicateDocument
	}
	if _, exists := m.serials[doc.SerialNumber]; exists {
		return numbering.ErrDuplicateSerial
	}

	m.documents[doc.TransactionID] = doc
	m.serials[doc.SerialNumber] = doc.TransactionID
	return nil
}

// GetDocumentView implements numbering.ViewStore.
func (m *Memory) GetDocumentView(_ context.Context, id numbering.TransactionID, ownerFilter numbering.OwnerID) (*numbering.DocumentView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.documents[id]
	if !ok {
		return nil, nil
	}
	tx, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	if ownerFilter != "" && tx.OwnerID != ownerFilter {
		return nil, nil
	}

	view := &numbering.DocumentView{Document: doc, OwnerID: tx.OwnerID}
	if owner, ok := m.owners[tx.OwnerID]; ok {
		view.OwnerName = owner.Name
		view.OwnerEmail = owner.Email
	}
	return view, nil
}

// WithTx implements numbering.TxStore. The memory store has no real
// transactions; fn runs against the store itself and a returned error
// simply propagates. Sufficient for tests and dev.
func (m *Memory) WithTx(_ context.Context, fn func(numbering.Store) error) error {
	return fn(m)
}

// Documents returns all issued documents. For tests.
func (m *Memory) Documents() []numbering.Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]numbering.Document, 0, len(m.documents))
	for _, doc := range m.documents {
		result = append(result, doc)
	}
	return result
}

// counterWithin parses the trailing counter of a serial belonging to prefix.
// Returns false for serials outside the prefix or with a malformed counter.
func counterWithin(serial, prefix string) (int, bool) {
	rest, ok := strings.CutPrefix(serial, prefix+"-")
	if !ok {
		return 0, false
	}
	counter, err := strconv.Atoi(rest)
	if err != nil || counter <= 0 {
		return 0, false
	}
	return counter, true
}
