/*
service.go - Receipt issuance service

PURPOSE:
  Domain-level wrapper around the numbering engine for payment receipts.
  Owns the transaction discipline the engine requires: Issue wraps
  EnsureDocument in one store transaction so the existence check and the
  insert cannot be separated by an interleaving commit for the same payment.

GUARANTEES (inherited from the engine):
  - At most one receipt per payment, ever
  - Re-issuing returns the existing receipt unchanged
  - Serials are unique globally and densely increasing per calendar month
  - The receipt's amount is a snapshot; later payment adjustments don't
    touch it

SEE ALSO:
  - numbering/issuer.go: The coordination logic
  - invoices/service.go: Same shape for the invoice kind
*/
package receipts

import (
	"context"
	"fmt"

	"github.com/warp/billing-engine/numbering"
)

// Service issues and looks up payment receipts.
type Service struct {
	store  numbering.TxStore
	views  numbering.ViewStore
	issuer *numbering.Issuer
}

// NewService creates a receipt service over the given store. The store must
// provide both the transactional numbering surface and the view join.
func NewService(store numbering.TxStore, views numbering.ViewStore) *Service {
	return &Service{
		store:  store,
		views:  views,
		issuer: numbering.NewIssuer(KindReceipt),
	}
}

// Issue ensures a receipt exists for a payment and returns it. Idempotent:
// repeated calls for the same payment return the same receipt. issuedBy is
// an optional actor reference.
func (s *Service) Issue(ctx context.Context, paymentID numbering.TransactionID, issuedBy string) (*numbering.Document, error) {
	var doc *numbering.Document
	err := s.store.WithTx(ctx, func(tx numbering.Store) error {
		var issueErr error
		doc, issueErr = s.issuer.EnsureDocument(ctx, tx, paymentID, issuedBy)
		return issueErr
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Get returns the receipt for a payment joined with the owning member's
// contact data, for rendering. When ownerFilter is non-empty, receipts
// belonging to a different member are reported as not found.
func (s *Service) Get(ctx context.Context, paymentID numbering.TransactionID, ownerFilter numbering.OwnerID) (*numbering.DocumentView, error) {
	view, err := s.views.GetDocumentView(ctx, paymentID, ownerFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt for payment %s: %w", paymentID, err)
	}
	if view == nil {
		return nil, numbering.ErrDocumentNotFound
	}
	return view, nil
}
