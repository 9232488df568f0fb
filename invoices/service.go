package invoices

import (
	"context"
	"fmt"

	"github.com/warp/billing-engine/numbering"
)

// Service issues and looks up invoices. Same shape as the receipt service;
// only the document kind differs.
type Service struct {
	store  numbering.TxStore
	views  numbering.ViewStore
	issuer *numbering.Issuer
}

// NewService creates an invoice service over the given store.
func NewService(store numbering.TxStore, views numbering.ViewStore) *Service {
	return &Service{
		store:  store,
		views:  views,
		issuer: numbering.NewIssuer(KindInvoice),
	}
}

// Issue ensures an invoice exists for a payment and returns it. Idempotent.
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

// Get returns the invoice for a payment joined with member contact data.
func (s *Service) Get(ctx context.Context, paymentID numbering.TransactionID, ownerFilter numbering.OwnerID) (*numbering.DocumentView, error) {
	view, err := s.views.GetDocumentView(ctx, paymentID, ownerFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice for payment %s: %w", paymentID, err)
	}
	if view == nil {
		return nil, numbering.ErrDocumentNotFound
	}
	return view, nil
}
