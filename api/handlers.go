/*
handlers.go - HTTP API handlers for the billing document service

PURPOSE:
  Exposes the issuance engine and its surrounding admin surface via REST.
  Handles HTTP request/response, JSON serialization, and delegates to the
  domain services.

ENDPOINTS:
  Members:
    GET    /api/members                  List all members
    POST   /api/members                  Create member
    GET    /api/members/{id}             Get member details

  Payments:
    GET    /api/payments                 List payments
    POST   /api/payments                 Record payment
    GET    /api/payments/{id}            Get payment
    PUT    /api/payments/{id}            Adjust payment amount/note
    POST   /api/payments/{id}/receipt    Ensure receipt (idempotent)
    GET    /api/payments/{id}/receipt    Receipt with owner context
    POST   /api/payments/{id}/invoice    Ensure invoice (idempotent)

  Documents:
    GET    /api/documents                List issued documents

  Series:
    GET    /api/series                   List registered series
    POST   /api/series                   Register series from JSON

  Scenarios:
    GET    /api/scenarios                List demo scenarios
    POST   /api/scenarios/load           Load a demo scenario
    POST   /api/scenarios/reset          Reset database (dev only)

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access
  - Receipts/Invoices: Issuance services
  - SeriesFactory: JSON to series conversion

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Missing payment/member/document
  - 409: Allocation conflict (retry budget exhausted)
  - 500: Internal errors

TRANSACTION DISCIPLINE:
  The ensure endpoints delegate to services that wrap EnsureDocument in one
  store transaction, so the existence check and the insert are atomic with
  respect to concurrent calls for the same payment.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  The member_id query filter on receipt reads is scoping, not auth.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/factory"
	"github.com/warp/billing-engine/invoices"
	"github.com/warp/billing-engine/numbering"
	"github.com/warp/billing-engine/receipts"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlite.Store
	Receipts      *receipts.Service
	Invoices      *invoices.Service
	SeriesFactory *factory.SeriesFactory

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:         store,
		Receipts:      receipts.NewService(store, store),
		Invoices:      invoices.NewService(store, store),
		SeriesFactory: factory.NewSeriesFactory(),
	}
}

// LoadSeries registers all stored series definitions with the kind registry.
// Call on startup so runtime-defined series survive restarts.
func (h *Handler) LoadSeries(ctx context.Context) error {
	records, err := h.Store.ListSeries(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		_, err := h.SeriesFactory.FromDefinition(factory.SeriesJSON{
			Code:         r.Code,
			Name:         r.Name,
			Domain:       r.Domain,
			CounterWidth: r.CounterWidth,
		})
		if err != nil {
			continue // Skip invalid series
		}
	}
	return nil
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListMembers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]MemberDTO, 0, len(members))
	for _, m := range members {
		dtos = append(dtos, toMemberDTO(m))
	}
	respondJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("name is required"))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	m := sqlite.Member{ID: req.ID, Name: req.Name, Email: req.Email}
	if err := h.Store.SaveMember(r.Context(), m); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	saved, err := h.Store.GetMember(r.Context(), req.ID)
	if err != nil || saved == nil {
		respondError(w, http.StatusInternalServerError, fmt.Errorf("failed to reload member"))
		return
	}
	respondJSON(w, http.StatusCreated, toMemberDTO(*saved))
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := h.Store.GetMember(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if m == nil {
		respondError(w, http.StatusNotFound, fmt.Errorf("member %s not found", id))
		return
	}
	respondJSON(w, http.StatusOK, toMemberDTO(*m))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Store.ListPayments(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]PaymentDTO, 0, len(payments))
	for _, p := range payments {
		dtos = append(dtos, toPaymentDTO(p))
	}
	respondJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	amount, effectiveAt, err := validatePaymentInput(req.MemberID, req.Amount, req.Currency, req.EffectiveDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	member, err := h.Store.GetMember(r.Context(), req.MemberID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if member == nil {
		respondError(w, http.StatusNotFound, fmt.Errorf("member %s not found", req.MemberID))
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	payment := numbering.Transaction{
		ID:          numbering.TransactionID(req.ID),
		OwnerID:     numbering.OwnerID(req.MemberID),
		Amount:      numbering.Money{Value: amount, Currency: req.Currency},
		EffectiveAt: effectiveAt,
		Note:        req.Note,
	}
	if err := h.Store.SavePayment(r.Context(), payment); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	saved, err := h.Store.GetTransaction(r.Context(), payment.ID)
	if err != nil || saved == nil {
		respondError(w, http.StatusInternalServerError, fmt.Errorf("failed to reload payment"))
		return
	}
	respondJSON(w, http.StatusCreated, toPaymentDTO(*saved))
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := numbering.TransactionID(chi.URLParam(r, "id"))

	p, err := h.Store.GetTransaction(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, fmt.Errorf("payment %s not found", id))
		return
	}
	respondJSON(w, http.StatusOK, toPaymentDTO(*p))
}

func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id := numbering.TransactionID(chi.URLParam(r, "id"))

	var req UpdatePaymentRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid amount %q", req.Amount))
		return
	}
	if req.Currency == "" {
		respondError(w, http.StatusBadRequest, fmt.Errorf("currency is required"))
		return
	}

	err = h.Store.UpdatePaymentAmount(r.Context(), id,
		numbering.Money{Value: amount, Currency: req.Currency}, req.Note)
	if errors.Is(err, numbering.ErrTransactionNotFound) {
		respondError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	updated, err := h.Store.GetTransaction(r.Context(), id)
	if err != nil || updated == nil {
		respondError(w, http.StatusInternalServerError, fmt.Errorf("failed to reload payment"))
		return
	}
	respondJSON(w, http.StatusOK, toPaymentDTO(*updated))
}

// =============================================================================
// ISSUANCE HANDLERS
// =============================================================================

// EnsureReceipt is the idempotent issuance endpoint: the first call mints a
// receipt, every later call returns the same one with 200.
func (h *Handler) EnsureReceipt(w http.ResponseWriter, r *http.Request) {
	h.ensureDocument(w, r, h.Receipts.Issue)
}

// EnsureInvoice ensures an invoice for a payment.
func (h *Handler) EnsureInvoice(w http.ResponseWriter, r *http.Request) {
	h.ensureDocument(w, r, h.Invoices.Issue)
}

type issueFunc func(ctx context.Context, paymentID numbering.TransactionID, issuedBy string) (*numbering.Document, error)

func (h *Handler) ensureDocument(w http.ResponseWriter, r *http.Request, issue issueFunc) {
	id := numbering.TransactionID(chi.URLParam(r, "id"))

	var req IssueDocumentRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSON(r.Body, &req); err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
	}

	doc, err := issue(r.Context(), id, req.IssuedBy)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, toDocumentDTO(*doc))
	case errors.Is(err, numbering.ErrTransactionNotFound):
		respondError(w, http.StatusNotFound, err)
	case errors.Is(err, numbering.ErrAllocationConflict):
		respondError(w, http.StatusConflict, err)
	default:
		respondError(w, http.StatusInternalServerError, err)
	}
}

// GetReceipt returns the receipt for a payment with owner context. The
// optional member_id query parameter scopes the read to one owner.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	id := numbering.TransactionID(chi.URLParam(r, "id"))
	ownerFilter := numbering.OwnerID(r.URL.Query().Get("member_id"))

	view, err := h.Receipts.Get(r.Context(), id, ownerFilter)
	if errors.Is(err, numbering.ErrDocumentNotFound) {
		respondError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, toDocumentViewDTO(*view))
}

// =============================================================================
// DOCUMENT HANDLERS
// =============================================================================

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Store.ListDocuments(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]DocumentDTO, 0, len(docs))
	for _, d := range docs {
		dtos = append(dtos, toDocumentDTO(d))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SERIES HANDLERS
// =============================================================================

func (h *Handler) ListSeries(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListSeries(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	dtos := make([]factory.SeriesJSON, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, factory.SeriesJSON{
			Code:         rec.Code,
			Name:         rec.Name,
			Domain:       rec.Domain,
			CounterWidth: rec.CounterWidth,
		})
	}
	respondJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	var def factory.SeriesJSON
	if err := decodeJSON(r.Body, &def); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	series, err := h.SeriesFactory.FromDefinition(def)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	record := sqlite.SeriesRecord{
		Code:         series.Kind.KindCode(),
		Name:         series.Name,
		Domain:       series.Kind.KindDomain(),
		CounterWidth: series.CounterWidth,
	}
	if err := h.Store.SaveSeries(r.Context(), record); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, def)
}

// =============================================================================
// HELPERS
// =============================================================================

func validatePaymentInput(memberID, amount, currency, effectiveDate string) (decimal.Decimal, time.Time, error) {
	if memberID == "" {
		return decimal.Zero, time.Time{}, fmt.Errorf("member_id is required")
	}
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("invalid amount %q", amount)
	}
	if value.IsNegative() {
		return decimal.Zero, time.Time{}, fmt.Errorf("amount must not be negative")
	}
	if currency == "" {
		return decimal.Zero, time.Time{}, fmt.Errorf("currency is required")
	}
	effectiveAt, err := time.Parse("2006-01-02", effectiveDate)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("invalid effective_date %q (want YYYY-MM-DD)", effectiveDate)
	}
	return value, effectiveAt.UTC(), nil
}

func decodeJSON(body io.Reader, v any) error {
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, ErrorResponse{Error: err.Error()})
}
