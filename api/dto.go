/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Member:
    MemberDTO, CreateMemberRequest

  Payment:
    PaymentDTO, CreatePaymentRequest, UpdatePaymentRequest

  Document:
    DocumentDTO, DocumentViewDTO, IssueDocumentRequest

  Series:
    SeriesDTO (wraps factory.SeriesJSON)

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/series.go: SeriesJSON type
*/
package api

import (
	"time"

	"github.com/warp/billing-engine/numbering"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// MemberDTO represents a member in API responses.
type MemberDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateMemberRequest is the request to create a member.
type CreateMemberRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PaymentDTO represents a payment in API responses.
type PaymentDTO struct {
	ID            string `json:"id"`
	MemberID      string `json:"member_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	EffectiveDate string `json:"effective_date"`
	Note          string `json:"note,omitempty"`
	CreatedAt     string `json:"created_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
}

// CreatePaymentRequest is the request to record a payment.
type CreatePaymentRequest struct {
	ID            string `json:"id,omitempty"` // generated when empty
	MemberID      string `json:"member_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	EffectiveDate string `json:"effective_date"` // YYYY-MM-DD
	Note          string `json:"note,omitempty"`
}

// UpdatePaymentRequest adjusts a payment's amount. Already-issued documents
// keep their snapshot.
type UpdatePaymentRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	Note     string `json:"note,omitempty"`
}

// IssueDocumentRequest is the request body for the ensure endpoints.
type IssueDocumentRequest struct {
	IssuedBy string `json:"issued_by,omitempty"`
}

// DocumentDTO represents an issued document in API responses.
type DocumentDTO struct {
	ID           string `json:"id"`
	PaymentID    string `json:"payment_id"`
	Kind         string `json:"kind"`
	SerialNumber string `json:"serial_number"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	IssuedBy     string `json:"issued_by,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// DocumentViewDTO is a document joined with owner context, for rendering.
type DocumentViewDTO struct {
	DocumentDTO
	OwnerID    string `json:"owner_id"`
	OwnerName  string `json:"owner_name"`
	OwnerEmail string `json:"owner_email,omitempty"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toMemberDTO(m sqlite.Member) MemberDTO {
	return MemberDTO{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentDTO(p numbering.Transaction) PaymentDTO {
	return PaymentDTO{
		ID:            string(p.ID),
		MemberID:      string(p.OwnerID),
		Amount:        p.Amount.Value.StringFixed(2),
		Currency:      p.Amount.Currency,
		EffectiveDate: p.EffectiveAt.Format("2006-01-02"),
		Note:          p.Note,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
	}
}

func toDocumentDTO(d numbering.Document) DocumentDTO {
	return DocumentDTO{
		ID:           string(d.ID),
		PaymentID:    string(d.TransactionID),
		Kind:         d.Kind.KindCode(),
		SerialNumber: d.SerialNumber,
		Amount:       d.Amount.Value.StringFixed(2),
		Currency:     d.Amount.Currency,
		IssuedBy:     d.IssuedBy,
		CreatedAt:    d.CreatedAt.Format(time.RFC3339),
	}
}

func toDocumentViewDTO(v numbering.DocumentView) DocumentViewDTO {
	return DocumentViewDTO{
		DocumentDTO: toDocumentDTO(v.Document),
		OwnerID:     string(v.OwnerID),
		OwnerName:   v.OwnerName,
		OwnerEmail:  v.OwnerEmail,
	}
}
