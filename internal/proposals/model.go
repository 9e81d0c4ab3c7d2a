// Package proposals issues numbered PDF proposals for quotes, delivers them
// by email and records the client's public accept/reject response.
package proposals

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/constructa/propostas/internal/freight"
	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/quotes"
)

var (
	ErrNotFound         = fmt.Errorf("%w: proposal not found", httpx.ErrNotFound)
	ErrTokenInvalid     = fmt.Errorf("%w: proposal link is invalid", httpx.ErrNotFound)
	ErrTokenExpired     = fmt.Errorf("%w: proposal link has expired", httpx.ErrGone)
	ErrAlreadyResponded = fmt.Errorf("%w: proposal was already answered", httpx.ErrConflict)
	ErrQuoteStatus      = fmt.Errorf("%w: only draft or sent quotes can be proposed", httpx.ErrConflict)
	ErrNotOpen          = fmt.Errorf("%w: proposal is no longer open", httpx.ErrConflict)
	ErrNoRecipient      = fmt.Errorf("%w: recipient email required", httpx.ErrValidation)
	ErrPDFMissing       = fmt.Errorf("%w: proposal pdf not found", httpx.ErrNotFound)
)

type Status string

const (
	StatusSent       Status = "sent"
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusExpired    Status = "expired"
	StatusSuperseded Status = "superseded"
)

// MaxValidityDays caps expires_in_days on creation.
const MaxValidityDays = 90

type Proposal struct {
	ID            int64      `json:"id"`
	QuoteID       int64      `json:"quote_id"`
	QuoteNumber   string     `json:"quote_number"`
	VendorID      int64      `json:"vendor_id"`
	Number        string     `json:"number"`
	Status        Status     `json:"status"`
	ExpiresAt     time.Time  `json:"expires_at"`
	PDFPath       string     `json:"-"`
	SentTo        string     `json:"sent_to"`
	Message       string     `json:"message"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
	ResponderName string     `json:"responder_name,omitempty"`
	ResponseNote  string     `json:"response_note,omitempty"`
	CreatedBy     int64      `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	// AcceptURL is only populated on the response that issued the token.
	AcceptURL string `json:"accept_url,omitempty"`
}

// Expired reports whether a sent proposal is past its deadline at now.
func (p Proposal) Expired(now time.Time) bool {
	return p.Status == StatusSent && !now.Before(p.ExpiresAt)
}

// Token is the single-use row behind an acceptance link.
type Token struct {
	ID         uuid.UUID
	ProposalID int64
	ExpiresAt  time.Time
	UsedAt     *time.Time
}

// Delivery is the unit of work for the proposal email job.
type Delivery struct {
	ProposalID int64  `json:"proposal_id"`
	AcceptURL  string `json:"accept_url"`
}

// Summary is what an anonymous client sees behind an acceptance link.
type Summary struct {
	Number        string          `json:"number"`
	QuoteNumber   string          `json:"quote_number"`
	CompanyName   string          `json:"company_name"`
	Status        Status          `json:"status"`
	ExpiresAt     time.Time       `json:"expires_at"`
	ClientName    string          `json:"client_name"`
	VendorName    string          `json:"vendor_name"`
	VendorEmail   string          `json:"vendor_email"`
	PaymentTerms  string          `json:"payment_terms,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Message       string          `json:"message,omitempty"`
	Items         []quotes.Item   `json:"items"`
	Totals        quotes.Totals   `json:"totals"`
	Freight       *freight.Result `json:"freight,omitempty"`
	RespondedAt   *time.Time      `json:"responded_at,omitempty"`
	ResponderName string          `json:"responder_name,omitempty"`
}

// Expired is the outcome of one expiry sweep.
type Expired struct {
	Proposals int64 `json:"proposals"`
	Quotes    int64 `json:"quotes"`
}
