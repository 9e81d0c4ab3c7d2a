package quotes

import (
	"fmt"
	"time"

	"github.com/constructa/propostas/internal/freight"
	"github.com/constructa/propostas/internal/platform/httpx"
)

var (
	ErrNotFound       = fmt.Errorf("%w: quote not found", httpx.ErrNotFound)
	ErrInvalidStatus  = fmt.Errorf("%w: invalid status transition", httpx.ErrConflict)
	ErrNotEditable    = fmt.Errorf("%w: only draft quotes can be changed", httpx.ErrConflict)
	ErrNoItems        = fmt.Errorf("%w: quote has no items", httpx.ErrValidation)
	ErrValidUntil     = fmt.Errorf("%w: valid_until must not be in the past", httpx.ErrValidation)
	ErrVendor         = fmt.Errorf("%w: vendor not found or inactive", httpx.ErrValidation)
	ErrUnknownProduct = fmt.Errorf("%w: product not found", httpx.ErrValidation)
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusDraft: {StatusSent, StatusCancelled},
	StatusSent:  {StatusAccepted, StatusRejected, StatusExpired, StatusCancelled},
}

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusExpired, StatusCancelled}
}

func (s Status) Valid() bool {
	for _, st := range Statuses() {
		if st == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether the status machine allows s -> to.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Label is the pt-BR status name shown on documents.
func (s Status) Label() string {
	switch s {
	case StatusDraft:
		return "Rascunho"
	case StatusSent:
		return "Enviado"
	case StatusAccepted:
		return "Aceito"
	case StatusRejected:
		return "Recusado"
	case StatusExpired:
		return "Expirado"
	case StatusCancelled:
		return "Cancelado"
	}
	return string(s)
}

type Quote struct {
	ID              int64     `json:"id"`
	Number          string    `json:"number"`
	VendorID        int64     `json:"vendor_id"`
	VendorName      string    `json:"vendor_name"`
	VendorEmail     string    `json:"vendor_email"`
	VendorCode      string    `json:"vendor_code"`
	ClientName      string    `json:"client_name"`
	ClientEmail     string    `json:"client_email"`
	ClientPhone     string    `json:"client_phone"`
	ClientDocument  string    `json:"client_document"`
	DeliveryCity    string    `json:"delivery_city"`
	DeliveryState   string    `json:"delivery_state"`
	Status          Status    `json:"status"`
	ValidUntil      time.Time `json:"valid_until"`
	PaymentTerms    string    `json:"payment_terms"`
	Notes           string    `json:"notes"`
	DiscountPercent float64   `json:"discount_percent"`
	Totals
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Items     []Item    `json:"items,omitempty"`
	Freight   *Freight  `json:"freight,omitempty"`
}

// Totals are derived from items, discount and freight.
type Totals struct {
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discount_amount"`
	FreightAmount  float64 `json:"freight_amount"`
	TotalAmount    float64 `json:"total_amount"`
	TotalWeightKg  float64 `json:"total_weight_kg"`
	TotalPallets   int     `json:"total_pallets"`
}

type Item struct {
	ID              int64   `json:"id"`
	QuoteID         int64   `json:"quote_id"`
	ProductID       int64   `json:"product_id"`
	ProductCode     string  `json:"product_code"`
	Description     string  `json:"description"`
	Unit            string  `json:"unit"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
	LineTotal       float64 `json:"line_total"`
	WeightKg        float64 `json:"weight_kg"`
	Pallets         int     `json:"pallets"`
	Position        int     `json:"position"`
}

// Freight is a freight.Result stored against a quote.
type Freight struct {
	QuoteID int64 `json:"quote_id"`
	freight.Result
}

type ListFilters struct {
	Page     int
	Limit    int
	Status   Status
	VendorID int64
	Search   string
	From     *time.Time
	To       *time.Time
}
