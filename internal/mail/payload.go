// Package mail composes the outbound proposal and quote emails and serves
// the send-*-email function endpoints used by the browser client.
package mail

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/constructa/propostas/internal/platform/httpx"
)

var ErrBadAttachment = fmt.Errorf("%w: pdf_base64 is not valid base64", httpx.ErrValidation)

// Date accepts "2006-01-02" or RFC 3339 timestamps in JSON.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("date %q must be YYYY-MM-DD or RFC 3339", s)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Format("2006-01-02"))
}

type Item struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	Unit        string  `json:"unit"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
	Total       float64 `json:"total" validate:"gte=0"`
}

// Attachment carries an optional base64 PDF.
type Attachment struct {
	PDFBase64   string `json:"pdf_base64,omitempty"`
	PDFFilename string `json:"pdf_filename,omitempty" validate:"max=200"`
}

func (a Attachment) HasAttachment() bool {
	return strings.TrimSpace(a.PDFBase64) != ""
}

// decode returns the PDF bytes, accepting a data: URL prefix.
func (a Attachment) decode() ([]byte, error) {
	raw := strings.TrimSpace(a.PDFBase64)
	if i := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && i > 0 {
		raw = raw[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, ErrBadAttachment
	}
	return data, nil
}

// ProposalEmail sends a proposal to a client.
type ProposalEmail struct {
	To             string  `json:"to" validate:"required,email"`
	ClientName     string  `json:"client_name" validate:"required,max=200"`
	ProposalNumber string  `json:"proposal_number" validate:"required,max=40"`
	Total          float64 `json:"total" validate:"gte=0"`
	ValidUntil     Date    `json:"valid_until"`
	VendorName     string  `json:"vendor_name"`
	VendorEmail    string  `json:"vendor_email" validate:"omitempty,email"`
	VendorPhone    string  `json:"vendor_phone"`
	Message        string  `json:"message" validate:"max=4000"`
	Items          []Item  `json:"items" validate:"dive"`
	AcceptURL      string  `json:"accept_url" validate:"omitempty,url"`
	Attachment
}

// QuoteEmail sends a quote (not yet a formal proposal) to a client.
type QuoteEmail struct {
	To          string  `json:"to" validate:"required,email"`
	ClientName  string  `json:"client_name" validate:"required,max=200"`
	QuoteNumber string  `json:"quote_number" validate:"required,max=40"`
	Subtotal    float64 `json:"subtotal" validate:"gte=0"`
	Discount    float64 `json:"discount" validate:"gte=0"`
	Freight     float64 `json:"freight" validate:"gte=0"`
	Total       float64 `json:"total" validate:"gte=0"`
	ValidUntil  Date    `json:"valid_until"`
	VendorName  string  `json:"vendor_name"`
	VendorEmail string  `json:"vendor_email" validate:"omitempty,email"`
	Message     string  `json:"message" validate:"max=4000"`
	Items       []Item  `json:"items" validate:"dive"`
	Attachment
}

// ResponseNotice tells a vendor that a client answered a proposal.
type ResponseNotice struct {
	To             string
	VendorName     string
	ProposalNumber string
	QuoteNumber    string
	ClientName     string
	Accepted       bool
	ResponderName  string
	Note           string
	Total          float64
	RespondedAt    time.Time
}
