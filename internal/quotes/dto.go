package quotes

import "github.com/constructa/propostas/internal/freight"

// QuoteRequest creates a quote or replaces a draft's contents.
type QuoteRequest struct {
	VendorID        int64         `json:"vendor_id,omitempty" validate:"gte=0"`
	ClientName      string        `json:"client_name" validate:"required,max=200"`
	ClientEmail     string        `json:"client_email" validate:"omitempty,email,max=200"`
	ClientPhone     string        `json:"client_phone" validate:"max=40"`
	ClientDocument  string        `json:"client_document" validate:"max=20"`
	DeliveryCity    string        `json:"delivery_city" validate:"max=120"`
	DeliveryState   string        `json:"delivery_state" validate:"omitempty,len=2,alpha"`
	ValidUntil      string        `json:"valid_until" validate:"omitempty,datetime=2006-01-02"`
	PaymentTerms    string        `json:"payment_terms" validate:"max=200"`
	Notes           string        `json:"notes" validate:"max=4000"`
	DiscountPercent float64       `json:"discount_percent" validate:"gte=0,lte=100"`
	Items           []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

type ItemRequest struct {
	ProductID       int64    `json:"product_id" validate:"required,gt=0"`
	Description     string   `json:"description" validate:"max=500"`
	Quantity        float64  `json:"quantity" validate:"gt=0"`
	UnitPrice       *float64 `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
	DiscountPercent float64  `json:"discount_percent" validate:"gte=0,lte=100"`
}

// FreightRequest attaches a freight calculation. Weight and pallets come
// from the quote; city and state default to the delivery address.
type FreightRequest struct {
	Modality      freight.Modality        `json:"modality" validate:"required,oneof=CIF FOB"`
	VehicleTypeID int64                   `json:"vehicle_type_id" validate:"gte=0"`
	City          string                  `json:"city" validate:"max=120"`
	State         string                  `json:"state" validate:"omitempty,len=2"`
	Manual        *freight.ManualOverride `json:"manual,omitempty"`
}
