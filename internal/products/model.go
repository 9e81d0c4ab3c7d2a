package products

import (
	"fmt"
	"time"

	"github.com/constructa/propostas/internal/platform/httpx"
)

var (
	ErrNotFound      = fmt.Errorf("%w: product not found", httpx.ErrNotFound)
	ErrDuplicateCode = fmt.Errorf("%w: product code already exists", httpx.ErrDuplicate)
	ErrInactive      = fmt.Errorf("%w: product is inactive", httpx.ErrValidation)
)

// Product is a catalog item that can be quoted.
type Product struct {
	ID             int64     `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Unit           string    `json:"unit"`
	UnitPrice      float64   `json:"unit_price"`
	WeightKg       float64   `json:"weight_kg"`
	UnitsPerPallet int       `json:"units_per_pallet"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	IsActive *bool
	SortBy   string
	SortDir  string
}
