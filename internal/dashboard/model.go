// Package dashboard aggregates quote activity for the management dashboard.
package dashboard

import (
	"time"

	"github.com/constructa/propostas/internal/quotes"
)

// Filters scope the dashboard. A zero VendorID means every vendor.
type Filters struct {
	From     *time.Time
	To       *time.Time
	VendorID int64
}

type StatusCount struct {
	Status quotes.Status `json:"status"`
	Label  string        `json:"label"`
	Count  int           `json:"count"`
	Total  float64       `json:"total"`
}

type MonthPoint struct {
	Month         string  `json:"month"`
	Quotes        int     `json:"quotes"`
	Accepted      int     `json:"accepted"`
	Total         float64 `json:"total"`
	AcceptedTotal float64 `json:"accepted_total"`
}

type VendorRank struct {
	VendorID       int64   `json:"vendor_id"`
	Name           string  `json:"name"`
	Quotes         int     `json:"quotes"`
	Accepted       int     `json:"accepted"`
	Closed         int     `json:"-"`
	AcceptedTotal  float64 `json:"accepted_total"`
	ConversionRate float64 `json:"conversion_rate"`
}

type ProductRank struct {
	ProductID int64   `json:"product_id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	Total     float64 `json:"total"`
}

// Summary is the dashboard payload.
type Summary struct {
	TotalQuotes    int           `json:"total_quotes"`
	TotalValue     float64       `json:"total_value"`
	AcceptedValue  float64       `json:"accepted_value"`
	ConversionRate float64       `json:"conversion_rate"`
	AverageTicket  float64       `json:"average_ticket"`
	ByStatus       []StatusCount `json:"by_status"`
	Monthly        []MonthPoint  `json:"monthly"`
	Vendors        []VendorRank  `json:"vendors"`
	TopProducts    []ProductRank `json:"top_products"`
	GeneratedAt    time.Time     `json:"generated_at"`
}
