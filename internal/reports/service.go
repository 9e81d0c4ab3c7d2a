// Package reports exports filtered quote listings as CSV, XLSX and PDF.
package reports

import (
	"context"
	"time"

	"github.com/constructa/propostas/internal/quotes"
	"github.com/constructa/propostas/internal/shared"
)

const (
	pageSize = 200
	// MaxRows caps a single export.
	MaxRows = 5000
)

// Lister is the slice of quotes.Service an export needs.
type Lister interface {
	List(ctx context.Context, actor shared.Principal, filters quotes.ListFilters) ([]quotes.Quote, int, error)
}

// Report is a materialised quote listing.
type Report struct {
	Title       string
	Period      string
	GeneratedAt time.Time
	Rows        []quotes.Quote
	Total       int
	Truncated   bool
}

// Sum returns the total amount of the non-cancelled rows.
func (r Report) Sum() float64 {
	var sum float64
	for _, q := range r.Rows {
		if q.Status != quotes.StatusCancelled {
			sum += q.TotalAmount
		}
	}
	return sum
}

type Service struct {
	lister Lister
	max    int
	now    func() time.Time
}

func NewService(lister Lister) *Service {
	return &Service{lister: lister, max: MaxRows, now: time.Now}
}

// Collect pages through the listing until it is exhausted or MaxRows is hit.
// Vendor scoping is applied by the lister.
func (s *Service) Collect(ctx context.Context, actor shared.Principal, f quotes.ListFilters) (Report, error) {
	rep := Report{Title: "Relatório de orçamentos", GeneratedAt: s.now()}
	f.Limit = pageSize
	for page := 1; ; page++ {
		f.Page = page
		rows, total, err := s.lister.List(ctx, actor, f)
		if err != nil {
			return Report{}, err
		}
		rep.Total = total
		for _, q := range rows {
			if len(rep.Rows) == s.max {
				rep.Truncated = true
				return rep, nil
			}
			rep.Rows = append(rep.Rows, q)
		}
		if len(rows) < pageSize || len(rep.Rows) >= total {
			break
		}
	}
	rep.Truncated = len(rep.Rows) < rep.Total
	return rep, nil
}
