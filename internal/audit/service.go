package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/constructa/propostas/internal/platform/httpx"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	// MaxExportRows caps CSV exports.
	MaxExportRows = 5000
	// MaxRange bounds the window a single query may cover.
	MaxRange = 90 * 24 * time.Hour
)

var ErrInvalidRange = fmt.Errorf("%w: invalid audit date range", httpx.ErrValidation)

// Service serves the activity timeline.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page, newest first.
func (s *Service) Timeline(ctx context.Context, f TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	if err := checkRange(f); err != nil {
		return Result{}, err
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Window(ctx, f, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns up to MaxExportRows rows and whether more were available.
func (s *Service) Export(ctx context.Context, f TimelineFilters) ([]TimelineRow, bool, error) {
	if s.repo == nil {
		return nil, false, errors.New("audit: repository not configured")
	}
	if err := checkRange(f); err != nil {
		return nil, false, err
	}
	rows, err := s.repo.Window(ctx, f, 0, MaxExportRows+1)
	if err != nil {
		return nil, false, err
	}
	if len(rows) > MaxExportRows {
		return rows[:MaxExportRows], true, nil
	}
	return rows, false, nil
}

func checkRange(f TimelineFilters) error {
	if f.From.IsZero() || f.To.IsZero() {
		return nil
	}
	if !f.To.After(f.From) {
		return fmt.Errorf("%w: from must be before to", ErrInvalidRange)
	}
	if f.To.Sub(f.From) > MaxRange {
		return fmt.Errorf("%w: at most 90 days per query", ErrInvalidRange)
	}
	return nil
}
