package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/constructa/propostas/internal/format"
	"github.com/constructa/propostas/internal/quotes"
	"github.com/constructa/propostas/internal/shared"
)

const (
	vendorLimit  = 10
	productLimit = 10
)

// Service coordinates dashboard queries with the cache layer.
type Service struct {
	repo  Repository
	cache *Cache
	now   func() time.Time
}

func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// Summary returns the dashboard for f. Vendors only see their own numbers.
func (s *Service) Summary(ctx context.Context, actor shared.Principal, f Filters) (Summary, error) {
	if actor.IsVendor() {
		f.VendorID = actor.UserID
	}
	loader := func(ctx context.Context) (any, error) {
		return s.build(ctx, f)
	}
	key, err := s.cache.BuildKey(ctx, "summary", strconv.FormatInt(f.VendorID, 10), dayToken(f.From), dayToken(f.To))
	if err != nil {
		s.cache.logger.Warn("dashboard cache unavailable", slog.Any("error", err))
		return s.build(ctx, f)
	}
	var out Summary
	if err := s.cache.FetchJSON(ctx, key, &out, loader); err != nil {
		return Summary{}, err
	}
	return out, nil
}

func (s *Service) build(ctx context.Context, f Filters) (Summary, error) {
	var (
		counts   []StatusCount
		monthly  []MonthPoint
		vendors  []VendorRank
		products []ProductRank
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts, err = s.repo.StatusCounts(ctx, f)
		return err
	})
	g.Go(func() (err error) {
		monthly, err = s.repo.Monthly(ctx, f)
		return err
	})
	g.Go(func() (err error) {
		vendors, err = s.repo.VendorRanking(ctx, f, vendorLimit)
		return err
	})
	g.Go(func() (err error) {
		products, err = s.repo.TopProducts(ctx, f, productLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("dashboard summary: %w", err)
	}
	sum := summarize(counts, monthly, vendors, products)
	sum.GeneratedAt = s.now()
	return sum, nil
}

// summarize derives the headline figures. Conversion is accepted over
// closed (accepted, rejected, expired); average ticket is the mean accepted
// quote value.
func summarize(counts []StatusCount, monthly []MonthPoint, vendors []VendorRank, products []ProductRank) Summary {
	byStatus := map[quotes.Status]StatusCount{}
	for _, c := range counts {
		byStatus[c.Status] = c
	}
	sum := Summary{Monthly: monthly, Vendors: vendors, TopProducts: products}
	if sum.Monthly == nil {
		sum.Monthly = []MonthPoint{}
	}
	if sum.Vendors == nil {
		sum.Vendors = []VendorRank{}
	}
	if sum.TopProducts == nil {
		sum.TopProducts = []ProductRank{}
	}
	for _, st := range quotes.Statuses() {
		c := byStatus[st]
		c.Status, c.Label = st, st.Label()
		c.Total = format.Round2(c.Total)
		sum.ByStatus = append(sum.ByStatus, c)
		sum.TotalQuotes += c.Count
		if st != quotes.StatusCancelled {
			sum.TotalValue += c.Total
		}
	}
	accepted := byStatus[quotes.StatusAccepted]
	closed := accepted.Count + byStatus[quotes.StatusRejected].Count + byStatus[quotes.StatusExpired].Count
	sum.AcceptedValue = format.Round2(accepted.Total)
	sum.TotalValue = format.Round2(sum.TotalValue)
	sum.ConversionRate = ratio(accepted.Count, closed)
	if accepted.Count > 0 {
		sum.AverageTicket = format.Round2(accepted.Total / float64(accepted.Count))
	}
	for i := range sum.Vendors {
		sum.Vendors[i].ConversionRate = ratio(sum.Vendors[i].Accepted, sum.Vendors[i].Closed)
	}
	return sum
}

// ratio returns num/den as a percentage with two decimals.
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return format.Round2(float64(num) * 100 / float64(den))
}

func dayToken(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("20060102T1504")
}
