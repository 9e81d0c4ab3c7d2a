package quotes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/constructa/propostas/internal/format"
	"github.com/constructa/propostas/internal/freight"
	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/products"
	"github.com/constructa/propostas/internal/shared"
)

// ProductLookup resolves catalog products for quote items.
type ProductLookup interface {
	GetMany(ctx context.Context, ids []int64) (map[int64]products.Product, error)
}

// FreightQuoter prices a shipment.
type FreightQuoter interface {
	Quote(ctx context.Context, in freight.Input) (freight.Result, error)
}

// ChangeNotifier is told whenever quote data changes.
type ChangeNotifier interface {
	QuotesChanged(ctx context.Context)
}

type Service struct {
	repo         Repository
	products     ProductLookup
	freight      FreightQuoter
	audit        shared.Auditor
	notifier     ChangeNotifier
	validityDays int
	now          func() time.Time
}

type Option func(*Service)

func WithNotifier(n ChangeNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithValidityDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.validityDays = days
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, products ProductLookup, fq FreightQuoter, audit shared.Auditor, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		products:     products,
		freight:      fq,
		audit:        audit,
		validityDays: 15,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() time.Time {
	t := format.Local(s.now())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) Create(ctx context.Context, actor shared.Principal, req QuoteRequest) (*Quote, error) {
	req = normalize(req)
	if err := httpx.Validate(req); err != nil {
		return nil, err
	}
	vendorID, err := s.resolveVendor(ctx, actor, req.VendorID)
	if err != nil {
		return nil, err
	}
	validUntil, err := s.validUntil(req.ValidUntil)
	if err != nil {
		return nil, err
	}
	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	q := Quote{
		VendorID:        vendorID,
		ClientName:      req.ClientName,
		ClientEmail:     req.ClientEmail,
		ClientPhone:     req.ClientPhone,
		ClientDocument:  req.ClientDocument,
		DeliveryCity:    req.DeliveryCity,
		DeliveryState:   req.DeliveryState,
		Status:          StatusDraft,
		ValidUntil:      validUntil,
		PaymentTerms:    req.PaymentTerms,
		Notes:           req.Notes,
		DiscountPercent: req.DiscountPercent,
		Totals:          ComputeTotals(items, req.DiscountPercent, nil),
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.NextNumber(ctx, format.Local(s.now()).Year())
		if err != nil {
			return err
		}
		q.Number = number
		id, err = repo.Create(ctx, q)
		if err != nil {
			return fmt.Errorf("create quote: %w", err)
		}
		return repo.ReplaceItems(ctx, id, items)
	})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, actor.UserID, "quote.create", id, map[string]any{"number": q.Number})
	return s.repo.Get(ctx, id)
}

// Update replaces a draft quote's header and items. An attached automatic
// freight is recalculated for the new load; a manual one is kept.
func (s *Service) Update(ctx context.Context, actor shared.Principal, id int64, req QuoteRequest) (*Quote, error) {
	existing, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusDraft {
		return nil, ErrNotEditable
	}
	req = normalize(req)
	if err := httpx.Validate(req); err != nil {
		return nil, err
	}
	vendorID := existing.VendorID
	if req.VendorID > 0 && req.VendorID != existing.VendorID {
		if vendorID, err = s.resolveVendor(ctx, actor, req.VendorID); err != nil {
			return nil, err
		}
	}
	validUntil, err := s.validUntil(req.ValidUntil)
	if err != nil {
		return nil, err
	}
	items, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	fr := existing.Freight
	if fr != nil && !fr.Manual && fr.Modality == freight.ModalityCIF {
		load := ComputeTotals(items, 0, nil)
		res, err := s.quoteFreight(ctx, fr.Modality, vehicleID(fr), fr.City, fr.State, load, nil)
		if err != nil {
			return nil, fmt.Errorf("recalculate freight: %w", err)
		}
		fr = &Freight{QuoteID: id, Result: res}
	}

	q := *existing
	q.VendorID = vendorID
	q.ClientName = req.ClientName
	q.ClientEmail = req.ClientEmail
	q.ClientPhone = req.ClientPhone
	q.ClientDocument = req.ClientDocument
	q.DeliveryCity = req.DeliveryCity
	q.DeliveryState = req.DeliveryState
	q.ValidUntil = validUntil
	q.PaymentTerms = req.PaymentTerms
	q.Notes = req.Notes
	q.DiscountPercent = req.DiscountPercent
	q.Totals = ComputeTotals(items, req.DiscountPercent, fr)

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Update(ctx, q); err != nil {
			return err
		}
		if err := repo.ReplaceItems(ctx, id, items); err != nil {
			return err
		}
		if fr != nil && fr != existing.Freight {
			return repo.SaveFreight(ctx, *fr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update quote: %w", err)
	}
	s.changed(ctx, actor.UserID, "quote.update", id, nil)
	return s.repo.Get(ctx, id)
}

// Get returns a quote. Vendors only see their own quotes; others are
// reported as not found.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id int64) (*Quote, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsVendor() && q.VendorID != actor.UserID {
		return nil, ErrNotFound
	}
	return q, nil
}

func (s *Service) List(ctx context.Context, actor shared.Principal, filters ListFilters) ([]Quote, int, error) {
	if actor.IsVendor() {
		filters.VendorID = actor.UserID
	}
	if filters.Status != "" && !filters.Status.Valid() {
		return nil, 0, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, filters.Status)
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) Cancel(ctx context.Context, actor shared.Principal, id int64) (*Quote, error) {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, q, StatusCancelled); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.UserID, "quote.cancel", id, map[string]any{"from": string(q.Status)})
	return s.repo.Get(ctx, id)
}

// Transition applies a status change checked against the status machine.
func (s *Service) Transition(ctx context.Context, actor shared.Principal, id int64, to Status) (*Quote, error) {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, q, to); err != nil {
		return nil, err
	}
	s.changed(ctx, actor.UserID, "quote.status", id, map[string]any{"from": string(q.Status), "to": string(to)})
	return s.repo.Get(ctx, id)
}

func (s *Service) transition(ctx context.Context, q *Quote, to Status) error {
	if !q.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, q.Status, to)
	}
	if q.Status != StatusSent {
		return s.repo.UpdateStatus(ctx, q.ID, q.Status, to)
	}
	// A sent quote may have a live acceptance link; close it with the move.
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UpdateStatus(ctx, q.ID, q.Status, to); err != nil {
			return err
		}
		_, err := repo.CloseProposals(ctx, q.ID)
		return err
	})
}

func (s *Service) Delete(ctx context.Context, actor shared.Principal, id int64) error {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if q.Status != StatusDraft {
		return ErrNotEditable
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.changed(ctx, actor.UserID, "quote.delete", id, map[string]any{"number": q.Number})
	return nil
}

// Duplicate copies a quote into a new draft owned by the actor (or the
// original vendor when the actor may see all quotes). Prices are copied as
// quoted, validity restarts.
func (s *Service) Duplicate(ctx context.Context, actor shared.Principal, id int64) (*Quote, error) {
	src, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	q := *src
	q.ID = 0
	q.Status = StatusDraft
	q.ValidUntil = s.today().AddDate(0, 0, s.validityDays)
	if actor.IsVendor() {
		q.VendorID = actor.UserID
	}
	items := make([]Item, len(src.Items))
	copy(items, src.Items)

	var newID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.NextNumber(ctx, format.Local(s.now()).Year())
		if err != nil {
			return err
		}
		q.Number = number
		newID, err = repo.Create(ctx, q)
		if err != nil {
			return err
		}
		if err := repo.ReplaceItems(ctx, newID, items); err != nil {
			return err
		}
		if src.Freight != nil {
			fr := *src.Freight
			fr.QuoteID = newID
			return repo.SaveFreight(ctx, fr)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("duplicate quote: %w", err)
	}
	s.changed(ctx, actor.UserID, "quote.duplicate", newID, map[string]any{"source": src.Number, "number": q.Number})
	return s.repo.Get(ctx, newID)
}

// AttachFreight prices the quote's load and stores the result.
func (s *Service) AttachFreight(ctx context.Context, actor shared.Principal, id int64, req FreightRequest) (*Quote, error) {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if q.Status != StatusDraft {
		return nil, ErrNotEditable
	}
	req.Modality = freight.Modality(strings.ToUpper(string(req.Modality)))
	if err := httpx.Validate(req); err != nil {
		return nil, err
	}
	city, state := req.City, req.State
	if city == "" {
		city = q.DeliveryCity
	}
	if state == "" {
		state = q.DeliveryState
	}
	res, err := s.quoteFreight(ctx, req.Modality, req.VehicleTypeID, city, state, q.Totals, req.Manual)
	if err != nil {
		return nil, err
	}
	fr := Freight{QuoteID: id, Result: res}
	totals := ComputeTotals(q.Items, q.DiscountPercent, &fr)

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.SaveFreight(ctx, fr); err != nil {
			return err
		}
		return repo.UpdateTotals(ctx, id, totals)
	})
	if err != nil {
		return nil, fmt.Errorf("attach freight: %w", err)
	}
	s.changed(ctx, actor.UserID, "quote.freight", id, map[string]any{"modality": string(res.Modality), "total": res.Total})
	return s.repo.Get(ctx, id)
}

func (s *Service) DetachFreight(ctx context.Context, actor shared.Principal, id int64) (*Quote, error) {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if q.Status != StatusDraft {
		return nil, ErrNotEditable
	}
	totals := ComputeTotals(q.Items, q.DiscountPercent, nil)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.DeleteFreight(ctx, id); err != nil {
			return err
		}
		return repo.UpdateTotals(ctx, id, totals)
	})
	if err != nil {
		return nil, fmt.Errorf("detach freight: %w", err)
	}
	s.changed(ctx, actor.UserID, "quote.freight_removed", id, nil)
	return s.repo.Get(ctx, id)
}

func (s *Service) quoteFreight(ctx context.Context, modality freight.Modality, vehicleTypeID int64, city, state string, load Totals, manual *freight.ManualOverride) (freight.Result, error) {
	if s.freight == nil {
		return freight.Result{}, fmt.Errorf("%w: freight calculator unavailable", httpx.ErrUnavailable)
	}
	return s.freight.Quote(ctx, freight.Input{
		Modality:      modality,
		City:          city,
		State:         state,
		VehicleTypeID: vehicleTypeID,
		TotalWeightKg: load.TotalWeightKg,
		Pallets:       load.TotalPallets,
		Manual:        manual,
	})
}

func (s *Service) resolveVendor(ctx context.Context, actor shared.Principal, requested int64) (int64, error) {
	if requested == 0 || requested == actor.UserID {
		return actor.UserID, nil
	}
	if actor.IsVendor() {
		return 0, fmt.Errorf("%w: vendors cannot assign quotes to other vendors", httpx.ErrForbidden)
	}
	ok, err := s.repo.VendorActive(ctx, requested)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrVendor
	}
	return requested, nil
}

func (s *Service) validUntil(raw string) (time.Time, error) {
	today := s.today()
	if raw == "" {
		return today.AddDate(0, 0, s.validityDays), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrValidUntil, err)
	}
	if t.Before(today) {
		return time.Time{}, ErrValidUntil
	}
	return t, nil
}

func (s *Service) buildItems(ctx context.Context, reqs []ItemRequest) ([]Item, error) {
	if len(reqs) == 0 {
		return nil, ErrNoItems
	}
	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ProductID)
	}
	catalog, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(reqs))
	for i, r := range reqs {
		p, ok := catalog[r.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownProduct, r.ProductID)
		}
		if !p.IsActive {
			return nil, fmt.Errorf("%w: %s", products.ErrInactive, p.Code)
		}
		price := p.UnitPrice
		if r.UnitPrice != nil {
			price = format.Round2(*r.UnitPrice)
		}
		desc := strings.TrimSpace(r.Description)
		if desc == "" {
			desc = p.Name
		}
		items = append(items, Item{
			ProductID:       p.ID,
			ProductCode:     p.Code,
			Description:     desc,
			Unit:            p.Unit,
			Quantity:        r.Quantity,
			UnitPrice:       price,
			DiscountPercent: r.DiscountPercent,
			LineTotal:       LineTotal(r.Quantity, price, r.DiscountPercent),
			WeightKg:        format.Round2(r.Quantity * p.WeightKg),
			Pallets:         ItemPallets(r.Quantity, p.UnitsPerPallet),
			Position:        i + 1,
		})
	}
	return items, nil
}

func (s *Service) changed(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.notifier != nil {
		s.notifier.QuotesChanged(ctx)
	}
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "quote", EntityID: fmt.Sprint(id), Meta: meta})
}

func normalize(r QuoteRequest) QuoteRequest {
	r.ClientName = strings.TrimSpace(r.ClientName)
	r.ClientEmail = strings.ToLower(strings.TrimSpace(r.ClientEmail))
	r.ClientPhone = strings.TrimSpace(r.ClientPhone)
	r.ClientDocument = strings.TrimSpace(r.ClientDocument)
	r.DeliveryCity = strings.TrimSpace(r.DeliveryCity)
	r.DeliveryState = strings.ToUpper(strings.TrimSpace(r.DeliveryState))
	r.ValidUntil = strings.TrimSpace(r.ValidUntil)
	r.PaymentTerms = strings.TrimSpace(r.PaymentTerms)
	r.Notes = strings.TrimSpace(r.Notes)
	return r
}

func vehicleID(fr *Freight) int64 {
	if fr == nil || fr.VehicleTypeID == nil {
		return 0
	}
	return *fr.VehicleTypeID
}
