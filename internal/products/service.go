package products

import (
	"context"
	"fmt"

	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/shared"
)

type Service struct {
	repo  Repository
	audit shared.Auditor
}

func NewService(repo Repository, audit shared.Auditor) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: invalid product ID", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// GetMany loads products by id. Missing ids are reported as ErrNotFound.
func (s *Service) GetMany(ctx context.Context, ids []int64) (map[int64]Product, error) {
	found, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, fmt.Errorf("%w (id %d)", ErrNotFound, id)
		}
	}
	return found, nil
}

func (s *Service) Create(ctx context.Context, actorID int64, form ProductForm) (Product, error) {
	form = normalize(form)
	if err := s.validate(form); err != nil {
		return Product{}, err
	}
	p, err := s.repo.Create(ctx, form.toProduct())
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, actorID, "product.create", p.ID, map[string]any{"code": p.Code})
	return p, nil
}

func (s *Service) Update(ctx context.Context, actorID, id int64, form ProductForm) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: invalid product ID", httpx.ErrValidation)
	}
	form = normalize(form)
	if err := s.validate(form); err != nil {
		return Product{}, err
	}
	if err := s.repo.Update(ctx, id, form.toProduct()); err != nil {
		return Product{}, err
	}
	s.record(ctx, actorID, "product.update", id, nil)
	return s.repo.Get(ctx, id)
}

// Delete soft-deletes a product; quotes keep referencing it.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid product ID", httpx.ErrValidation)
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "product.deactivate", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "product", EntityID: fmt.Sprint(id), Meta: meta})
}
