package freight

import (
	"context"
	"fmt"
	"strings"

	"github.com/constructa/propostas/internal/format"
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

// Quote resolves the vehicle and rate for in and prices the shipment.
func (s *Service) Quote(ctx context.Context, in Input) (Result, error) {
	in.State = strings.ToUpper(strings.TrimSpace(in.State))
	in.City = strings.TrimSpace(in.City)

	var vehicle *VehicleType
	if in.VehicleTypeID > 0 {
		v, err := s.repo.GetVehicle(ctx, in.VehicleTypeID)
		if err != nil {
			return Result{}, err
		}
		if !v.IsActive && in.Modality == ModalityCIF && in.Manual == nil {
			return Result{}, ErrVehicleInactive
		}
		vehicle = &v
	}

	if in.Modality != ModalityCIF || in.Manual != nil {
		return Calculate(in, vehicle, nil)
	}
	if vehicle == nil {
		return Result{}, fmt.Errorf("%w: vehicle type is required", ErrInvalidInput)
	}

	rate, err := s.findRate(ctx, in.City, in.State, vehicle.ID, in.Modality)
	if err != nil {
		return Result{}, err
	}
	return Calculate(in, vehicle, rate)
}

// findRate matches the city ignoring case and accents.
func (s *Service) findRate(ctx context.Context, city, state string, vehicleID int64, modality Modality) (*Rate, error) {
	if city == "" || state == "" {
		return nil, fmt.Errorf("%w: city and state are required", ErrInvalidInput)
	}
	candidates, err := s.repo.CandidateRates(ctx, state, vehicleID, modality)
	if err != nil {
		return nil, err
	}
	want := format.Fold(city)
	for i := range candidates {
		if format.Fold(candidates[i].City) == want {
			return &candidates[i], nil
		}
	}
	return nil, fmt.Errorf("%w (%s/%s)", ErrRateNotFound, city, state)
}

func (s *Service) ListVehicles(ctx context.Context, activeOnly bool) ([]VehicleType, error) {
	return s.repo.ListVehicles(ctx, activeOnly)
}

func (s *Service) CreateVehicle(ctx context.Context, actorID int64, form VehicleForm) (VehicleType, error) {
	form.Name = strings.TrimSpace(form.Name)
	if err := httpx.Validate(form); err != nil {
		return VehicleType{}, err
	}
	v, err := s.repo.CreateVehicle(ctx, VehicleType{
		Name: form.Name, CapacityKg: form.CapacityKg, PalletCapacity: form.PalletCapacity, IsActive: active(form.IsActive),
	})
	if err != nil {
		return VehicleType{}, err
	}
	s.record(ctx, actorID, "vehicle.create", "vehicle_type", v.ID, map[string]any{"name": v.Name})
	return v, nil
}

func (s *Service) UpdateVehicle(ctx context.Context, actorID, id int64, form VehicleForm) (VehicleType, error) {
	form.Name = strings.TrimSpace(form.Name)
	if err := httpx.Validate(form); err != nil {
		return VehicleType{}, err
	}
	v := VehicleType{ID: id, Name: form.Name, CapacityKg: form.CapacityKg, PalletCapacity: form.PalletCapacity, IsActive: active(form.IsActive)}
	if err := s.repo.UpdateVehicle(ctx, v); err != nil {
		return VehicleType{}, err
	}
	s.record(ctx, actorID, "vehicle.update", "vehicle_type", id, nil)
	return v, nil
}

func (s *Service) DeleteVehicle(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeactivateVehicle(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "vehicle.deactivate", "vehicle_type", id, nil)
	return nil
}

func (s *Service) ListRates(ctx context.Context, filters RateFilters) ([]Rate, int, error) {
	return s.repo.ListRates(ctx, filters)
}

func (s *Service) CreateRate(ctx context.Context, actorID int64, form RateForm) (Rate, error) {
	form = normalizeRate(form)
	if err := httpx.Validate(form); err != nil {
		return Rate{}, err
	}
	rt, err := s.repo.CreateRate(ctx, rateFromForm(0, form))
	if err != nil {
		return Rate{}, err
	}
	s.record(ctx, actorID, "freight_rate.create", "freight_rate", rt.ID, map[string]any{"city": rt.City, "state": rt.State})
	return rt, nil
}

func (s *Service) UpdateRate(ctx context.Context, actorID, id int64, form RateForm) (Rate, error) {
	form = normalizeRate(form)
	if err := httpx.Validate(form); err != nil {
		return Rate{}, err
	}
	if err := s.repo.UpdateRate(ctx, rateFromForm(id, form)); err != nil {
		return Rate{}, err
	}
	s.record(ctx, actorID, "freight_rate.update", "freight_rate", id, nil)
	return s.repo.GetRate(ctx, id)
}

func (s *Service) DeleteRate(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeactivateRate(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "freight_rate.deactivate", "freight_rate", id, nil)
	return nil
}

// ImportRates upserts the seed's vehicles by name and its rates by
// (city, state, vehicle, modality) in one transaction.
func (s *Service) ImportRates(ctx context.Context, seed Seed) (ImportSummary, error) {
	var summary ImportSummary
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		byName := map[string]int64{}
		existing, err := repo.ListVehicles(ctx, false)
		if err != nil {
			return err
		}
		for _, v := range existing {
			byName[format.Fold(v.Name)] = v.ID
		}
		for _, sv := range seed.Vehicles {
			v, err := repo.UpsertVehicle(ctx, VehicleType{Name: strings.TrimSpace(sv.Name), CapacityKg: sv.CapacityKg, PalletCapacity: sv.PalletCapacity})
			if err != nil {
				return fmt.Errorf("upsert vehicle %q: %w", sv.Name, err)
			}
			byName[format.Fold(v.Name)] = v.ID
			summary.Vehicles++
		}
		for _, sr := range seed.Rates {
			vehicleID, ok := byName[format.Fold(sr.Vehicle)]
			if !ok {
				return fmt.Errorf("%w: rate for %s/%s references unknown vehicle %q", ErrInvalidInput, sr.City, sr.State, sr.Vehicle)
			}
			inserted, err := repo.UpsertRate(ctx, Rate{
				City:          strings.TrimSpace(sr.City),
				State:         strings.ToUpper(strings.TrimSpace(sr.State)),
				VehicleTypeID: vehicleID,
				Modality:      sr.Modality,
				PricePerTrip:  format.Round2(sr.PricePerTrip),
			})
			if err != nil {
				return fmt.Errorf("upsert rate %s/%s: %w", sr.City, sr.State, err)
			}
			if inserted {
				summary.RatesCreated++
			} else {
				summary.RatesUpdated++
			}
		}
		return nil
	})
	return summary, err
}

func normalizeRate(f RateForm) RateForm {
	f.City = strings.TrimSpace(f.City)
	f.State = strings.ToUpper(strings.TrimSpace(f.State))
	f.Modality = Modality(strings.ToUpper(string(f.Modality)))
	return f
}

func rateFromForm(id int64, f RateForm) Rate {
	return Rate{
		ID:            id,
		City:          f.City,
		State:         f.State,
		VehicleTypeID: f.VehicleTypeID,
		Modality:      f.Modality,
		PricePerTrip:  format.Round2(f.PricePerTrip),
		IsActive:      active(f.IsActive),
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: entity, EntityID: fmt.Sprint(id), Meta: meta})
}
