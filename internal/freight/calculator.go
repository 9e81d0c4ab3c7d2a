package freight

import (
	"fmt"
	"math"
	"strings"

	"github.com/constructa/propostas/internal/format"
)

// Calculate prices a shipment. FOB is always free; a manual override skips the
// vehicle and rate; otherwise both are required and trips is the larger of the
// weight and pallet ceilings.
func Calculate(in Input, vehicle *VehicleType, rate *Rate) (Result, error) {
	if !in.Modality.Valid() {
		return Result{}, fmt.Errorf("%w: modality must be CIF or FOB", ErrInvalidInput)
	}
	if in.TotalWeightKg < 0 || in.Pallets < 0 {
		return Result{}, fmt.Errorf("%w: weight and pallets must not be negative", ErrInvalidInput)
	}

	res := Result{
		Modality:      in.Modality,
		City:          strings.TrimSpace(in.City),
		State:         strings.ToUpper(strings.TrimSpace(in.State)),
		TotalWeightKg: in.TotalWeightKg,
		TotalPallets:  in.Pallets,
	}
	if vehicle != nil {
		id := vehicle.ID
		res.VehicleTypeID = &id
		res.VehicleName = vehicle.Name
	}

	if in.Modality == ModalityFOB {
		return res, nil
	}

	if in.Manual != nil {
		if in.Manual.Trips < 1 {
			return Result{}, fmt.Errorf("%w: manual trips must be at least 1", ErrInvalidInput)
		}
		if in.Manual.PricePerTrip < 0 {
			return Result{}, fmt.Errorf("%w: manual price per trip must not be negative", ErrInvalidInput)
		}
		res.Manual = true
		res.Trips = in.Manual.Trips
		res.PricePerTrip = format.Round2(in.Manual.PricePerTrip)
		res.Total = format.Round2(float64(res.Trips) * res.PricePerTrip)
		return res, nil
	}

	if in.TotalWeightKg == 0 && in.Pallets == 0 {
		return Result{}, ErrEmptyLoad
	}
	if vehicle == nil {
		return Result{}, fmt.Errorf("%w: vehicle type is required", ErrInvalidInput)
	}
	if rate == nil {
		return Result{}, ErrRateNotFound
	}
	if vehicle.CapacityKg <= 0 {
		return Result{}, fmt.Errorf("%w: vehicle capacity must be positive", ErrInvalidInput)
	}
	if rate.PricePerTrip < 0 {
		return Result{}, fmt.Errorf("%w: rate price must not be negative", ErrInvalidInput)
	}

	trips := Trips(in.TotalWeightKg, in.Pallets, vehicle.CapacityKg, vehicle.PalletCapacity)
	res.Trips = trips
	res.PricePerTrip = format.Round2(rate.PricePerTrip)
	res.Total = format.Round2(float64(trips) * res.PricePerTrip)
	return res, nil
}

// Trips returns the number of vehicle trips needed for a load, never less
// than one. The pallet term only counts when both pallets and the vehicle's
// pallet capacity are positive.
func Trips(weightKg float64, pallets int, capacityKg float64, palletCapacity int) int {
	trips := 0
	if weightKg > 0 && capacityKg > 0 {
		trips = int(math.Ceil(weightKg / capacityKg))
	}
	if pallets > 0 && palletCapacity > 0 {
		byPallets := (pallets + palletCapacity - 1) / palletCapacity
		if byPallets > trips {
			trips = byPallets
		}
	}
	if trips < 1 {
		trips = 1
	}
	return trips
}
