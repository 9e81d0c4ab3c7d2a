// Package freight prices deliveries by vehicle trips and maintains the
// vehicle and per-trip rate tables.
package freight

import (
	"fmt"
	"time"

	"github.com/constructa/propostas/internal/platform/httpx"
)

var (
	ErrInvalidInput     = fmt.Errorf("%w: invalid freight input", httpx.ErrValidation)
	ErrEmptyLoad        = fmt.Errorf("%w: CIF freight needs weight or pallets", httpx.ErrValidation)
	ErrRateNotFound     = fmt.Errorf("%w: no freight rate for destination", httpx.ErrNotFound)
	ErrVehicleNotFound  = fmt.Errorf("%w: vehicle type not found", httpx.ErrNotFound)
	ErrVehicleInactive  = fmt.Errorf("%w: vehicle type is inactive", httpx.ErrValidation)
	ErrDuplicateVehicle = fmt.Errorf("%w: vehicle type name already exists", httpx.ErrDuplicate)
	ErrDuplicateRate    = fmt.Errorf("%w: rate already exists for city, vehicle and modality", httpx.ErrDuplicate)
)

type Modality string

const (
	ModalityCIF Modality = "CIF"
	ModalityFOB Modality = "FOB"
)

func (m Modality) Valid() bool {
	return m == ModalityCIF || m == ModalityFOB
}

type VehicleType struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	CapacityKg     float64 `json:"capacity_kg"`
	PalletCapacity int     `json:"pallet_capacity"`
	IsActive       bool    `json:"is_active"`
}

type Rate struct {
	ID            int64     `json:"id"`
	City          string    `json:"city"`
	State         string    `json:"state"`
	VehicleTypeID int64     `json:"vehicle_type_id"`
	VehicleName   string    `json:"vehicle_name,omitempty"`
	Modality      Modality  `json:"modality"`
	PricePerTrip  float64   `json:"price_per_trip"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ManualOverride replaces the table lookup with user supplied values.
type ManualOverride struct {
	Trips        int     `json:"trips"`
	PricePerTrip float64 `json:"price_per_trip"`
}

type Input struct {
	Modality      Modality        `json:"modality"`
	City          string          `json:"city"`
	State         string          `json:"state"`
	VehicleTypeID int64           `json:"vehicle_type_id,omitempty"`
	TotalWeightKg float64         `json:"total_weight_kg"`
	Pallets       int             `json:"pallets"`
	Manual        *ManualOverride `json:"manual,omitempty"`
}

type Result struct {
	Modality      Modality `json:"modality"`
	VehicleTypeID *int64   `json:"vehicle_type_id,omitempty"`
	VehicleName   string   `json:"vehicle_name,omitempty"`
	City          string   `json:"city"`
	State         string   `json:"state"`
	TotalWeightKg float64  `json:"total_weight_kg"`
	TotalPallets  int      `json:"total_pallets"`
	Trips         int      `json:"trips"`
	PricePerTrip  float64  `json:"price_per_trip"`
	Total         float64  `json:"total"`
	Manual        bool     `json:"manual"`
}

type RateFilters struct {
	Page          int
	Limit         int
	City          string
	State         string
	VehicleTypeID int64
	Modality      Modality
	ActiveOnly    bool
}
