package freight

type VehicleForm struct {
	Name           string  `json:"name" validate:"required,max=80"`
	CapacityKg     float64 `json:"capacity_kg" validate:"gt=0"`
	PalletCapacity int     `json:"pallet_capacity" validate:"gte=0"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

type RateForm struct {
	City          string   `json:"city" validate:"required,max=120"`
	State         string   `json:"state" validate:"required,len=2,alpha"`
	VehicleTypeID int64    `json:"vehicle_type_id" validate:"required,gt=0"`
	Modality      Modality `json:"modality" validate:"required,oneof=CIF FOB"`
	PricePerTrip  float64  `json:"price_per_trip" validate:"gte=0"`
	IsActive      *bool    `json:"is_active,omitempty"`
}

type CalculateRequest struct {
	Modality      Modality        `json:"modality" validate:"required,oneof=CIF FOB"`
	City          string          `json:"city" validate:"max=120"`
	State         string          `json:"state" validate:"omitempty,len=2"`
	VehicleTypeID int64           `json:"vehicle_type_id" validate:"gte=0"`
	TotalWeightKg float64         `json:"total_weight_kg" validate:"gte=0"`
	Pallets       int             `json:"pallets" validate:"gte=0"`
	Manual        *ManualOverride `json:"manual,omitempty"`
}

func (r CalculateRequest) Input() Input {
	return Input{
		Modality:      r.Modality,
		City:          r.City,
		State:         r.State,
		VehicleTypeID: r.VehicleTypeID,
		TotalWeightKg: r.TotalWeightKg,
		Pallets:       r.Pallets,
		Manual:        r.Manual,
	}
}

func active(p *bool) bool {
	if p == nil {
		return true
	}
	return *p
}
