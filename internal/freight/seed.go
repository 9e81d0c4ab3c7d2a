package freight

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Seed is the YAML document accepted by ImportRates.
//
//	vehicles:
//	  - name: Truck
//	    capacity_kg: 14000
//	    pallet_capacity: 12
//	rates:
//	  - city: Campinas
//	    state: SP
//	    vehicle: Truck
//	    modality: CIF
//	    price_per_trip: 850
type Seed struct {
	Vehicles []SeedVehicle `yaml:"vehicles"`
	Rates    []SeedRate    `yaml:"rates"`
}

type SeedVehicle struct {
	Name           string  `yaml:"name"`
	CapacityKg     float64 `yaml:"capacity_kg"`
	PalletCapacity int     `yaml:"pallet_capacity"`
}

type SeedRate struct {
	City         string   `yaml:"city"`
	State        string   `yaml:"state"`
	Vehicle      string   `yaml:"vehicle"`
	Modality     Modality `yaml:"modality"`
	PricePerTrip float64  `yaml:"price_per_trip"`
}

// ImportSummary reports what an import changed.
type ImportSummary struct {
	Vehicles     int `json:"vehicles"`
	RatesCreated int `json:"rates_created"`
	RatesUpdated int `json:"rates_updated"`
}

// ParseSeed decodes and sanity-checks a seed document.
func ParseSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if err == io.EOF {
			return Seed{}, fmt.Errorf("%w: empty seed file", ErrInvalidInput)
		}
		return Seed{}, fmt.Errorf("%w: parse seed: %v", ErrInvalidInput, err)
	}
	for i, v := range seed.Vehicles {
		if v.Name == "" || v.CapacityKg <= 0 || v.PalletCapacity < 0 {
			return Seed{}, fmt.Errorf("%w: vehicles[%d] needs a name and a positive capacity", ErrInvalidInput, i)
		}
	}
	for i, r := range seed.Rates {
		if r.City == "" || len(r.State) != 2 || r.Vehicle == "" {
			return Seed{}, fmt.Errorf("%w: rates[%d] needs city, two-letter state and vehicle", ErrInvalidInput, i)
		}
		if !r.Modality.Valid() {
			return Seed{}, fmt.Errorf("%w: rates[%d] modality must be CIF or FOB", ErrInvalidInput, i)
		}
		if r.PricePerTrip < 0 {
			return Seed{}, fmt.Errorf("%w: rates[%d] price must not be negative", ErrInvalidInput, i)
		}
	}
	return seed, nil
}
