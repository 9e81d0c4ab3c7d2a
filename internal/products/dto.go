package products

// ProductForm is the create/update payload.
type ProductForm struct {
	Code           string  `json:"code" validate:"required,max=40"`
	Name           string  `json:"name" validate:"required,max=200"`
	Description    string  `json:"description" validate:"max=2000"`
	Unit           string  `json:"unit" validate:"required,max=10"`
	UnitPrice      float64 `json:"unit_price" validate:"gte=0"`
	WeightKg       float64 `json:"weight_kg" validate:"gte=0"`
	UnitsPerPallet int     `json:"units_per_pallet" validate:"gte=0"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

func (f ProductForm) toProduct() Product {
	active := true
	if f.IsActive != nil {
		active = *f.IsActive
	}
	return Product{
		Code:           f.Code,
		Name:           f.Name,
		Description:    f.Description,
		Unit:           f.Unit,
		UnitPrice:      f.UnitPrice,
		WeightKg:       f.WeightKg,
		UnitsPerPallet: f.UnitsPerPallet,
		IsActive:       active,
	}
}
