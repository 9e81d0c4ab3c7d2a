package quotes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/constructa/propostas/internal/freight"
)

func TestLineTotal(t *testing.T) {
	assert.Equal(t, 389.0, LineTotal(10, 38.9, 0))
	assert.Equal(t, 350.1, LineTotal(10, 38.9, 10))
	// 3 × 0.335 = 1.005 rounds up.
	assert.Equal(t, 1.01, LineTotal(3, 0.335, 0))
	assert.Equal(t, 0.0, LineTotal(5, 12, 100))
}

func TestItemPallets(t *testing.T) {
	assert.Equal(t, 0, ItemPallets(100, 0))
	assert.Equal(t, 1, ItemPallets(40, 40))
	assert.Equal(t, 2, ItemPallets(41, 40))
	assert.Equal(t, 1, ItemPallets(0.5, 40))
}

func TestComputeTotals(t *testing.T) {
	items := []Item{
		{LineTotal: 389.00, WeightKg: 500, Pallets: 1},
		{LineTotal: 1250.55, WeightKg: 1200.5, Pallets: 2},
	}

	got := ComputeTotals(items, 5, nil)
	assert.Equal(t, 1639.55, got.Subtotal)
	assert.Equal(t, 81.98, got.DiscountAmount)
	assert.Equal(t, 0.0, got.FreightAmount)
	assert.Equal(t, 1557.57, got.TotalAmount)
	assert.Equal(t, 1700.5, got.TotalWeightKg)
	assert.Equal(t, 3, got.TotalPallets)

	cif := &Freight{Result: freight.Result{Modality: freight.ModalityCIF, Total: 850}}
	got = ComputeTotals(items, 0, cif)
	assert.Equal(t, 850.0, got.FreightAmount)
	assert.Equal(t, 2489.55, got.TotalAmount)

	fob := &Freight{Result: freight.Result{Modality: freight.ModalityFOB, Total: 999}}
	got = ComputeTotals(items, 0, fob)
	assert.Equal(t, 0.0, got.FreightAmount)
	assert.Equal(t, 1639.55, got.TotalAmount)
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		StatusDraft: {StatusSent, StatusCancelled},
		StatusSent:  {StatusAccepted, StatusRejected, StatusExpired, StatusCancelled},
	}
	for _, from := range Statuses() {
		for _, to := range Statuses() {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, Status("archived").Valid())
	assert.Equal(t, "Aceito", StatusAccepted.Label())
}
