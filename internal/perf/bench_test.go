package perf

import (
	"bytes"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/constructa/propostas/internal/freight"
	"github.com/constructa/propostas/internal/numbering"
	"github.com/constructa/propostas/internal/quotes"
	"github.com/constructa/propostas/internal/reports"
)

func sampleItems(n int) []quotes.Item {
	items := make([]quotes.Item, n)
	for i := range items {
		items[i] = quotes.Item{
			ProductCode: fmt.Sprintf("P%04d", i), Quantity: float64(10 + i), UnitPrice: 37.9,
			DiscountPercent: float64(i % 10), WeightKg: 25, Pallets: 1,
		}
	}
	return items
}

func sampleReport(n int) reports.Report {
	created := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	rows := make([]quotes.Quote, n)
	for i := range rows {
		rows[i] = quotes.Quote{
			ID: int64(i + 1), Number: numbering.Format("JS", i+1, 2026), VendorName: "João Silva",
			ClientName: "Construtora Horizonte", DeliveryCity: "Campinas", DeliveryState: "SP",
			Status: quotes.StatusSent, ValidUntil: created.AddDate(0, 0, 15), CreatedAt: created,
			Totals: quotes.Totals{Subtotal: 1000, DiscountAmount: 50, FreightAmount: 234.5, TotalAmount: 1184.5},
		}
	}
	return reports.Report{Title: "Relatório de Orçamentos", GeneratedAt: created, Rows: rows, Total: n}
}

func BenchmarkFreightCalculate(b *testing.B) {
	vehicle := &freight.VehicleType{ID: 1, Name: "Truck", CapacityKg: 14000, PalletCapacity: 12}
	rate := &freight.Rate{ID: 1, City: "Campinas", State: "SP", VehicleTypeID: 1, Modality: freight.ModalityCIF, PricePerTrip: 850}
	in := freight.Input{Modality: freight.ModalityCIF, City: "Campinas", State: "SP", VehicleTypeID: 1, TotalWeightKg: 31500, Pallets: 27}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := freight.Calculate(in, vehicle, rate); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkComputeTotals(b *testing.B) {
	items := sampleItems(50)
	fr := &quotes.Freight{Result: freight.Result{Modality: freight.ModalityCIF, Total: 1700}}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = quotes.ComputeTotals(items, 5, fr)
	}
}

func BenchmarkReportCSV(b *testing.B) {
	rep := sampleReport(reports.MaxRows)
	var buf bytes.Buffer
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if err := reports.WriteCSV(&buf, rep); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReportXLSX(b *testing.B) {
	rep := sampleReport(reports.MaxRows)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := reports.WriteXLSX(rep); err != nil {
			b.Fatal(err)
		}
	}
}

// Full-size exports run inside a request, so they must stay well under the
// server write timeout.
func TestReportExportLatency(t *testing.T) {
	if testing.Short() {
		t.Skip("latency check skipped in short mode")
	}
	rep := sampleReport(reports.MaxRows)
	scenarios := []struct {
		name      string
		run       func() error
		threshold time.Duration
	}{
		{"csv", func() error { return reports.WriteCSV(&bytes.Buffer{}, rep) }, 2 * time.Second},
		{"xlsx", func() error { _, err := reports.WriteXLSX(rep); return err }, 10 * time.Second},
	}
	for _, sc := range scenarios {
		samples := make([]time.Duration, 0, 5)
		for i := 0; i < 5; i++ {
			start := time.Now()
			if err := sc.run(); err != nil {
				t.Fatalf("%s: %v", sc.name, err)
			}
			samples = append(samples, time.Since(start))
		}
		if p95 := percentile95(samples); p95 > sc.threshold {
			t.Fatalf("%s export regression: p95=%s threshold=%s", sc.name, p95, sc.threshold)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	return sorted[index]
}

func TestPercentile95(t *testing.T) {
	samples := []time.Duration{5, 1, 4, 2, 3, 9, 8, 7, 6, 10}
	if got := percentile95(samples); got != 9 {
		t.Fatalf("p95 = %d, want 9", got)
	}
	if got := percentile95(nil); got != 0 {
		t.Fatalf("p95 of empty = %d", got)
	}
}
