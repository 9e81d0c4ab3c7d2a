package proposals

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/constructa/propostas/internal/format"
	"github.com/constructa/propostas/internal/freight"
)

// NativeRenderer draws the proposal with gofpdf core fonts, without any
// external service.
type NativeRenderer struct{}

func NewNativeRenderer() *NativeRenderer { return &NativeRenderer{} }

var itemCols = []struct {
	title string
	width float64
	align string
}{
	{"#", 8, "C"},
	{"Código", 22, "L"},
	{"Descrição", 70, "L"},
	{"Qtd", 18, "R"},
	{"Un", 12, "C"},
	{"Preço unit.", 25, "R"},
	{"Total", 25, "R"},
}

func (NativeRenderer) Render(ctx context.Context, doc Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := doc.Quote
	if q == nil {
		return nil, fmt.Errorf("proposals: document has no quote")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("cp1252")
	pdf.SetTitle(tr("Proposta "+doc.Number), false)
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 15)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s · Proposta %s · página %d", doc.CompanyName, doc.Number, pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(194, 65, 12)
	pdf.CellFormat(110, 8, tr(doc.CompanyName), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(34, 34, 34)
	pdf.CellFormat(0, 8, tr("Proposta "+doc.Number), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(110, 5, tr("Proposta comercial"), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Orçamento "+q.Number), "", 1, "R", false, 0, "")
	pdf.CellFormat(110, 5, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Emitida em "+format.Date(doc.IssuedAt)), "", 1, "R", false, 0, "")
	pdf.CellFormat(110, 5, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Válida até "+format.LongDate(doc.ExpiresAt)), "", 1, "R", false, 0, "")
	pdf.SetDrawColor(194, 65, 12)
	pdf.SetLineWidth(0.8)
	pdf.Line(12, pdf.GetY()+2, 198, pdf.GetY()+2)
	pdf.SetLineWidth(0.2)
	pdf.Ln(6)

	section := func(title string) {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetTextColor(85, 85, 85)
		pdf.CellFormat(0, 6, tr(title), "", 1, "L", false, 0, "")
		pdf.SetTextColor(34, 34, 34)
		pdf.SetFont("Helvetica", "", 9)
	}

	section("CLIENTE")
	client := q.ClientName
	if q.ClientDocument != "" {
		client += " · " + q.ClientDocument
	}
	pdf.CellFormat(0, 5, tr(client), "", 1, "L", false, 0, "")
	for _, line := range []string{q.ClientEmail, q.ClientPhone} {
		if line != "" {
			pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}
	if q.DeliveryCity != "" {
		pdf.CellFormat(0, 5, tr("Entrega: "+q.DeliveryCity+"/"+q.DeliveryState), "", 1, "L", false, 0, "")
	}

	section("ITENS")
	pdf.SetFont("Helvetica", "B", 8)
	pdf.SetFillColor(243, 244, 246)
	for _, c := range itemCols {
		pdf.CellFormat(c.width, 6, tr(c.title), "B", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 8)
	for _, it := range q.Items {
		cells := []string{
			fmt.Sprint(it.Position),
			it.ProductCode,
			clip(it.Description, 48),
			format.Number(it.Quantity, 2),
			it.Unit,
			format.BRL(it.UnitPrice),
			format.BRL(it.LineTotal),
		}
		for i, c := range itemCols {
			pdf.CellFormat(c.width, 5.5, tr(cells[i]), "B", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(3)

	total := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 9)
		pdf.CellFormat(130, 5.5, "", "", 0, "", false, 0, "")
		pdf.CellFormat(25, 5.5, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(25, 5.5, tr(value), "", 1, "R", false, 0, "")
	}
	total("Subtotal", format.BRL(q.Subtotal), false)
	if q.DiscountAmount > 0 {
		total("Desconto", "-"+format.BRL(q.DiscountAmount), false)
	}
	if fr := q.Freight; fr != nil {
		value := format.BRL(fr.Total)
		if fr.Modality == freight.ModalityFOB {
			value = "FOB"
		}
		total("Frete "+string(fr.Modality), value, false)
	}
	total("Total", format.BRL(q.TotalAmount), true)

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(107, 114, 128)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Peso total estimado: %s kg · %d palete(s)", format.Number(q.TotalWeightKg, 1), q.TotalPallets)), "", 1, "L", false, 0, "")
	pdf.SetTextColor(34, 34, 34)

	if q.PaymentTerms != "" {
		section("CONDIÇÕES DE PAGAMENTO")
		pdf.MultiCell(0, 5, tr(q.PaymentTerms), "", "L", false)
	}
	if q.Notes != "" {
		section("OBSERVAÇÕES")
		pdf.MultiCell(0, 5, tr(q.Notes), "", "L", false)
	}
	if doc.Message != "" {
		section("MENSAGEM")
		pdf.MultiCell(0, 5, tr(doc.Message), "", "L", false)
	}
	section("VENDEDOR")
	pdf.CellFormat(0, 5, tr(q.VendorName+" · "+q.VendorEmail), "", 1, "L", false, 0, "")

	if doc.AcceptURL != "" {
		pdf.Ln(4)
		pdf.SetFillColor(255, 247, 237)
		pdf.MultiCell(0, 5, tr("Para aceitar ou recusar esta proposta acesse: "+doc.AcceptURL), "1", "L", true)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("proposals: native pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
