package reports

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/constructa/propostas/internal/format"
)

type pdfColumn struct {
	title string
	size  int
	align align.Type
	value func(r pdfRow) string
}

type pdfRow struct {
	number, date, client, vendor, status, valid, total string
}

var pdfColumns = []pdfColumn{
	{"Número", 2, align.Left, func(r pdfRow) string { return r.number }},
	{"Data", 1, align.Center, func(r pdfRow) string { return r.date }},
	{"Cliente", 3, align.Left, func(r pdfRow) string { return r.client }},
	{"Vendedor", 2, align.Left, func(r pdfRow) string { return r.vendor }},
	{"Status", 1, align.Center, func(r pdfRow) string { return r.status }},
	{"Validade", 1, align.Center, func(r pdfRow) string { return r.valid }},
	{"Total", 2, align.Right, func(r pdfRow) string { return r.total }},
}

var (
	mutedColor  = &props.Color{Red: 90, Green: 90, Blue: 90}
	headerColor = &props.Color{Red: 31, Green: 58, Blue: 95}
	stripeColor = &props.Color{Red: 243, Green: 245, Blue: 248}
)

// WritePDF renders rep as a landscape A4 table.
func WritePDF(rep Report) ([]byte, error) {
	cfg := config.NewBuilder().
		WithOrientation(orientation.Horizontal).
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).
		WithTopMargin(10).
		WithRightMargin(10).
		WithPageNumber(props.PageNumber{
			Pattern: "Página {current} de {total}",
			Place:   props.RightBottom,
			Size:    7,
			Color:   mutedColor,
		}).
		Build()

	m := maroto.New(cfg)
	addTitle(m, rep)
	addHeaderRow(m)
	for i, q := range rep.Rows {
		addDataRow(m, pdfRow{
			number: q.Number,
			date:   format.Date(q.CreatedAt),
			client: q.ClientName,
			vendor: q.VendorName,
			status: q.Status.Label(),
			valid:  format.Day(q.ValidUntil),
			total:  format.BRL(q.TotalAmount),
		}, i%2 == 1)
	}
	addTotals(m, rep)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate report pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func addTitle(m core.Maroto, rep Report) {
	m.AddRows(
		row.New(10).Add(
			col.New(12).Add(text.New(rep.Title, props.Text{Size: 14, Style: fontstyle.Bold})),
		),
	)
	left := rep.Period
	if left == "" {
		left = "Todos os períodos"
	}
	m.AddRows(
		row.New(7).Add(
			col.New(6).Add(text.New(left, props.Text{Size: 8, Color: mutedColor})),
			col.New(6).Add(text.New("Gerado em "+format.DateTime(rep.GeneratedAt), props.Text{
				Size: 8, Align: align.Right, Color: mutedColor,
			})),
		),
		row.New(3),
	)
}

func addHeaderRow(m core.Maroto) {
	cell := &props.Cell{BackgroundColor: headerColor}
	r := row.New(7)
	for _, c := range pdfColumns {
		r.Add(col.New(c.size).Add(text.New(c.title, props.Text{
			Size: 8, Style: fontstyle.Bold, Align: c.align, Top: 1.5, Left: 1, Right: 1,
			Color: &props.Color{Red: 255, Green: 255, Blue: 255},
		})).WithStyle(cell))
	}
	m.AddRows(r)
}

func addDataRow(m core.Maroto, data pdfRow, striped bool) {
	r := row.New(6)
	for _, c := range pdfColumns {
		column := col.New(c.size).Add(text.New(c.value(data), props.Text{
			Size: 7, Align: c.align, Top: 1, Left: 1, Right: 1,
		}))
		if striped {
			column.WithStyle(&props.Cell{BackgroundColor: stripeColor})
		}
		r.Add(column)
	}
	m.AddRows(r)
}

func addTotals(m core.Maroto, rep Report) {
	summary := fmt.Sprintf("%d orçamento(s)", len(rep.Rows))
	if rep.Truncated {
		summary += fmt.Sprintf(" de %d; exportação limitada a %d linhas", rep.Total, MaxRows)
	}
	m.AddRows(
		row.New(3),
		row.New(7).Add(
			col.New(8).Add(text.New(summary, props.Text{Size: 8, Color: mutedColor})),
			col.New(2).Add(text.New("Total (sem cancelados)", props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right})),
			col.New(2).Add(text.New(format.BRL(rep.Sum()), props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right, Right: 1})),
		),
	)
}
