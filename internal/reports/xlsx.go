package reports

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/constructa/propostas/internal/format"
)

const sheetName = "Orçamentos"

var colWidths = []float64{16, 12, 34, 18, 20, 5, 22, 11, 11, 14, 14, 14, 14}

// WriteXLSX renders rep as a single-sheet workbook. Money columns are
// numeric cells so they can be summed in the spreadsheet.
func WriteXLSX(rep Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("set sheet name: %w", err)
	}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, w); err != nil {
			return nil, fmt.Errorf("set col width %s: %w", col, err)
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(columns))

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, fmt.Errorf("create title style: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1F3A5F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorders(),
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4, Border: thinBorders()})
	if err != nil {
		return nil, fmt.Errorf("create money style: %w", err)
	}
	textStyle, err := f.NewStyle(&excelize.Style{Border: thinBorders()})
	if err != nil {
		return nil, fmt.Errorf("create text style: %w", err)
	}
	totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("create total style: %w", err)
	}

	if err := f.SetCellValue(sheetName, "A1", rep.Title); err != nil {
		return nil, err
	}
	if err := f.MergeCell(sheetName, "A1", lastCol+"1"); err != nil {
		return nil, fmt.Errorf("merge title: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "A1", titleStyle); err != nil {
		return nil, err
	}
	subtitle := "Gerado em " + format.DateTime(rep.GeneratedAt)
	if rep.Period != "" {
		subtitle = rep.Period + " · " + subtitle
	}
	if err := f.SetCellValue(sheetName, "A2", subtitle); err != nil {
		return nil, err
	}

	const headerRow = 4
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, cell("A", headerRow), &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(sheetName, cell("A", headerRow), cell(lastCol, headerRow), headerStyle); err != nil {
		return nil, err
	}

	row := headerRow + 1
	for _, q := range rep.Rows {
		values := []any{
			q.Number,
			format.Date(q.CreatedAt),
			q.ClientName,
			q.ClientDocument,
			q.DeliveryCity,
			q.DeliveryState,
			q.VendorName,
			q.Status.Label(),
			format.Day(q.ValidUntil),
			format.Round2(q.Subtotal),
			format.Round2(q.DiscountAmount),
			format.Round2(q.FreightAmount),
			format.Round2(q.TotalAmount),
		}
		if err := f.SetSheetRow(sheetName, cell("A", row), &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		if err := f.SetCellStyle(sheetName, cell("A", row), cell("I", row), textStyle); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheetName, cell("J", row), cell(lastCol, row), moneyStyle); err != nil {
			return nil, err
		}
		row++
	}

	if len(rep.Rows) > 0 {
		if err := f.SetCellValue(sheetName, cell("L", row), "Total"); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell(lastCol, row), format.Round2(rep.Sum())); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheetName, cell("L", row), cell(lastCol, row), totalStyle); err != nil {
			return nil, err
		}
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze: true, YSplit: headerRow, TopLeftCell: cell("A", headerRow+1), ActivePane: "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func thinBorders() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "#BFBFBF", Style: 1},
		{Type: "top", Color: "#BFBFBF", Style: 1},
		{Type: "right", Color: "#BFBFBF", Style: 1},
		{Type: "bottom", Color: "#BFBFBF", Style: 1},
	}
}
