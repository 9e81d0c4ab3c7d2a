package reports

import (
	"encoding/csv"
	"io"

	"github.com/constructa/propostas/internal/format"
)

var columns = []string{
	"Número", "Data", "Cliente", "Documento", "Cidade", "UF", "Vendedor",
	"Status", "Validade", "Subtotal", "Desconto", "Frete", "Total",
}

// WriteCSV writes rep with a semicolon separator and pt-BR decimals so it
// opens directly in a Brazilian spreadsheet locale.
func WriteCSV(w io.Writer, rep Report) error {
	writer := csv.NewWriter(w)
	writer.Comma = ';'
	defer writer.Flush()

	if err := writer.Write(columns); err != nil {
		return err
	}
	for _, q := range rep.Rows {
		if err := writer.Write([]string{
			q.Number,
			format.Date(q.CreatedAt),
			q.ClientName,
			q.ClientDocument,
			q.DeliveryCity,
			q.DeliveryState,
			q.VendorName,
			q.Status.Label(),
			format.Day(q.ValidUntil),
			format.Number(q.Subtotal, 2),
			format.Number(q.DiscountAmount, 2),
			format.Number(q.FreightAmount, 2),
			format.Number(q.TotalAmount, 2),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
