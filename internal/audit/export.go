package audit

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/constructa/propostas/internal/format"
)

var csvHeader = []string{"Data/hora", "Usuário", "Ação", "Entidade", "ID", "Detalhes"}

// WriteCSV writes rows with ';' separators so pt-BR spreadsheets split columns.
func WriteCSV(w io.Writer, rows []TimelineRow) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range rows {
		actor := row.ActorName
		if actor == "" && row.ActorID != nil {
			actor = "#" + strconv.FormatInt(*row.ActorID, 10)
		}
		if actor == "" {
			actor = "sistema"
		}
		meta := ""
		if len(row.Meta) > 0 {
			b, err := json.Marshal(row.Meta)
			if err != nil {
				return err
			}
			meta = string(b)
		}
		if err := cw.Write([]string{format.DateTime(row.At), actor, row.Action, row.Entity, row.EntityID, meta}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
