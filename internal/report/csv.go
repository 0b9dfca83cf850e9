package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/calfsync/calf-scraper/internal/models"
)

// WriteCSV emits the semicolon-delimited export the downstream tooling
// expects: a person block, the account table, then one block per account
// detail.
func WriteCSV(w io.Writer, person *models.PersonRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	records := [][]string{
		{"DATOS DE LA PERSONA"},
		{"tipo_id", person.TipoID},
		{"nro_id", person.NroID},
		{"usuario", person.Usuario},
		{"persona_id", person.PersonaID},
		{"nombre", person.Nombre},
		{},
		{"CUENTAS"},
		{"nro", "servicio", "domicilio", "estado"},
	}
	for _, account := range person.Cuentas {
		records = append(records, []string{
			strconv.Itoa(account.Nro),
			account.Servicio,
			account.Domicilio,
			account.Estado,
		})
	}

	for _, account := range person.Cuentas {
		if len(account.Detalle) == 0 {
			continue
		}
		records = append(records, []string{}, []string{fmt.Sprintf("DETALLE CUENTA %d", account.Nro)})

		var keys []string
		for key := range account.Detalle {
			if key != "comprobantes" {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			records = append(records, []string{key, fmt.Sprint(account.Detalle[key])})
		}

		items := account.Detalle.LineItems("comprobantes")
		if len(items) > 0 {
			records = append(records, []string{
				"fecha_emision", "fecha_vencimiento", "referencia", "importe", "estado",
			})
			for _, item := range items {
				records = append(records, []string{
					item["fecha_emision"],
					item["fecha_vencimiento"],
					item["referencia"],
					item["importe"],
					item["estado"],
				})
			}
		}
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}
	return nil
}

// ExportCSV writes the CSV report to path
func ExportCSV(path string, person *models.PersonRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()
	return WriteCSV(f, person)
}

// DefaultCSVName builds the conventional export filename
func DefaultCSVName(tipoID, nroID string) string {
	return fmt.Sprintf("calf_%s_%s.csv", tipoID, nroID)
}
