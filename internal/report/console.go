package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/calfsync/calf-scraper/internal/models"
)

// detailKeyOrder fixes the print order of the scalar detail fields.
var detailKeyOrder = []string{
	"asociado",
	"domicilio",
	"periodo_deuda",
	"resumen",
	"importe_adeudado",
	"comprobantes_adeudados",
	"estado_deuda",
}

// WriteConsole renders the person and their accounts as a human-readable
// report
func WriteConsole(w io.Writer, person *models.PersonRecord) {
	fmt.Fprintf(w, "\nPersona %s %s\n", person.TipoID, person.NroID)
	if person.Nombre != "" {
		fmt.Fprintf(w, "Nombre:  %s\n", person.Nombre)
	}
	if person.Usuario != "" {
		fmt.Fprintf(w, "Usuario: %s\n", person.Usuario)
	}
	if person.PersonaID != "" {
		fmt.Fprintf(w, "Persona: %s\n", person.PersonaID)
	}

	if len(person.Cuentas) == 0 {
		fmt.Fprintln(w, "\nSin cuentas extraídas.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Cuenta", "Servicio", "Domicilio", "Estado"})
	for _, account := range person.Cuentas {
		t.AppendRow(table.Row{account.Nro, account.Servicio, account.Domicilio, account.Estado})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	for _, account := range person.Cuentas {
		writeAccountDetail(w, account)
	}
}

func writeAccountDetail(w io.Writer, account models.Account) {
	if len(account.Detalle) == 0 {
		return
	}
	fmt.Fprintf(w, "\nDetalle cuenta %d:\n", account.Nro)

	printed := map[string]bool{}
	for _, key := range detailKeyOrder {
		if v, ok := account.Detalle[key]; ok {
			fmt.Fprintf(w, "  %s: %v\n", key, v)
			printed[key] = true
		}
	}

	// Any remaining scalar keys, in stable order
	var rest []string
	for key := range account.Detalle {
		if !printed[key] && key != "comprobantes" {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		fmt.Fprintf(w, "  %s: %v\n", key, account.Detalle[key])
	}

	items := account.Detalle.LineItems("comprobantes")
	if len(items) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Emisión", "Vencimiento", "Referencia", "Importe", "Estado"})
	for _, item := range items {
		t.AppendRow(table.Row{
			item["fecha_emision"],
			item["fecha_vencimiento"],
			item["referencia"],
			item["importe"],
			item["estado"],
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
