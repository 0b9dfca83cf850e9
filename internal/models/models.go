package models

// Account is one service account row from the portal's "Cuentas de la
// persona" list view.
type Account struct {
	Nro       int          `json:"nro"`
	Servicio  string       `json:"servicio"`
	Domicilio string       `json:"domicilio"`
	Estado    string       `json:"estado"`
	Detalle   DetailRecord `json:"detalle,omitempty"`
}

// PersonRecord is the result of a full run: the identified person plus
// every account found for them.
type PersonRecord struct {
	TipoID    string    `json:"tipo_id"`
	NroID     string    `json:"nro_id"`
	Usuario   string    `json:"usuario,omitempty"`
	PersonaID string    `json:"persona_id,omitempty"`
	Nombre    string    `json:"nombre,omitempty"`
	Cuentas   []Account `json:"cuentas"`
}

// DetailRecord holds whatever the detail parser could resolve for one
// account. Missing keys mean the field was not present on the page, not
// that parsing failed.
type DetailRecord map[string]interface{}

// LineItems returns the line-item rows stored under key, or nil when the
// key is absent or holds something else.
func (d DetailRecord) LineItems(key string) []map[string]string {
	v, ok := d[key]
	if !ok {
		return nil
	}
	items, ok := v.([]map[string]string)
	if !ok {
		return nil
	}
	return items
}
