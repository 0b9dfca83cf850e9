package report

import (
	"encoding/json"
	"io"

	"github.com/calfsync/calf-scraper/internal/models"
)

// WriteJSON emits the person record as indented JSON
func WriteJSON(w io.Writer, person *models.PersonRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(person)
}
