package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/calfsync/calf-scraper/internal/models"
)

// Detail view markers.
const (
	resumenSpanID = "#span_vRESUMEN"
	noDebtMarker  = "SIN COMPROBANTES PENDIENTES"
	lineItemsKey  = "comprobantes"
)

var (
	owedAmountPattern   = regexp.MustCompile(`\$\s*([\d.,]+)`)
	overdueCountPattern = regexp.MustCompile(`(?i)(\d+)\s+comprobantes?\s+adeudados?`)
)

// headerFields maps the detail view's labeled spans to record keys. The
// first two render as "label: value", so the value is taken after the
// colon.
var headerFields = []struct {
	selector   string
	key        string
	stripLabel bool
}{
	{"#span_vASOCIADO", "asociado", true},
	{"#span_vDOMICILIO", "domicilio", true},
	{"#span_vPERIODODEUDA", "periodo_deuda", false},
}

// lineItemFields maps the per-row cell id fragments to item keys.
var lineItemFields = []struct {
	field string
	key   string
}{
	{"FCHEMISION", "fecha_emision"},
	{"FCHVTO", "fecha_vencimiento"},
	{"REFERENCIA", "referencia"},
	{"IMPORTE", "importe"},
	{"COMPESTADO", "estado"},
}

// DetailParser turns a detail view snapshot into a DetailRecord. It is
// strictly best effort: whatever resolves goes into the record, whatever
// does not stays absent, and an internal failure produces a record whose
// only key is the error.
type DetailParser struct {
	logger *logrus.Entry
}

// NewDetailParser creates a parser
func NewDetailParser(logger *logrus.Logger) *DetailParser {
	return &DetailParser{
		logger: logger.WithField("component", "detail-parser"),
	}
}

// Parse extracts every resolvable field from the markup. Never panics.
func (p *DetailParser) Parse(html string) (rec models.DetailRecord) {
	rec = models.DetailRecord{}
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("panic", r).Warn("Detail parsing aborted")
			rec = models.DetailRecord{"error": fmt.Sprint(r)}
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.DetailRecord{"error": err.Error()}
	}

	p.parseHeader(doc, rec)
	p.parseFooter(doc, rec)
	if strings.Contains(doc.Text(), noDebtMarker) {
		rec["estado_deuda"] = noDebtMarker
	}
	p.parseLineItems(doc, rec)

	return rec
}

func (p *DetailParser) parseHeader(doc *goquery.Document, rec models.DetailRecord) {
	for _, field := range headerFields {
		text := strings.TrimSpace(doc.Find(field.selector).First().Text())
		if text == "" {
			continue
		}
		if field.stripLabel {
			if i := strings.Index(text, ":"); i >= 0 {
				text = strings.TrimSpace(text[i+1:])
			}
		}
		if text != "" {
			rec[field.key] = text
		}
	}
}

// parseFooter keeps the raw summary line and mines it for the owed amount
// and the overdue voucher count
func (p *DetailParser) parseFooter(doc *goquery.Document, rec models.DetailRecord) {
	resumen := strings.TrimSpace(doc.Find(resumenSpanID).First().Text())
	if resumen == "" {
		return
	}
	rec["resumen"] = resumen
	if m := owedAmountPattern.FindStringSubmatch(resumen); m != nil {
		rec["importe_adeudado"] = m[1]
	}
	if m := overdueCountPattern.FindStringSubmatch(resumen); m != nil {
		if count, err := strconv.Atoi(m[1]); err == nil {
			rec["comprobantes_adeudados"] = count
		}
	}
}

// parseLineItems walks the voucher grid. A row contributes only when at
// least one of its cells resolved.
func (p *DetailParser) parseLineItems(doc *goquery.Document, rec models.DetailRecord) {
	var items []map[string]string
	doc.Find(`[id^="` + rowContainerPrefix + `"]`).Each(func(_ int, row *goquery.Selection) {
		id, _ := row.Attr("id")
		idx := strings.TrimPrefix(id, rowContainerPrefix)
		if idx == "" {
			return
		}
		item := map[string]string{}
		for _, field := range lineItemFields {
			text := strings.TrimSpace(doc.Find("#" + cellIDPrefix + field.field + "_" + idx).First().Text())
			if text != "" {
				item[field.key] = text
			}
		}
		if len(item) > 0 {
			items = append(items, item)
		}
	})
	if len(items) > 0 {
		rec[lineItemsKey] = items
	}
}
