package scraper

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/calfsync/calf-scraper/internal/models"
)

// GeneXus grid id conventions of the portal's list view.
const (
	rowContainerPrefix = "Grid1ContainerRow_"
	cellIDPrefix       = "span_CTL"
)

// accountLinePattern matches one account rendered as plain text: number,
// service kind, address, connection status.
var accountLinePattern = regexp.MustCompile(
	`(?i)(\d+)\s+(Energ[ií]a|Gas|Agua)\s+(.+?)\s+(CONECTADO|DESCONECTADO|ACTIVO|INACTIVO|SUSPENDIDO)`,
)

// AccountListExtractor pulls the account rows out of the post-login page.
// Three strategies run in fixed order from most to least structured; the
// first one that yields rows wins. A strategy blowing up counts as zero
// rows, and an overall empty result degrades the run instead of failing
// it.
type AccountListExtractor struct {
	logger *logrus.Entry
}

// NewAccountListExtractor creates an extractor
func NewAccountListExtractor(logger *logrus.Logger) *AccountListExtractor {
	return &AccountListExtractor{
		logger: logger.WithField("component", "accounts"),
	}
}

// Extract returns the accounts found on the current page, possibly none
func (e *AccountListExtractor) Extract(ctx context.Context, page Page) []models.Account {
	var doc *goquery.Document
	if html, err := page.HTML(ctx); err != nil {
		e.logger.WithError(err).Warn("Could not snapshot page markup")
	} else if parsed, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err != nil {
		e.logger.WithError(err).Warn("Could not parse page markup")
	} else {
		doc = parsed
	}

	if doc != nil {
		if rows := e.try("structured-id", func() []models.Account { return extractStructuredRows(doc) }); len(rows) > 0 {
			return rows
		}
		if rows := e.try("generic-table", func() []models.Account { return extractGenericTableRows(doc) }); len(rows) > 0 {
			return rows
		}
	}

	body, err := page.BodyText(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Could not read page text, account list degraded to empty")
		return nil
	}
	rows := e.try("text-pattern", func() []models.Account { return extractTextRows(body) })
	if len(rows) == 0 {
		e.logger.Warn("No accounts extracted by any strategy")
	}
	return rows
}

// try runs one strategy, absorbing panics as an empty result
func (e *AccountListExtractor) try(name string, fn func() []models.Account) (rows []models.Account) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{"strategy": name, "panic": r}).
				Warn("Extraction strategy aborted")
			rows = nil
		}
	}()
	rows = fn()
	e.logger.WithFields(logrus.Fields{"strategy": name, "rows": len(rows)}).
		Debug("List strategy result")
	return rows
}

// extractStructuredRows reads the grid through its row container ids and
// per-cell span ids. Missing cells become empty fields, not errors.
func extractStructuredRows(doc *goquery.Document) []models.Account {
	var accounts []models.Account
	doc.Find(`[id^="` + rowContainerPrefix + `"]`).Each(func(_ int, row *goquery.Selection) {
		id, _ := row.Attr("id")
		idx := strings.TrimPrefix(id, rowContainerPrefix)
		if idx == "" {
			return
		}
		cell := func(field string) string {
			return strings.TrimSpace(doc.Find("#" + cellIDPrefix + field + "_" + idx).First().Text())
		}
		nro, _ := strconv.Atoi(cell("NRO"))
		accounts = append(accounts, models.Account{
			Nro:       nro,
			Servicio:  cell("SERVICIO"),
			Domicilio: cell("DOMICILIO"),
			Estado:    cell("ESTADO"),
		})
	})
	return accounts
}

// extractGenericTableRows scans every table row with enough cells to look
// like account data. Rows short on cell text are skipped; a non-numeric
// first cell yields account number zero.
func extractGenericTableRows(doc *goquery.Document) []models.Account {
	var accounts []models.Account
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		texts := make([]string, 0, cells.Length())
		cells.Each(func(_ int, c *goquery.Selection) {
			texts = append(texts, strings.TrimSpace(c.Text()))
		})
		if len(texts) < 4 {
			return
		}
		nro := 0
		if n, err := strconv.Atoi(texts[0]); err == nil {
			nro = n
		}
		accounts = append(accounts, models.Account{
			Nro:       nro,
			Servicio:  texts[1],
			Domicilio: texts[2],
			Estado:    texts[3],
		})
	})
	return accounts
}

// extractTextRows mines the rendered page text for account-shaped lines
func extractTextRows(body string) []models.Account {
	var accounts []models.Account
	for _, m := range accountLinePattern.FindAllStringSubmatch(body, -1) {
		nro, _ := strconv.Atoi(m[1])
		accounts = append(accounts, models.Account{
			Nro:       nro,
			Servicio:  m[2],
			Domicilio: strings.TrimSpace(m[3]),
			Estado:    strings.ToUpper(m[4]),
		})
	}
	return accounts
}
