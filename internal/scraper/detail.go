package scraper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/calfsync/calf-scraper/internal/models"
)

// Detail navigation controls.
const (
	detailTriggerPrefix = "vDETALLE_"
	backControlID       = "#VOLVER"
)

// DetailNavigator opens one account's detail view, hands the page to the
// parser and brings the browser back to the account list. Every failure is
// absorbed: an account whose detail cannot be reached simply ends up with
// an empty record, and the navigator does not hand control back until the
// list view is confirmed (or its retries are spent), so the next account
// starts from a known page.
type DetailNavigator struct {
	parser *DetailParser
	debug  DebugSink
	logger *logrus.Entry

	settleDelay time.Duration
	returnDelay time.Duration
}

// NewDetailNavigator creates a navigator
func NewDetailNavigator(parser *DetailParser, debug DebugSink, settleDelay, returnDelay time.Duration, logger *logrus.Logger) *DetailNavigator {
	if debug == nil {
		debug = nopSink{}
	}
	if settleDelay <= 0 {
		settleDelay = 5 * time.Second
	}
	if returnDelay <= 0 {
		returnDelay = 3 * time.Second
	}
	return &DetailNavigator{
		parser:      parser,
		debug:       debug,
		logger:      logger.WithField("component", "detail"),
		settleDelay: settleDelay,
		returnDelay: returnDelay,
	}
}

// Open fetches the detail record for account, which sits at position index
// (0-based) in the extracted list. Always returns a record, possibly empty.
func (n *DetailNavigator) Open(ctx context.Context, page Page, account models.Account, index int) (rec models.DetailRecord) {
	logger := n.logger.WithField("cuenta", account.Nro)
	rec = models.DetailRecord{}
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Detail navigation aborted")
			rec = models.DetailRecord{"error": fmt.Sprint(r)}
		}
	}()

	listURL, err := page.CurrentURL(ctx)
	if err != nil {
		logger.WithError(err).Warn("Could not read list URL")
	}

	idx := n.resolveRowIndex(ctx, page, account, index)

	if !n.openDetail(ctx, page, idx, listURL) {
		logger.Warn("Detail view did not open")
		n.debug.Capture(ctx, fmt.Sprintf("detalle_fallido_%d", account.Nro))
		n.returnToList(ctx, page, logger)
		return rec
	}

	html, err := page.HTML(ctx)
	if err != nil {
		logger.WithError(err).Warn("Could not snapshot detail view")
	} else {
		rec = n.parser.Parse(html)
	}

	n.debug.Capture(ctx, fmt.Sprintf("detalle_cuenta_%d", account.Nro))
	n.returnToList(ctx, page, logger)
	return rec
}

// resolveRowIndex finds the grid data index whose account-number cell
// matches exactly; when no row matches it assumes the portal kept the
// rendering order and derives the index from the list position.
func (n *DetailNavigator) resolveRowIndex(ctx context.Context, page Page, account models.Account, index int) string {
	want := strconv.Itoa(account.Nro)

	if html, err := page.HTML(ctx); err == nil {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
			found := ""
			doc.Find(`[id^="` + rowContainerPrefix + `"]`).EachWithBreak(func(_ int, row *goquery.Selection) bool {
				id, _ := row.Attr("id")
				idx := strings.TrimPrefix(id, rowContainerPrefix)
				if idx == "" {
					return true
				}
				nro := strings.TrimSpace(doc.Find("#" + cellIDPrefix + "NRO_" + idx).First().Text())
				if nro == want {
					found = idx
					return false
				}
				return true
			})
			if found != "" {
				return found
			}
		}
	}

	idx := fmt.Sprintf("%04d", index+1)
	n.logger.WithFields(logrus.Fields{"cuenta": account.Nro, "row": idx}).
		Warn("No exact row match, falling back to list position")
	return idx
}

// openDetail fires the row's detail trigger and waits for the page to
// leave the list. A second, event-level dispatch covers grids whose
// trigger only reacts to the GeneXus client event.
func (n *DetailNavigator) openDetail(ctx context.Context, page Page, idx, listURL string) bool {
	trigger := "#" + detailTriggerPrefix + idx
	if err := page.Click(ctx, trigger); err != nil {
		script := fmt.Sprintf(`(() => {
	const el = document.getElementById(%q);
	if (!el) return false;
	el.click();
	return true;
})()`, detailTriggerPrefix+idx)
		var clicked bool
		if err := page.Evaluate(ctx, script, &clicked); err != nil || !clicked {
			n.logger.WithField("trigger", trigger).Debug("Detail trigger not clickable")
		}
	}

	sleep(ctx, n.settleDelay)
	if n.leftList(ctx, page, listURL) {
		return true
	}

	// Event-level fallback
	event := fmt.Sprintf(`(() => {
	if (window.gx && gx.evt && typeof gx.evt.execCliEvt === 'function') {
		gx.evt.execCliEvt('', 'e11v1_client', 'vDETALLE.CLICK', %q);
		return true;
	}
	return false;
})()`, idx)
	var fired bool
	if err := page.Evaluate(ctx, event, &fired); err != nil || !fired {
		return false
	}
	sleep(ctx, n.settleDelay)
	return n.leftList(ctx, page, listURL)
}

func (n *DetailNavigator) leftList(ctx context.Context, page Page, listURL string) bool {
	current, err := page.CurrentURL(ctx)
	if err != nil {
		return false
	}
	return listURL != "" && current != listURL
}

// returnToList drives the browser back to the account list: the view's
// own back control first, then browser history, retried once.
func (n *DetailNavigator) returnToList(ctx context.Context, page Page, logger *logrus.Entry) {
	if err := page.Click(ctx, backControlID); err != nil {
		script := `(() => {
	const el = document.getElementById('VOLVER');
	if (!el) return false;
	el.click();
	return true;
})()`
		var clicked bool
		page.Evaluate(ctx, script, &clicked)
	}
	sleep(ctx, n.returnDelay)
	if n.onList(ctx, page) {
		return
	}

	for attempt := 0; attempt < 2; attempt++ {
		if err := page.Back(ctx); err != nil {
			logger.WithError(err).Debug("History back failed")
		}
		sleep(ctx, n.returnDelay)
		if n.onList(ctx, page) {
			return
		}
	}

	logger.Error("Could not confirm return to the account list")
}

func (n *DetailNavigator) onList(ctx context.Context, page Page) bool {
	body, err := page.BodyText(ctx)
	if err != nil {
		return false
	}
	return strings.Contains(body, successMarker)
}
