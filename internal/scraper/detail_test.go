package scraper

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calfsync/calf-scraper/internal/models"
)

// fakePortal simulates the list/detail navigation of the portal: clicking
// a row trigger moves to that row's detail view, the back control or
// browser history moves back to the list.
type fakePortal struct {
	listHTML   string
	listBody   string
	detailHTML map[string]string // data index -> markup

	current    string // "list" or a data index
	hasBack    bool   // whether the VOLVER control works
	triggers   []string
	backCalls  int
	transcript []string
}

func newFakePortal(listHTML string, details map[string]string) *fakePortal {
	return &fakePortal{
		listHTML:   listHTML,
		listBody:   "Cuentas de la persona",
		detailHTML: details,
		current:    "list",
		hasBack:    true,
	}
}

func (p *fakePortal) state(s string) {
	p.current = s
	p.transcript = append(p.transcript, s)
}

func (p *fakePortal) Navigate(context.Context, string) error { return nil }

func (p *fakePortal) WaitVisible(context.Context, string, time.Duration) error { return nil }

func (p *fakePortal) Click(_ context.Context, selector string) error {
	if idx, ok := strings.CutPrefix(selector, "#"+detailTriggerPrefix); ok {
		p.triggers = append(p.triggers, selector)
		if _, exists := p.detailHTML[idx]; exists && p.current == "list" {
			p.state(idx)
		}
		return nil
	}
	if selector == backControlID {
		if !p.hasBack {
			return assert.AnError
		}
		if p.current != "list" {
			p.state("list")
		}
		return nil
	}
	return nil
}

func (p *fakePortal) SendKeys(context.Context, string, string) error { return nil }

func (p *fakePortal) SetSelectValue(context.Context, string, string) error { return nil }

func (p *fakePortal) Evaluate(_ context.Context, expr string, out interface{}) error {
	if b, ok := out.(*bool); ok {
		*b = false
	}
	return nil
}

func (p *fakePortal) HTML(context.Context) (string, error) {
	if p.current == "list" {
		return p.listHTML, nil
	}
	return p.detailHTML[p.current], nil
}

func (p *fakePortal) BodyText(context.Context) (string, error) {
	if p.current == "list" {
		return p.listBody, nil
	}
	return "Detalle de la cuenta", nil
}

func (p *fakePortal) CurrentURL(context.Context) (string, error) {
	if p.current == "list" {
		return "https://portal.example/cuentas", nil
	}
	return "https://portal.example/detalle/" + p.current, nil
}

func (p *fakePortal) Back(context.Context) error {
	p.backCalls++
	if p.current != "list" {
		p.state("list")
	}
	return nil
}

func testNavigator(sink DebugSink) *DetailNavigator {
	return NewDetailNavigator(
		NewDetailParser(newTestLogger()),
		sink,
		time.Millisecond,
		time.Millisecond,
		newTestLogger(),
	)
}

const twoRowListHTML = `<html><body>
<div id="Grid1ContainerRow_0001"><span id="span_CTLNRO_0001">12</span></div>
<div id="Grid1ContainerRow_0002"><span id="span_CTLNRO_0002">47</span></div>
</body></html>`

func TestDetailOpenMatchesRowByAccountNumber(t *testing.T) {
	portal := newFakePortal(twoRowListHTML, map[string]string{
		"0002": `<html><body><span id="span_vASOCIADO">Asociado: GARCIA ANA</span></body></html>`,
	})
	sink := &fakeSink{}

	rec := testNavigator(sink).Open(context.Background(), portal, models.Account{Nro: 47}, 1)

	assert.Equal(t, "GARCIA ANA", rec["asociado"])
	// Account 47 lives in row 0002 even though its position also says so;
	// the trigger must carry the matched index.
	require.NotEmpty(t, portal.triggers)
	assert.Equal(t, "#vDETALLE_0002", portal.triggers[0])
	assert.Equal(t, "list", portal.current)
	assert.True(t, sink.has("detalle_cuenta_47"))
}

func TestDetailOpenFallsBackToPosition(t *testing.T) {
	// The list shows numbers that match nothing we ask for
	portal := newFakePortal(twoRowListHTML, map[string]string{
		"0001": `<html><body><span id="span_vPERIODODEUDA">2024-07</span></body></html>`,
	})

	rec := testNavigator(&fakeSink{}).Open(context.Background(), portal, models.Account{Nro: 9999}, 0)

	assert.Equal(t, "2024-07", rec["periodo_deuda"])
	require.NotEmpty(t, portal.triggers)
	assert.Equal(t, "#vDETALLE_0001", portal.triggers[0])
	assert.Equal(t, "list", portal.current)
}

func TestDetailOpenReturnsViaHistoryWhenBackControlFails(t *testing.T) {
	portal := newFakePortal(twoRowListHTML, map[string]string{
		"0001": `<html><body><span id="span_vASOCIADO">Asociado: X</span></body></html>`,
	})
	portal.hasBack = false

	rec := testNavigator(&fakeSink{}).Open(context.Background(), portal, models.Account{Nro: 12}, 0)

	assert.Equal(t, "X", rec["asociado"])
	assert.Equal(t, "list", portal.current)
	assert.GreaterOrEqual(t, portal.backCalls, 1)
}

func TestDetailOpenAbsorbsUnreachableDetail(t *testing.T) {
	// No detail views exist at all; every trigger is a dud
	portal := newFakePortal(twoRowListHTML, map[string]string{})
	sink := &fakeSink{}

	rec := testNavigator(sink).Open(context.Background(), portal, models.Account{Nro: 12}, 0)

	assert.Empty(t, rec)
	assert.Equal(t, "list", portal.current)
	assert.True(t, sink.has("detalle_fallido_12"))
}

func TestDetailOpenLeavesBrowserOnListBetweenAccounts(t *testing.T) {
	portal := newFakePortal(twoRowListHTML, map[string]string{
		"0001": `<html><body><span id="span_vASOCIADO">Asociado: A</span></body></html>`,
		"0002": `<html><body><span id="span_vASOCIADO">Asociado: B</span></body></html>`,
	})
	nav := testNavigator(&fakeSink{})

	first := nav.Open(context.Background(), portal, models.Account{Nro: 12}, 0)
	require.Equal(t, "list", portal.current)
	second := nav.Open(context.Background(), portal, models.Account{Nro: 47}, 1)

	assert.Equal(t, "A", first["asociado"])
	assert.Equal(t, "B", second["asociado"])
	// list -> detail -> list -> detail -> list
	assert.Equal(t, []string{"0001", "list", "0002", "list"}, portal.transcript)
}
