package web

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"penguinboard/internal/charts"
	"penguinboard/pkg/penguins"
)

const (
	pageTitle  = "Nollettecs Penguins"
	sourceLink = "https://github.com/nollettecs/cintel-02-data"
	htmxScript = "https://unpkg.com/htmx.org@1.9.12"
)

// htmlWriter accumulates the first write error so components can emit
// markup without checking every call.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(parts ...string) {
	for _, p := range parts {
		if h.err != nil {
			return
		}
		_, h.err = io.WriteString(h.w, p)
	}
}

func (h *htmlWriter) text(s string) { h.raw(templ.EscapeString(s)) }

func (h *htmlWriter) component(ctx context.Context, c templ.Component) {
	if h.err != nil {
		return
	}
	h.err = c.Render(ctx, h.w)
}

// pageView is everything the full page needs.
type pageView struct {
	Panels panelData
	Errors []penguins.ParameterError
}

func page(v pageView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`,
			`<title>`, pageTitle, `</title>`,
			`<script src="`, htmxScript, `"></script>`,
			`<style>`, stylesheet, `</style></head><body>`,
			`<header><h1>`, pageTitle, `</h1></header><div class="layout"><aside>`)
		h.component(ctx, sidebar(v.Panels.Selection, v.Errors))
		h.raw(`</aside><main>`)
		h.raw(`<details open><summary>Data Table</summary><div class="scroll">`)
		h.component(ctx, renderPanel(panelTable, v.Panels, false))
		h.raw(`</div></details><details open><summary>Data Grid</summary><div class="scroll">`)
		h.component(ctx, renderPanel(panelGrid, v.Panels, false))
		h.raw(`</div></details>`)
		h.raw(`<div class="tabs">`,
			`<input type="radio" name="tab" id="tab-plotly" checked><label for="tab-plotly">Plotly Histogram</label>`,
			`<input type="radio" name="tab" id="tab-seaborn"><label for="tab-seaborn">Seaborn Histogram</label>`,
			`<input type="radio" name="tab" id="tab-scatter"><label for="tab-scatter">Plotly Scatterplot</label>`,
			`<section class="tab-panel" id="tabpanel-plotly">`)
		h.component(ctx, renderPanel(panelPlotlyHistogram, v.Panels, false))
		h.raw(`</section><section class="tab-panel" id="tabpanel-seaborn">`)
		h.component(ctx, renderPanel(panelSeabornHistogram, v.Panels, false))
		h.raw(`</section><section class="tab-panel" id="tabpanel-scatter"><h3>Plotly Scatterplot: Species</h3>`)
		h.component(ctx, renderPanel(panelScatter, v.Panels, false))
		h.raw(`</section></div></main></div></body></html>`)
		return h.err
	})
}

func sidebar(sel penguins.Selection, errs []penguins.ParameterError) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<h2>Sidebar</h2><form id="controls" hx-post="/controls" hx-trigger="change" hx-swap="none">`)

		h.raw(`<label for="selected_attribute">`, label(penguins.KeySelectedAttribute), `</label><select id="selected_attribute" name="`, penguins.KeySelectedAttribute, `">`)
		for _, attr := range penguins.Attributes() {
			h.raw(`<option value="`, string(attr), `"`)
			if attr == sel.Attribute {
				h.raw(` selected`)
			}
			h.raw(`>`, string(attr), `</option>`)
		}
		h.raw(`</select>`)

		h.raw(`<label for="plotly_bin_count">`, label(penguins.KeyPlotlyBinCount), `</label>`,
			`<input type="number" id="plotly_bin_count" name="`, penguins.KeyPlotlyBinCount, `" value="`, strconv.Itoa(sel.PlotlyBins), `">`)

		h.raw(`<label for="seaborn_bin_count">`, label(penguins.KeySeabornBinCount), `</label>`,
			`<input type="range" id="seaborn_bin_count" name="`, penguins.KeySeabornBinCount, `" min="0" max="`,
			strconv.Itoa(penguins.SeabornBinsMax), `" value="`, strconv.Itoa(sel.SeabornBins), `">`)

		h.raw(`<label>`, label(penguins.KeySelectedSpecies), `</label><div class="checks"><input type="hidden" name="`, speciesPresentField, `" value="1">`)
		for _, s := range penguins.AllSpecies() {
			id := "species-" + string(s)
			h.raw(`<input type="checkbox" id="`, id, `" name="`, penguins.KeySelectedSpecies, `" value="`, string(s), `"`)
			if sel.Species.Has(s) {
				h.raw(` checked`)
			}
			h.raw(`><label for="`, id, `">`, string(s), `</label>`)
		}
		h.raw(`</div>`)

		h.raw(`<label><input type="hidden" name="`, penguins.KeyShowSex, `" value="false">`,
			`<input type="checkbox" name="`, penguins.KeyShowSex, `" value="true"`)
		if sel.ShowSex {
			h.raw(` checked`)
		}
		h.raw(`> `, label(penguins.KeyShowSex), `</label></form>`)
		h.component(ctx, errorList(errs, false))
		h.raw(`<hr><p><a href="`, sourceLink, `" target="_blank" rel="noopener">GitHub</a></p>`)
		return h.err
	})
}

// label returns the display label of the named input.
func label(key string) string {
	if p, ok := penguins.LookupParameter(key); ok && p.Label != "" {
		return templ.EscapeString(p.Label)
	}
	return templ.EscapeString(key)
}

func errorList(errs []penguins.ParameterError, oob bool) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div id="control-errors" class="errors"`)
		if oob {
			h.raw(` hx-swap-oob="true"`)
		}
		h.raw(`>`)
		for _, e := range errs {
			h.raw(`<p>`)
			h.text(e.Error())
			h.raw(`</p>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

// panel names a re-renderable region of the page.
type panel string

const (
	panelTable            panel = "table"
	panelGrid             panel = "grid"
	panelPlotlyHistogram  panel = "plotly-histogram"
	panelSeabornHistogram panel = "seaborn-histogram"
	panelScatter          panel = "scatter"
)

var allPanels = []panel{panelTable, panelGrid, panelPlotlyHistogram, panelSeabornHistogram, panelScatter}

func parsePanel(name string) (panel, bool) {
	for _, p := range allPanels {
		if string(p) == name {
			return p, true
		}
	}
	return "", false
}

// panelsFor lists the panels that read any of the changed keys, in page order.
func panelsFor(changed map[string]bool) []panel {
	if changed[penguins.KeySelectedSpecies] {
		return allPanels
	}
	var out []panel
	if changed[penguins.KeyShowSex] {
		out = append(out, panelTable)
	}
	if changed[penguins.KeySelectedAttribute] || changed[penguins.KeyPlotlyBinCount] {
		out = append(out, panelPlotlyHistogram)
	}
	if changed[penguins.KeySeabornBinCount] {
		out = append(out, panelSeabornHistogram)
	}
	if changed[penguins.KeyShowSex] {
		out = append(out, panelScatter)
	}
	return out
}

// panelData is the input every panel renders from.
type panelData struct {
	Selection penguins.Selection
	Records   []penguins.Record
	Sort      gridSort
	Format    cellFormatter
}

func renderPanel(p panel, d panelData, oob bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<div id="panel-`, string(p), `" class="panel"`)
		if oob {
			h.raw(` hx-swap-oob="true"`)
		}
		h.raw(`>`)
		switch p {
		case panelTable:
			writeTable(h, d)
		case panelGrid:
			writeGrid(h, d)
		case panelPlotlyHistogram:
			hist := charts.SpeciesHistogram(d.Records, d.Selection.Attribute, d.Selection.PlotlyBins)
			h.component(ctx, charts.HistogramSVG(hist, charts.DefaultFrame))
			writeSkipped(h, d.Format, hist.Skipped)
		case panelSeabornHistogram:
			hist := charts.MassHistogram(d.Records, d.Selection.SeabornBins)
			h.component(ctx, charts.HistogramSVG(hist, charts.DefaultFrame))
			writeSkipped(h, d.Format, hist.Skipped)
		case panelScatter:
			sc := charts.NewScatter(d.Records)
			h.component(ctx, charts.ScatterSVG(sc, charts.DefaultFrame, d.Selection.ShowSex))
			writeSkipped(h, d.Format, sc.Skipped)
		}
		h.raw(`</div>`)
		return h.err
	})
}

func writeSkipped(h *htmlWriter, f cellFormatter, n int) {
	if n == 0 {
		return
	}
	h.raw(`<p class="note">`)
	h.text(fmt.Sprintf("%s rows with missing values not shown", f.count(n)))
	h.raw(`</p>`)
}

// tableColumns are the Data Table columns; sex is included only when shown.
func tableColumns(showSex bool) []string {
	cols := []string{
		penguins.ColumnSpecies,
		penguins.ColumnIsland,
		string(penguins.AttributeBillLength),
		string(penguins.AttributeBillDepth),
		string(penguins.AttributeFlipperLength),
		string(penguins.AttributeBodyMass),
	}
	if showSex {
		cols = append(cols, penguins.ColumnSex)
	}
	return append(cols, penguins.ColumnYear)
}

func writeTable(h *htmlWriter, d panelData) {
	cols := tableColumns(d.Selection.ShowSex)
	h.raw(`<p class="note">`, d.Format.count(len(d.Records)), ` rows</p><table class="data-table"><thead><tr>`)
	for _, c := range cols {
		h.raw(`<th>`, c, `</th>`)
	}
	h.raw(`</tr></thead><tbody>`)
	writeRows(h, d.Format, d.Records, cols)
	h.raw(`</tbody></table>`)
}

func writeGrid(h *htmlWriter, d panelData) {
	cols := make([]string, 0, 8)
	for _, c := range penguins.Columns() {
		cols = append(cols, c.Name)
	}
	rows := sortRecords(d.Records, d.Sort)
	h.raw(`<table class="data-grid"><thead><tr>`)
	for _, c := range cols {
		next := sortAsc
		class := ""
		if d.Sort.Column == c {
			class = ` class="active"`
			if d.Sort.Dir == sortAsc {
				next = sortDesc
			}
		}
		href := "/panels/grid?sort=" + c + "&dir=" + next
		h.raw(`<th><a`, class, ` href="`, templ.EscapeString(href), `" hx-get="`, templ.EscapeString(href),
			`" hx-target="#panel-grid" hx-swap="outerHTML">`, c)
		if d.Sort.Column == c {
			if d.Sort.Dir == sortAsc {
				h.raw(` &#9650;`)
			} else {
				h.raw(` &#9660;`)
			}
		}
		h.raw(`</a></th>`)
	}
	h.raw(`</tr></thead><tbody>`)
	writeRows(h, d.Format, rows, cols)
	h.raw(`</tbody></table>`)
}

func writeRows(h *htmlWriter, f cellFormatter, records []penguins.Record, cols []string) {
	for _, r := range records {
		h.raw(`<tr>`)
		for _, c := range cols {
			text, missing := f.cell(r, c)
			if missing {
				h.raw(`<td class="na">`)
			} else {
				h.raw(`<td>`)
			}
			h.text(text)
			h.raw(`</td>`)
		}
		h.raw(`</tr>`)
	}
}
