package charts

import (
	"image/color"

	"penguinboard/pkg/penguins"
)

// Series is one coloured layer of a histogram.
type Series struct {
	Name   string
	Color  color.RGBA
	Counts []int
}

// Histogram holds shared bin edges and one count series per layer. When
// Stacked is set the layers sum per bin.
type Histogram struct {
	Title   string
	XLabel  string
	YLabel  string
	Edges   []float64
	Series  []Series
	Stacked bool
	// Skipped counts records missing the plotted attribute.
	Skipped int
}

// Bins returns the number of bins.
func (h Histogram) Bins() int {
	if len(h.Edges) < 2 {
		return 0
	}
	return len(h.Edges) - 1
}

// Total returns the bar height of bin i across every layer.
func (h Histogram) Total(i int) int {
	total := 0
	for _, s := range h.Series {
		total += s.Counts[i]
	}
	return total
}

// MaxCount returns the tallest bar.
func (h Histogram) MaxCount() int {
	highest := 0
	for i := 0; i < h.Bins(); i++ {
		if t := h.Total(i); t > highest {
			highest = t
		}
	}
	return highest
}

// Empty reports whether no record was binned.
func (h Histogram) Empty() bool { return h.Bins() == 0 }

// SpeciesHistogram bins attr across records with shared edges and counts
// stacked per species in enumeration order. Records missing attr are skipped.
func SpeciesHistogram(records []penguins.Record, attr penguins.Attribute, bins int) Histogram {
	h := Histogram{
		Title:   "Plotly Penguins Data",
		XLabel:  "Selected Attribute",
		YLabel:  "Count",
		Stacked: true,
	}
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if m := r.Measure(attr); m.Valid && finite(m.Value) {
			values = append(values, m.Value)
		} else {
			h.Skipped++
		}
	}
	h.Edges = Edges(values, bins)
	for _, species := range penguins.AllSpecies() {
		h.Series = append(h.Series, Series{
			Name:   string(species),
			Color:  Color(species),
			Counts: make([]int, h.Bins()),
		})
	}
	if h.Empty() {
		return h
	}
	index := make(map[penguins.Species]int, len(h.Series))
	for i, species := range penguins.AllSpecies() {
		index[species] = i
	}
	for _, r := range records {
		m := r.Measure(attr)
		if !m.Valid {
			continue
		}
		layer, ok := index[r.Species]
		if !ok {
			continue
		}
		if b := binIndex(h.Edges, m.Value); b >= 0 {
			h.Series[layer].Counts[b]++
		}
	}
	return h
}

// MassHistogram bins body mass across records as a single series.
func MassHistogram(records []penguins.Record, bins int) Histogram {
	h := Histogram{
		Title:  "Palmer Penguins",
		XLabel: "Mass",
		YLabel: "Count",
	}
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if r.BodyMassG.Valid && finite(r.BodyMassG.Value) {
			values = append(values, r.BodyMassG.Value)
		} else {
			h.Skipped++
		}
	}
	h.Edges = Edges(values, bins)
	counts := make([]int, h.Bins())
	for _, v := range values {
		if b := binIndex(h.Edges, v); b >= 0 {
			counts[b]++
		}
	}
	h.Series = []Series{{Name: string(penguins.AttributeBodyMass), Color: neutral, Counts: counts}}
	return h
}
