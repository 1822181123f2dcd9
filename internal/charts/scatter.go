package charts

import (
	"math"

	"penguinboard/pkg/penguins"
)

// Point is one plotted record.
type Point struct {
	X, Y    float64
	Species penguins.Species
	Sex     penguins.Sex
}

// Scatter plots body mass against bill length, coloured by species.
type Scatter struct {
	Title   string
	XLabel  string
	YLabel  string
	Points  []Point
	Skipped int
}

// NewScatter collects plottable points from records in order. Records
// missing either coordinate are skipped.
func NewScatter(records []penguins.Record) Scatter {
	sc := Scatter{
		Title:  "Plotly Scatterplot: Species",
		XLabel: string(penguins.AttributeBodyMass),
		YLabel: string(penguins.AttributeBillLength),
		Points: make([]Point, 0, len(records)),
	}
	for _, r := range records {
		if !r.BodyMassG.Valid || !r.BillLengthMM.Valid || !finite(r.BodyMassG.Value) || !finite(r.BillLengthMM.Value) {
			sc.Skipped++
			continue
		}
		sc.Points = append(sc.Points, Point{
			X:       r.BodyMassG.Value,
			Y:       r.BillLengthMM.Value,
			Species: r.Species,
			Sex:     r.Sex,
		})
	}
	return sc
}

// Bounds returns the data extent, padded when degenerate.
func (s Scatter) Bounds() (minX, maxX, minY, maxY float64) {
	if len(s.Points) == 0 {
		return 0, 1, 0, 1
	}
	minX, maxX = s.Points[0].X, s.Points[0].X
	minY, maxY = s.Points[0].Y, s.Points[0].Y
	for _, p := range s.Points[1:] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	if minX == maxX {
		minX, maxX = minX-0.5, maxX+0.5
	}
	if minY == maxY {
		minY, maxY = minY-0.5, maxY+0.5
	}
	return minX, maxX, minY, maxY
}

// Species returns the species present, in enumeration order.
func (s Scatter) Species() []penguins.Species {
	seen := make(penguins.SpeciesSet)
	for _, p := range s.Points {
		seen[p.Species] = struct{}{}
	}
	return seen.Slice()
}
