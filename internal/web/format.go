package web

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"penguinboard/pkg/penguins"
)

// cellFormatter renders record cells for display with locale grouping.
type cellFormatter struct {
	printer *message.Printer
}

func newCellFormatter(tag language.Tag) cellFormatter {
	return cellFormatter{printer: message.NewPrinter(tag)}
}

// cell returns the display text for column of r and whether it is missing.
func (f cellFormatter) cell(r penguins.Record, column string) (string, bool) {
	switch column {
	case penguins.ColumnSpecies:
		return string(r.Species), false
	case penguins.ColumnIsland:
		if r.Island == "" {
			return "NA", true
		}
		return r.Island, false
	case penguins.ColumnSex:
		if r.Sex == penguins.SexUnknown {
			return "NA", true
		}
		return r.Sex.Label(), false
	case penguins.ColumnYear:
		if r.Year == 0 {
			return "NA", true
		}
		return strconv.Itoa(r.Year), false
	}
	attr := penguins.Attribute(column)
	m := r.Measure(attr)
	if !m.Valid {
		return "NA", true
	}
	if attr == penguins.AttributeBodyMass {
		return f.printer.Sprintf("%.0f", m.Value), false
	}
	return f.printer.Sprintf("%.1f", m.Value), false
}

func (f cellFormatter) count(n int) string {
	return f.printer.Sprintf("%d", n)
}
