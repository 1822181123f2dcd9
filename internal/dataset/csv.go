package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"penguinboard/pkg/penguins"
)

// requiredColumns must appear in every CSV header; island and year are
// optional and other columns are ignored.
var requiredColumns = []string{
	penguins.ColumnSpecies,
	string(penguins.AttributeBillLength),
	string(penguins.AttributeBillDepth),
	string(penguins.AttributeFlipperLength),
	string(penguins.AttributeBodyMass),
	penguins.ColumnSex,
}

// ParseCSV reads a palmerpenguins-layout CSV. Empty, "NA" and "." cells are
// missing values. Errors name the 1-based line and the column.
func ParseCSV(r io.Reader) (penguins.Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return penguins.Dataset{}, fmt.Errorf("csv: missing header")
	}
	if err != nil {
		return penguins.Dataset{}, fmt.Errorf("csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return penguins.Dataset{}, fmt.Errorf("csv: missing column %q", col)
		}
	}

	var records []penguins.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return penguins.Dataset{}, fmt.Errorf("csv line %d: %w", line, err)
		}
		rec, err := parseRow(row, index)
		if err != nil {
			return penguins.Dataset{}, fmt.Errorf("csv line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return penguins.NewDataset(records), nil
}

func parseRow(row []string, index map[string]int) (penguins.Record, error) {
	cell := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rec penguins.Record
	species, err := penguins.ParseSpecies(cell(penguins.ColumnSpecies))
	if err != nil {
		return rec, fmt.Errorf("column %s: %w", penguins.ColumnSpecies, err)
	}
	rec.Species = species
	rec.Island = missingAsEmpty(cell(penguins.ColumnIsland))

	for _, attr := range penguins.Attributes() {
		m, err := parseMeasurement(cell(string(attr)))
		if err != nil {
			return rec, fmt.Errorf("column %s: %w", attr, err)
		}
		switch attr {
		case penguins.AttributeBillLength:
			rec.BillLengthMM = m
		case penguins.AttributeBillDepth:
			rec.BillDepthMM = m
		case penguins.AttributeFlipperLength:
			rec.FlipperLengthMM = m
		case penguins.AttributeBodyMass:
			rec.BodyMassG = m
		}
	}

	sex, err := penguins.ParseSex(cell(penguins.ColumnSex))
	if err != nil {
		return rec, fmt.Errorf("column %s: %w", penguins.ColumnSex, err)
	}
	rec.Sex = sex

	if raw := missingAsEmpty(cell(penguins.ColumnYear)); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return rec, fmt.Errorf("column %s: invalid integer %q", penguins.ColumnYear, raw)
		}
		rec.Year = year
	}
	return rec, nil
}

func isMissing(raw string) bool {
	return raw == "" || raw == "." || strings.EqualFold(raw, "NA")
}

func missingAsEmpty(raw string) string {
	if isMissing(raw) {
		return ""
	}
	return raw
}

func parseMeasurement(raw string) (penguins.Measurement, error) {
	if isMissing(raw) {
		return penguins.Missing(), nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return penguins.Missing(), fmt.Errorf("invalid number %q", raw)
	}
	return penguins.Measured(v), nil
}

// WriteCSV writes records with the dataset header. Missing cells are written
// as NA, matching the input convention.
func WriteCSV(w io.Writer, records []penguins.Record) error {
	cw := csv.NewWriter(w)
	cols := penguins.Columns()
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(cols))
	for _, rec := range records {
		for i, c := range cols {
			row[i] = formatCell(rec.Cell(c.Name))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NA"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case string:
		if val == "" {
			return "NA"
		}
		return val
	default:
		return fmt.Sprint(val)
	}
}
