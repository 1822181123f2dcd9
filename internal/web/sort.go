package web

import (
	"net/url"
	"slices"
	"strings"

	"penguinboard/pkg/penguins"
)

const (
	sortAsc  = "asc"
	sortDesc = "desc"
)

// gridSort is the Data Grid ordering. A zero value keeps dataset order.
type gridSort struct {
	Column string
	Dir    string
}

// parseGridSort reads ?sort=&dir=. Unknown columns fall back to dataset order.
func parseGridSort(q url.Values) gridSort {
	col := strings.TrimSpace(q.Get("sort"))
	known := false
	for _, c := range penguins.Columns() {
		if c.Name == col {
			known = true
			break
		}
	}
	if !known {
		return gridSort{}
	}
	dir := sortAsc
	if strings.EqualFold(q.Get("dir"), sortDesc) {
		dir = sortDesc
	}
	return gridSort{Column: col, Dir: dir}
}

// sortRecords returns a sorted copy of records. Missing cells sort last in
// either direction; ties keep dataset order.
func sortRecords(records []penguins.Record, s gridSort) []penguins.Record {
	out := slices.Clone(records)
	if s.Column == "" {
		return out
	}
	slices.SortStableFunc(out, func(a, b penguins.Record) int {
		va, vb := a.Cell(s.Column), b.Cell(s.Column)
		ma, mb := isBlank(va), isBlank(vb)
		switch {
		case ma && mb:
			return 0
		case ma:
			return 1
		case mb:
			return -1
		}
		c := compareCells(va, vb)
		if s.Dir == sortDesc {
			return -c
		}
		return c
	})
	return out
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func compareCells(a, b any) int {
	switch x := a.(type) {
	case float64:
		y, _ := b.(float64)
		return cmpOrdered(x, y)
	case int:
		y, _ := b.(int)
		return cmpOrdered(x, y)
	case string:
		y, _ := b.(string)
		return strings.Compare(x, y)
	}
	return 0
}

func cmpOrdered[T int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
