// Package penguins defines the Palmer penguins record model, the immutable
// dataset wrapper and the species-membership derivation used by dashboard
// consumers. It has no dependencies on transport or storage packages.
package penguins

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Species enumerates the penguin species present in the dataset.
type Species string

const (
	SpeciesAdelie    Species = "Adelie"
	SpeciesGentoo    Species = "Gentoo"
	SpeciesChinstrap Species = "Chinstrap"
)

var allSpecies = []Species{SpeciesAdelie, SpeciesGentoo, SpeciesChinstrap}

// AllSpecies returns the fixed species enumeration in display order.
func AllSpecies() []Species {
	return append([]Species(nil), allSpecies...)
}

// ParseSpecies matches a species name case-insensitively against the enumeration.
func ParseSpecies(name string) (Species, error) {
	trimmed := strings.TrimSpace(name)
	for _, candidate := range allSpecies {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unknown species %q", name)
}

func (s Species) order() int {
	for i, candidate := range allSpecies {
		if candidate == s {
			return i
		}
	}
	return len(allSpecies)
}

// SpeciesSet is a set of selected species. The zero value is the empty set.
type SpeciesSet map[Species]struct{}

// NewSpeciesSet builds a set from the supplied species.
func NewSpeciesSet(species ...Species) SpeciesSet {
	set := make(SpeciesSet, len(species))
	for _, s := range species {
		set[s] = struct{}{}
	}
	return set
}

// FullSpeciesSet returns a set containing every known species.
func FullSpeciesSet() SpeciesSet { return NewSpeciesSet(allSpecies...) }

// Has reports membership.
func (s SpeciesSet) Has(species Species) bool {
	_, ok := s[species]
	return ok
}

// Len returns the number of selected species.
func (s SpeciesSet) Len() int { return len(s) }

// Slice returns members in enumeration order.
func (s SpeciesSet) Slice() []Species {
	out := make([]Species, 0, len(s))
	for species := range s {
		out = append(out, species)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].order() < out[j].order() })
	return out
}

// Strings returns member names in enumeration order.
func (s SpeciesSet) Strings() []string {
	members := s.Slice()
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = string(m)
	}
	return out
}

// Clone returns an independent copy.
func (s SpeciesSet) Clone() SpeciesSet {
	out := make(SpeciesSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Equal reports whether both sets hold the same members.
func (s SpeciesSet) Equal(other SpeciesSet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if !other.Has(k) {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every member of s is in other.
func (s SpeciesSet) SubsetOf(other SpeciesSet) bool {
	for k := range s {
		if !other.Has(k) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the set as an ordered list of names.
func (s SpeciesSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes a list of species names.
func (s *SpeciesSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set := make(SpeciesSet, len(names))
	for _, name := range names {
		species, err := ParseSpecies(name)
		if err != nil {
			return err
		}
		set[species] = struct{}{}
	}
	*s = set
	return nil
}

// Sex is the recorded sex of a penguin. The empty value means unknown.
type Sex string

const (
	SexUnknown Sex = ""
	SexMale    Sex = "male"
	SexFemale  Sex = "female"
)

// ParseSex normalizes a raw sex cell; NA and blank map to SexUnknown.
func ParseSex(raw string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "na", ".":
		return SexUnknown, nil
	case "male":
		return SexMale, nil
	case "female":
		return SexFemale, nil
	default:
		return SexUnknown, fmt.Errorf("unknown sex %q", raw)
	}
}

// Label returns a display label for the sex value.
func (s Sex) Label() string {
	if s == SexUnknown {
		return "unknown"
	}
	return string(s)
}

// Measurement is an optional numeric observation. Missing values encode as JSON null.
type Measurement struct {
	Value float64
	Valid bool
}

// Measured returns a present measurement.
func Measured(v float64) Measurement { return Measurement{Value: v, Valid: true} }

// Missing returns an absent measurement.
func Missing() Measurement { return Measurement{} }

func (m Measurement) String() string {
	if !m.Valid {
		return ""
	}
	return strconv.FormatFloat(m.Value, 'f', -1, 64)
}

// MarshalJSON implements json.Marshaler.
func (m Measurement) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Measurement) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = Measurement{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Measured(v)
	return nil
}

// Attribute names a numeric record column that views can plot.
type Attribute string

const (
	AttributeBillLength    Attribute = "bill_length_mm"
	AttributeBillDepth     Attribute = "bill_depth_mm"
	AttributeFlipperLength Attribute = "flipper_length_mm"
	AttributeBodyMass      Attribute = "body_mass_g"
)

var allAttributes = []Attribute{AttributeBillLength, AttributeBillDepth, AttributeFlipperLength, AttributeBodyMass}

// Attributes returns the selectable numeric attributes in display order.
func Attributes() []Attribute { return append([]Attribute(nil), allAttributes...) }

// ParseAttribute validates an attribute name.
func ParseAttribute(name string) (Attribute, error) {
	for _, candidate := range allAttributes {
		if string(candidate) == strings.TrimSpace(name) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unknown attribute %q", name)
}

// Record is one measured penguin.
type Record struct {
	Species         Species     `json:"species"`
	Island          string      `json:"island,omitempty"`
	BillLengthMM    Measurement `json:"bill_length_mm"`
	BillDepthMM     Measurement `json:"bill_depth_mm"`
	FlipperLengthMM Measurement `json:"flipper_length_mm"`
	BodyMassG       Measurement `json:"body_mass_g"`
	Sex             Sex         `json:"sex"`
	Year            int         `json:"year,omitempty"`
}

// Measure returns the named numeric attribute of the record.
func (r Record) Measure(attr Attribute) Measurement {
	switch attr {
	case AttributeBillLength:
		return r.BillLengthMM
	case AttributeBillDepth:
		return r.BillDepthMM
	case AttributeFlipperLength:
		return r.FlipperLengthMM
	case AttributeBodyMass:
		return r.BodyMassG
	default:
		return Missing()
	}
}

// Column describes one dataset column for tabular consumers.
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Unit        string `json:"unit,omitempty"`
	Description string `json:"description,omitempty"`
}

// Column names as they appear in the source schema.
const (
	ColumnSpecies = "species"
	ColumnIsland  = "island"
	ColumnSex     = "sex"
	ColumnYear    = "year"
)

var columns = []Column{
	{Name: ColumnSpecies, Type: "string", Description: "Penguin species"},
	{Name: ColumnIsland, Type: "string", Description: "Island where the penguin was observed"},
	{Name: string(AttributeBillLength), Type: "number", Unit: "mm", Description: "Bill length"},
	{Name: string(AttributeBillDepth), Type: "number", Unit: "mm", Description: "Bill depth"},
	{Name: string(AttributeFlipperLength), Type: "number", Unit: "mm", Description: "Flipper length"},
	{Name: string(AttributeBodyMass), Type: "number", Unit: "g", Description: "Body mass"},
	{Name: ColumnSex, Type: "string", Description: "Recorded sex, empty when unknown"},
	{Name: ColumnYear, Type: "integer", Description: "Study year"},
}

// Columns returns the dataset schema.
func Columns() []Column { return append([]Column(nil), columns...) }

// Cell returns the record value for the named column, or nil when missing.
func (r Record) Cell(column string) any {
	switch column {
	case ColumnSpecies:
		return string(r.Species)
	case ColumnIsland:
		return r.Island
	case ColumnSex:
		return string(r.Sex)
	case ColumnYear:
		if r.Year == 0 {
			return nil
		}
		return r.Year
	}
	m := r.Measure(Attribute(column))
	if !m.Valid {
		return nil
	}
	return m.Value
}

// Dataset is an ordered, immutable collection of records. It is safe for
// concurrent reads; no method mutates it after construction.
type Dataset struct {
	records []Record
}

// NewDataset copies records into a new dataset.
func NewDataset(records []Record) Dataset {
	return Dataset{records: append([]Record(nil), records...)}
}

// Len returns the number of records.
func (d Dataset) Len() int { return len(d.records) }

// At returns the record at index i.
func (d Dataset) At(i int) Record { return d.records[i] }

// Records returns a copy of every record in dataset order.
func (d Dataset) Records() []Record { return append([]Record(nil), d.records...) }

// SpeciesCounts tallies records per species.
func (d Dataset) SpeciesCounts() map[Species]int {
	counts := make(map[Species]int, len(allSpecies))
	for _, r := range d.records {
		counts[r.Species]++
	}
	return counts
}
