package penguins

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Parameter keys exposed by the input controls.
const (
	KeySelectedAttribute = "selected_attribute"
	KeyPlotlyBinCount    = "plotly_bin_count"
	KeySeabornBinCount   = "seaborn_bin_count"
	KeySelectedSpecies   = "selected_species_list"
	KeyShowSex           = "show_sex"
)

// Default control values.
const (
	DefaultAttribute   = AttributeBillLength
	DefaultPlotlyBins  = 15
	DefaultSeabornBins = 30
	SeabornBinsMax     = 100
)

// Parameter describes one input control.
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default"`
	Min         *int     `json:"min,omitempty"`
	Max         *int     `json:"max,omitempty"`
	// Filters marks parameters that change derived-view membership.
	Filters bool `json:"filters"`
}

// ParameterError reports a parameter that could not be coerced.
type ParameterError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e ParameterError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// ErrUnknownParameter is returned for keys outside the declared parameters.
var ErrUnknownParameter = errors.New("parameter not declared")

func intPtr(v int) *int { return &v }

// Parameters returns the declared input parameters in sidebar order.
func Parameters() []Parameter {
	attrs := make([]string, len(allAttributes))
	for i, a := range allAttributes {
		attrs[i] = string(a)
	}
	species := make([]string, len(allSpecies))
	for i, s := range allSpecies {
		species[i] = string(s)
	}
	return []Parameter{
		{Name: KeySelectedAttribute, Type: "string", Label: "Selected Attribute", Enum: attrs, Default: string(DefaultAttribute)},
		{Name: KeyPlotlyBinCount, Type: "integer", Label: "Plotly Bin Count", Default: DefaultPlotlyBins},
		{Name: KeySeabornBinCount, Type: "integer", Label: "Seaborn Bin Count", Default: DefaultSeabornBins, Min: intPtr(0), Max: intPtr(SeabornBinsMax)},
		{Name: KeySelectedSpecies, Type: "species_set", Label: "Species", Enum: species, Default: species, Filters: true},
		{Name: KeyShowSex, Type: "boolean", Label: "Show Sex", Default: false},
	}
}

// Selection is the typed snapshot of one session's input parameters.
type Selection struct {
	Attribute   Attribute  `json:"selected_attribute"`
	PlotlyBins  int        `json:"plotly_bin_count"`
	SeabornBins int        `json:"seaborn_bin_count"`
	Species     SpeciesSet `json:"selected_species_list"`
	ShowSex     bool       `json:"show_sex"`
}

// DefaultSelection returns the initial control values: every species selected.
func DefaultSelection() Selection {
	return Selection{
		Attribute:   DefaultAttribute,
		PlotlyBins:  DefaultPlotlyBins,
		SeabornBins: DefaultSeabornBins,
		Species:     FullSpeciesSet(),
		ShowSex:     false,
	}
}

// Clone returns a deep copy.
func (s Selection) Clone() Selection {
	dup := s
	dup.Species = s.Species.Clone()
	return dup
}

// Value returns the typed value stored under key.
func (s Selection) Value(key string) (any, error) {
	switch key {
	case KeySelectedAttribute:
		return s.Attribute, nil
	case KeyPlotlyBinCount:
		return s.PlotlyBins, nil
	case KeySeabornBinCount:
		return s.SeabornBins, nil
	case KeySelectedSpecies:
		return s.Species.Clone(), nil
	case KeyShowSex:
		return s.ShowSex, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, key)
	}
}

// With returns a copy of s with key set to an already coerced value.
func (s Selection) With(key string, value any) (Selection, error) {
	out := s.Clone()
	switch key {
	case KeySelectedAttribute:
		v, ok := value.(Attribute)
		if !ok {
			return s, fmt.Errorf("parameter %s expects Attribute, got %T", key, value)
		}
		out.Attribute = v
	case KeyPlotlyBinCount:
		v, ok := value.(int)
		if !ok {
			return s, fmt.Errorf("parameter %s expects int, got %T", key, value)
		}
		out.PlotlyBins = v
	case KeySeabornBinCount:
		v, ok := value.(int)
		if !ok {
			return s, fmt.Errorf("parameter %s expects int, got %T", key, value)
		}
		out.SeabornBins = v
	case KeySelectedSpecies:
		v, ok := value.(SpeciesSet)
		if !ok {
			return s, fmt.Errorf("parameter %s expects SpeciesSet, got %T", key, value)
		}
		out.Species = v.Clone()
	case KeyShowSex:
		v, ok := value.(bool)
		if !ok {
			return s, fmt.Errorf("parameter %s expects bool, got %T", key, value)
		}
		out.ShowSex = v
	default:
		return s, fmt.Errorf("%w: %s", ErrUnknownParameter, key)
	}
	return out, nil
}

// Params renders the selection as a raw parameter map.
func (s Selection) Params() map[string]any {
	return map[string]any{
		KeySelectedAttribute: string(s.Attribute),
		KeyPlotlyBinCount:    s.PlotlyBins,
		KeySeabornBinCount:   s.SeabornBins,
		KeySelectedSpecies:   s.Species.Strings(),
		KeyShowSex:           s.ShowSex,
	}
}

// LookupParameter finds a declared parameter by case-insensitive name.
func LookupParameter(name string) (Parameter, bool) {
	for _, p := range Parameters() {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return Parameter{}, false
}

// Coerce converts a raw control value into the typed value for key. Only type
// coercion is applied; numeric ranges are left to the rendering layer.
func Coerce(key string, raw any) (any, error) {
	param, ok := LookupParameter(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParameter, key)
	}
	return coerceParameter(param, raw)
}

// ApplyParameters coerces every supplied parameter and applies them on top of
// base. When any parameter fails, base is returned unchanged together with the
// sorted error list.
func ApplyParameters(base Selection, supplied map[string]any) (Selection, []ParameterError) {
	out := base.Clone()
	var errs []ParameterError
	for raw, value := range supplied {
		param, ok := LookupParameter(raw)
		if !ok {
			errs = append(errs, ParameterError{Name: raw, Message: ErrUnknownParameter.Error()})
			continue
		}
		coerced, err := coerceParameter(param, value)
		if err != nil {
			errs = append(errs, ParameterError{Name: param.Name, Message: err.Error()})
			continue
		}
		next, err := out.With(param.Name, coerced)
		if err != nil {
			errs = append(errs, ParameterError{Name: param.Name, Message: err.Error()})
			continue
		}
		out = next
	}
	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Name < errs[j].Name })
		return base, errs
	}
	return out, nil
}

func coerceParameter(param Parameter, raw any) (any, error) {
	if raw == nil {
		return nil, fmt.Errorf("parameter %s cannot be null", param.Name)
	}
	switch param.Type {
	case "string":
		var val string
		switch v := raw.(type) {
		case string:
			val = v
		case Attribute:
			val = string(v)
		case fmt.Stringer:
			val = v.String()
		default:
			return nil, fmt.Errorf("parameter %s expects string", param.Name)
		}
		attr, err := ParseAttribute(val)
		if err != nil {
			return nil, enumError(param.Enum)
		}
		return attr, nil
	case "integer":
		switch v := raw.(type) {
		case int:
			return v, nil
		case int64:
			return int(v), nil
		case float64:
			if v != float64(int(v)) {
				return nil, fmt.Errorf("parameter %s expects integer", param.Name)
			}
			return int(v), nil
		case string:
			parsed, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("parameter %s expects integer", param.Name)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("parameter %s expects integer", param.Name)
		}
	case "boolean":
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			if strings.EqualFold(strings.TrimSpace(v), "on") {
				return true, nil
			}
			parsed, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("parameter %s expects boolean", param.Name)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("parameter %s expects boolean", param.Name)
		}
	case "species_set":
		return coerceSpeciesSet(param, raw)
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", param.Type)
	}
}

func coerceSpeciesSet(param Parameter, raw any) (SpeciesSet, error) {
	var names []string
	switch v := raw.(type) {
	case SpeciesSet:
		if !v.SubsetOf(FullSpeciesSet()) {
			return nil, enumError(param.Enum)
		}
		return v.Clone(), nil
	case []Species:
		names = make([]string, 0, len(v))
		for _, species := range v {
			names = append(names, string(species))
		}
	case []string:
		names = v
	case []any:
		names = make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parameter %s expects a list of species names", param.Name)
			}
			names = append(names, s)
		}
	case string:
		if strings.TrimSpace(v) != "" {
			names = strings.Split(v, ",")
		}
	default:
		return nil, fmt.Errorf("parameter %s expects a list of species names", param.Name)
	}
	set := make(SpeciesSet, len(names))
	for _, name := range names {
		species, err := ParseSpecies(name)
		if err != nil {
			return nil, enumError(param.Enum)
		}
		set[species] = struct{}{}
	}
	return set, nil
}

func enumError(options []string) error {
	if len(options) == 0 {
		return errors.New("invalid enumeration")
	}
	return fmt.Errorf("value must be one of: %s", strings.Join(options, ", "))
}
