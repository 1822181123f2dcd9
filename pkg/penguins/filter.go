package penguins

// FilteredData returns the records of base whose species is a member of
// selected, in dataset order. An empty selection yields an empty, non-nil
// slice. The dataset is never modified and the result shares no state with it.
func FilteredData(base Dataset, selected SpeciesSet) []Record {
	out := make([]Record, 0, base.Len())
	if len(selected) == 0 {
		return out
	}
	for _, r := range base.records {
		if selected.Has(r.Species) {
			out = append(out, r)
		}
	}
	return out
}
