package signal

import "sort"

// table is the fixed status enumeration. Matching is exact and case-sensitive.
var table = map[string]Category{
	"Away":           CategoryYellow,
	"Appear away":    CategoryYellow,
	"Be right back":  CategoryYellow,
	"Busy":           CategoryRed,
	"Do not disturb": CategoryRed,
	"Available":      CategoryOff,
}

// Map returns the signal state for a status label using the fixed table.
//
// The second result is false for any label outside the table, including the
// empty string. Callers must not send anything in that case: an unknown label
// leaves the device showing whatever it showed last.
func Map(label string) (State, bool) {
	c, ok := table[label]
	if !ok {
		return State{}, false
	}
	return c.State(), true
}

// KnownLabels returns the labels recognized by the fixed table, sorted.
func KnownLabels() []string {
	labels := make([]string, 0, len(table))
	for l := range table {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Mapper applies user overrides on top of the fixed table.
//
// The zero Mapper behaves exactly like [Map].
type Mapper struct {
	overrides map[string]Category
}

// NewMapper returns a Mapper that consults overrides before the fixed table.
// Entries with an invalid category are ignored. The map is copied.
func NewMapper(overrides map[string]Category) Mapper {
	if len(overrides) == 0 {
		return Mapper{}
	}
	cp := make(map[string]Category, len(overrides))
	for label, c := range overrides {
		if c.Valid() {
			cp[label] = c
		}
	}
	return Mapper{overrides: cp}
}

// Map returns the signal state for label, or false if the label is neither
// overridden nor in the fixed table.
func (m Mapper) Map(label string) (State, bool) {
	if c, ok := m.overrides[label]; ok {
		return c.State(), true
	}
	return Map(label)
}

// Category returns the category a label resolves to, if any.
func (m Mapper) Category(label string) (Category, bool) {
	if c, ok := m.overrides[label]; ok {
		return c, true
	}
	c, ok := table[label]
	return c, ok
}

// GroupOverrides converts the category→labels form used in configuration
// files into a label→category override map. Later groups win on duplicates
// in the order of [Categories].
func GroupOverrides(groups map[Category][]string) map[string]Category {
	if len(groups) == 0 {
		return nil
	}
	out := make(map[string]Category)
	for _, c := range Categories {
		for _, label := range groups[c] {
			out[label] = c
		}
	}
	return out
}
