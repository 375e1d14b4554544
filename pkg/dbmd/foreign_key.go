package dbmd

import "slices"

// ForeignKeyComponent pairs a child (referencing) column with the parent
// (referenced) column it points at.
type ForeignKeyComponent struct {
	Child  string `json:"child"`
	Parent string `json:"parent"`
}

// ForeignKey is a reference from Child to Parent. Components are kept in
// the order the constraint declares them.
type ForeignKey struct {
	Name       string                `json:"name,omitempty"`
	Child      RelID                 `json:"child"`
	Parent     RelID                 `json:"parent"`
	Components []ForeignKeyComponent `json:"components"`
}

// ChildColumns returns the referencing column names in declared order.
func (fk *ForeignKey) ChildColumns() []string {
	cols := make([]string, len(fk.Components))
	for i, c := range fk.Components {
		cols[i] = c.Child
	}
	return cols
}

// HasChildColumns reports whether the set of referencing columns equals
// cols, ignoring order.
func (fk *ForeignKey) HasChildColumns(cols []string) bool {
	if len(cols) != len(fk.Components) {
		return false
	}
	have := fk.ChildColumns()
	want := slices.Clone(cols)
	slices.Sort(have)
	slices.Sort(want)
	return slices.Equal(have, want)
}
