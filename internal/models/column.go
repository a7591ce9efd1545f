package models

// Column is the label of a group of selectable plugs.
type Column string

const (
	ColumnBarrel   Column = "Barrel"
	ColumnMagazine Column = "Magazine"
	ColumnTrait1   Column = "Trait 1"
	ColumnTrait2   Column = "Trait 2"
	ColumnOrigin   Column = "Origin"
)

// ColumnOrder is the order resolved columns are returned in.
var ColumnOrder = []Column{ColumnBarrel, ColumnMagazine, ColumnTrait1, ColumnTrait2, ColumnOrigin}

// ResolvedColumn is a column label and the plug items usable in it, in
// first-seen order without duplicates.
type ResolvedColumn struct {
	Column Column
	Items  []*ItemDefinition
}

// Summaries returns the listing projection of the column's items.
func (c ResolvedColumn) Summaries() []ItemSummary {
	out := make([]ItemSummary, len(c.Items))
	for i, item := range c.Items {
		out[i] = item.Summary()
	}
	return out
}
