package schema

// Table is the relational model the loader and exporter work with.
type Table struct {
	Name         string
	Columns      []*Column
	ForeignKeys  []*ForeignKey
	Dependencies []string // referenced table names, excluding self-references
}

type Column struct {
	Name     string
	DeclType string
	NotNull  bool
	IsPK     bool
}

type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
}

// ColumnNames returns the table's column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}
