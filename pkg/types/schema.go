package types

// TableSchema describes a flattened companion table.
type TableSchema struct {
	// Version increments when the column derivation rules change.
	Version int `json:"version"`

	Columns []ColumnDef `json:"columns"`
	Indexes []IndexDef  `json:"indexes"`
}

// ColumnDef defines a single column of a companion table.
type ColumnDef struct {
	Name string `json:"name"`

	// Type is the SQLite storage class: TEXT, INTEGER, REAL or BLOB
	Type string `json:"type"`

	Nullable   bool `json:"nullable"`
	PrimaryKey bool `json:"primary_key"`
}

// IndexDef defines an index created after the companion rows are loaded.
type IndexDef struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// ColumnNames lists the schema's column names in order.
func (s TableSchema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}
