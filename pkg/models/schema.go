package models

// ColumnDescription is a column as presented to the model.
type ColumnDescription struct {
	Name      string `json:"name"`
	DataType  string `json:"data_type"`
	Nullable  bool   `json:"nullable"`
	MaxLength int    `json:"max_length,omitempty"`
}

// TableDescription lists a table's columns up to the per-table cap.
// TotalColumns counts every non-sensitive column before the cap.
type TableDescription struct {
	Schema       string              `json:"schema"`
	Name         string              `json:"name"`
	Columns      []ColumnDescription `json:"columns"`
	TotalColumns int                 `json:"total_columns"`
}

// QualifiedName returns "schema.table".
func (t TableDescription) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// OmittedColumns returns how many columns were cut by the cap.
func (t TableDescription) OmittedColumns() int {
	return t.TotalColumns - len(t.Columns)
}

// ForeignKeyEdge is parentTable.column -> referencedTable.column.
type ForeignKeyEdge struct {
	ParentTable      string `json:"parent_table"`
	ParentColumn     string `json:"parent_column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// SchemaDescription is the bounded schema summary for one database.
// Zero tables is a valid description, distinct from a failed fetch.
type SchemaDescription struct {
	Database         string             `json:"database"`
	Tables           []TableDescription `json:"tables"`
	TotalTables      int                `json:"total_tables"`
	ForeignKeys      []ForeignKeyEdge   `json:"foreign_keys"`
	TotalForeignKeys int                `json:"total_foreign_keys"`
}
