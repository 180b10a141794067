package datasource

// ColumnMetadata represents a discovered column together with its table.
type ColumnMetadata struct {
	SchemaName      string
	TableName       string
	ColumnName      string
	DataType        string
	IsNullable      bool
	MaxLength       int // Declared length in characters; 0 when not applicable, -1 for MAX
	OrdinalPosition int
}

// ForeignKeyMetadata represents a discovered foreign key constraint column pair.
type ForeignKeyMetadata struct {
	ConstraintName string
	SourceSchema   string
	SourceTable    string
	SourceColumn   string
	TargetSchema   string
	TargetTable    string
	TargetColumn   string
}
