package models

// SQLType is the column type written into CREATE TABLE.
type SQLType string

const (
	SQLInteger SQLType = "INTEGER"
	SQLDecimal SQLType = "DECIMAL"
	SQLBoolean SQLType = "BOOLEAN"
	SQLJSONB   SQLType = "JSONB"
	SQLText    SQLType = "TEXT"
)

// Column is one resolved output column.
type Column struct {
	Name string
	Type SQLType
}

// TableSchema is the flat table inferred for one conversion.
type TableSchema struct {
	Name    string
	Columns []Column
}
