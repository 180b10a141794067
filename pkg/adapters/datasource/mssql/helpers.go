package mssql

import (
	"strings"
)

// mapSQLServerType maps SQL Server type names to the names used in result
// column descriptions.
func mapSQLServerType(sqlServerType string) string {
	sqlServerType = strings.ToUpper(sqlServerType)

	switch sqlServerType {
	case "INT":
		return "INTEGER"
	case "DECIMAL", "NUMERIC":
		return "NUMERIC"
	case "MONEY", "SMALLMONEY":
		return "MONEY"
	case "FLOAT":
		return "DOUBLE PRECISION"
	case "CHAR", "NCHAR":
		return "CHAR"
	case "VARCHAR", "NVARCHAR":
		return "VARCHAR"
	case "TEXT", "NTEXT":
		return "TEXT"
	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return "TIMESTAMP"
	case "DATETIMEOFFSET":
		return "TIMESTAMP WITH TIME ZONE"
	case "BIT":
		return "BOOLEAN"
	case "UNIQUEIDENTIFIER":
		return "UUID"
	default:
		return sqlServerType
	}
}

// isBinaryType reports whether []byte values of this type are real binary data.
// The driver also returns DECIMAL, MONEY and character data as []byte.
func isBinaryType(sqlType string) bool {
	switch strings.ToUpper(sqlType) {
	case "BINARY", "VARBINARY", "IMAGE", "TIMESTAMP", "ROWVERSION":
		return true
	}
	return false
}

// normalizeValue converts driver values into plain Go values.
func normalizeValue(val any, dbType string) any {
	if b, ok := val.([]byte); ok && !isBinaryType(dbType) {
		return string(b)
	}
	return val
}

// characterLength converts sys.columns.max_length (bytes) to characters.
// -1 means MAX and is kept as is.
func characterLength(typeName string, maxLength int) int {
	if maxLength <= 0 {
		return maxLength
	}
	switch strings.ToLower(typeName) {
	case "nchar", "nvarchar":
		return maxLength / 2
	case "char", "varchar", "binary", "varbinary":
		return maxLength
	}
	return 0
}

func isSystemSchema(schema string) bool {
	return strings.EqualFold(schema, "sys") || strings.EqualFold(schema, "INFORMATION_SCHEMA")
}
