// Package dialect holds the syntax differences between the SQL databases
// jsonflat can target.
package dialect

import "strings"

// Dialect is a SQL syntax variant. Unrecognised names are kept as-is and
// render like PostgreSQL identifiers with numeric booleans.
type Dialect string

const (
	MySQL      Dialect = "mysql"
	PostgreSQL Dialect = "postgresql"
	SQLite     Dialect = "sqlite"
)

// Supported lists the dialects accepted by the CLI and API.
var Supported = []Dialect{MySQL, PostgreSQL, SQLite}

// Parse normalises a dialect name by trimming it and lower-casing it, so
// "MySQL" is MySQL. It never fails; use Known to check the result.
func Parse(name string) Dialect {
	return Dialect(strings.ToLower(strings.TrimSpace(name)))
}

// Known reports whether d is one of the Supported dialects.
func (d Dialect) Known() bool {
	for _, s := range Supported {
		if d == s {
			return true
		}
	}
	return false
}

// QuoteIdent wraps an identifier in the dialect's quote character, doubling
// any occurrence of that character inside it.
func (d Dialect) QuoteIdent(name string) string {
	if d == MySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// BoolLiteral renders a boolean value.
func (d Dialect) BoolLiteral(b bool) string {
	switch {
	case d == PostgreSQL && b:
		return "TRUE"
	case d == PostgreSQL:
		return "FALSE"
	case b:
		return "1"
	default:
		return "0"
	}
}

// NativeJSON reports whether objects and arrays get a JSON column type
// rather than TEXT.
func (d Dialect) NativeJSON() bool {
	return d == PostgreSQL
}

// QuoteString renders s as a single-quoted string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (d Dialect) String() string { return string(d) }
