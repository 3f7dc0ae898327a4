package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		dialect  Dialect
		input    string
		expected string
	}{
		{MySQL, "name", "`name`"},
		{MySQL, "we`ird", "`we``ird`"},
		{PostgreSQL, "name", `"name"`},
		{PostgreSQL, `we"ird`, `"we""ird"`},
		{SQLite, "a b", `"a b"`},
		{Dialect("oracle"), "name", `"name"`},
	}

	for _, tt := range tests {
		t.Run(string(tt.dialect)+"/"+tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dialect.QuoteIdent(tt.input))
		})
	}
}

func TestBoolLiteral(t *testing.T) {
	assert.Equal(t, "TRUE", PostgreSQL.BoolLiteral(true))
	assert.Equal(t, "FALSE", PostgreSQL.BoolLiteral(false))
	assert.Equal(t, "1", MySQL.BoolLiteral(true))
	assert.Equal(t, "0", SQLite.BoolLiteral(false))
	assert.Equal(t, "1", Dialect("mssql").BoolLiteral(true))
}

func TestParseAndKnown(t *testing.T) {
	assert.Equal(t, MySQL, Parse(" MySQL "))
	assert.True(t, Parse("sqlite").Known())
	assert.False(t, Parse("oracle").Known())
	assert.True(t, PostgreSQL.NativeJSON())
	assert.False(t, SQLite.NativeJSON())
}

func TestParse_NormalisesCase(t *testing.T) {
	tests := []struct {
		input      string
		expected   Dialect
		known      bool
		nativeJSON bool
		quoted     string
	}{
		{"PostgreSQL", PostgreSQL, true, true, `"id"`},
		{"MYSQL", MySQL, true, false, "`id`"},
		{"\tsqlite\n", SQLite, true, false, `"id"`},
		{"Oracle", Dialect("oracle"), false, false, `"id"`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d := Parse(tt.input)
			assert.Equal(t, tt.expected, d)
			assert.Equal(t, tt.known, d.Known())
			assert.Equal(t, tt.nativeJSON, d.NativeJSON())
			assert.Equal(t, tt.quoted, d.QuoteIdent("id"))
		})
	}
}

func TestQuoteString(t *testing.T) {
	assert.Equal(t, "'O''Brien'", QuoteString("O'Brien"))
	assert.Equal(t, "''", QuoteString(""))
}
