package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"42", "42"},
		{"-7", "-7"},
		{"3.14", "3.14"},
		{"1.0", "1"},
		{"1.50", "1.5"},
		{"-0", "0"},
		{"1e3", "1000"},
		{"0.000001", "0.000001"},
		{"0.0000001", "1e-7"},
		{"1.5e-7", "1.5e-7"},
		{"1e21", "1e+21"},
		{"123456789012345678901", "123456789012345680000"},
		{"1e400", "1e400"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatNumber(json.Number(tt.input)))
		})
	}
}

func TestIsWholeNumber(t *testing.T) {
	assert.True(t, IsWholeNumber("42"))
	assert.True(t, IsWholeNumber("42.0"))
	assert.True(t, IsWholeNumber("-3e2"))
	assert.False(t, IsWholeNumber("3.14"))
	assert.False(t, IsWholeNumber("1e400"))
}

func TestValue_JSONKeepsKeyOrder(t *testing.T) {
	inner := NewObject()
	inner.Set("z", NumberValue("1"))
	inner.Set("a", StringValue("x<y>&\"q\""))

	obj := NewObject()
	obj.Set("b", ObjectValue(inner))
	obj.Set("a", ArrayValue([]Value{BoolValue(true), NullValue(), NumberValue("2.50")}))

	assert.Equal(t, `{"b":{"z":1,"a":"x<y>&\"q\""},"a":[true,null,2.5]}`, ObjectValue(obj).JSON())
}

func TestObject_SetExistingKeyKeepsPosition(t *testing.T) {
	obj := NewObject()
	obj.Set("a", NumberValue("1"))
	obj.Set("b", NumberValue("2"))
	obj.Set("a", NumberValue("3"))

	assert.Equal(t, []string{"a", "b"}, obj.Keys())
	v, ok := obj.Get("a")
	require.True(t, ok)
	assert.Equal(t, json.Number("3"), v.Number())
}

func TestObject_NilSafe(t *testing.T) {
	var obj *Object
	assert.Equal(t, 0, obj.Len())
	assert.Empty(t, obj.Keys())
	_, ok := obj.Get("a")
	assert.False(t, ok)
}

func TestValue_Text(t *testing.T) {
	assert.Equal(t, "", NullValue().Text())
	assert.Equal(t, "true", BoolValue(true).Text())
	assert.Equal(t, "false", BoolValue(false).Text())
	assert.Equal(t, "12.5", NumberValue("12.50").Text())
	assert.Equal(t, "plain", StringValue("plain").Text())
	assert.Equal(t, `[1,"a"]`, ArrayValue([]Value{NumberValue("1"), StringValue("a")}).Text())
	assert.Equal(t, "{}", ObjectValue(nil).Text())
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{}.WithDefaults()

	assert.Equal(t, FormatSQL, opts.Format)
	assert.Equal(t, "data_table", opts.TableName)
	assert.Equal(t, "postgresql", opts.SQLDialect)
	assert.Equal(t, ",", opts.CSVDelimiter)
	require.NotNil(t, opts.FlattenNested)
	assert.True(t, *opts.FlattenNested)

	custom := Options{Format: FormatCSV, CSVDelimiter: ";", FlattenNested: BoolPtr(false)}.WithDefaults()
	assert.Equal(t, ";", custom.CSVDelimiter)
	assert.False(t, custom.Flatten())
}

func TestConversionResult_JSONShape(t *testing.T) {
	res := ConversionResult{
		Output:     "id\n1\n",
		Format:     FormatCSV,
		LineCount:  3,
		Statistics: Statistics{RowsProcessed: 1, HeadersDetected: 1},
	}

	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"output":"id\n1\n","format":"csv","lineCount":3,"statistics":{"rowsProcessed":1,"headersDetected":1}}`, string(b))
}
