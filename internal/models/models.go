package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies which variant of the JSON value union a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a JSON value: null, boolean, number, string, array or object.
// The zero Value is null. Numbers keep their source text so that no
// precision is lost before rendering.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	str  string
	arr  []Value
	obj  *Object
}

// NullValue returns the JSON null value.
func NullValue() Value { return Value{} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// NumberValue wraps a number in its textual form.
func NumberValue(n json.Number) Value { return Value{kind: KindNumber, num: n} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// ArrayValue wraps a list of values. A nil list is an empty array.
func ArrayValue(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

// ObjectValue wraps an object. A nil object is an empty object.
func ObjectValue(obj *Object) Value {
	if obj == nil {
		obj = NewObject()
	}
	return Value{kind: KindObject, obj: obj}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsArray() bool  { return v.kind == KindArray }
func (v Value) IsObject() bool { return v.kind == KindObject }

// Bool returns the boolean payload; false for other kinds.
func (v Value) Bool() bool { return v.b }

// Number returns the number payload; empty for other kinds.
func (v Value) Number() json.Number { return v.num }

// Str returns the string payload; empty for other kinds.
func (v Value) Str() string { return v.str }

// Array returns the elements of an array value; nil for other kinds.
func (v Value) Array() []Value { return v.arr }

// Object returns the object payload; nil for other kinds.
func (v Value) Object() *Object { return v.obj }

// MarshalJSON renders the value as compact JSON text. Object keys keep their
// insertion order and numbers use the same text form as Value.Text.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JSON is MarshalJSON without the error; encoding a Value cannot fail.
func (v Value) JSON() string {
	b, _ := v.MarshalJSON()
	return string(b)
}

// Text is the natural string form of a value: strings as-is, numbers in
// shortest decimal form, booleans as true/false, containers as JSON text and
// null as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return FormatNumber(v.num)
	case KindString:
		return v.str
	default:
		return v.JSON()
	}
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(v.Text())
	case KindNumber:
		buf.WriteString(FormatNumber(v.num))
	case KindString:
		return writeJSONString(buf, v.str)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		first := true
		var err error
		v.obj.Range(func(key string, val Value) bool {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			if err = writeJSONString(buf, key); err != nil {
				return false
			}
			buf.WriteByte(':')
			err = val.writeJSON(buf)
			return err == nil
		})
		if err != nil {
			return err
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unexpected json value kind: %s", v.kind)
	}
	return nil
}

// writeJSONString quotes s without HTML escaping.
func writeJSONString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// IntermediateRepresentation holds a parsed JSON document.
type IntermediateRepresentation struct {
	Root Value
}
