package models

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Object is a JSON object that remembers the order in which keys were first
// set. Setting an existing key replaces its value in place.
type Object struct {
	fields *orderedmap.OrderedMap[string, Value]
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{fields: orderedmap.New[string, Value]()}
}

// Set assigns key to val, keeping the key's original position if present.
func (o *Object) Set(key string, val Value) {
	o.fields.Set(key, val)
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	return o.fields.Get(key)
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return o.fields.Len()
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, o.Len())
	o.Range(func(key string, _ Value) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Range calls fn for every key/value pair in insertion order until fn
// returns false.
func (o *Object) Range(fn func(key string, val Value) bool) {
	if o == nil {
		return
	}
	for pair := o.fields.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}
