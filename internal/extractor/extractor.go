// Package extractor decides which parts of a JSON document become table rows
// and collapses nested objects into single-level records.
package extractor

import (
	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
)

// KeySeparator joins parent and child keys when flattening.
const KeySeparator = "_"

// Extract returns the records of root:
//
//   - an array yields its elements, in order;
//   - an object, when flattenNested is set, yields the elements of every
//     array-valued property concatenated in key order, as long as that
//     concatenation is not empty;
//   - anything else yields root itself as the only record.
//
// Elements of different array properties are merged without recording
// which property they came from.
func Extract(root models.Value, flattenNested bool) ([]models.Value, error) {
	records := extract(root, flattenNested)
	if len(records) == 0 {
		return nil, errors.NewExtractionError("no data to convert", errors.ErrNoData)
	}
	return records, nil
}

func extract(root models.Value, flattenNested bool) []models.Value {
	if root.IsArray() {
		return root.Array()
	}

	if root.IsObject() && flattenNested {
		var merged []models.Value
		root.Object().Range(func(_ string, val models.Value) bool {
			if val.IsArray() {
				merged = append(merged, val.Array()...)
			}
			return true
		})
		if len(merged) > 0 {
			return merged
		}
	}

	return []models.Value{root}
}

// Flatten collapses nested objects into a single level, joining keys with
// KeySeparator. Arrays and scalars are copied as they are. When two paths
// produce the same composite key the one visited last wins.
func Flatten(obj *models.Object, prefix string) *models.Object {
	out := models.NewObject()
	flattenInto(out, obj, prefix)
	return out
}

func flattenInto(out, obj *models.Object, prefix string) {
	obj.Range(func(key string, val models.Value) bool {
		newKey := key
		if prefix != "" {
			newKey = prefix + KeySeparator + key
		}
		if val.IsObject() {
			flattenInto(out, val.Object(), newKey)
		} else {
			out.Set(newKey, val)
		}
		return true
	})
}

// Process extracts the records of root and, when flattenNested is set,
// flattens every object record. Non-object records are kept unchanged.
func Process(root models.Value, flattenNested bool) ([]models.Value, error) {
	records, err := Extract(root, flattenNested)
	if err != nil {
		return nil, err
	}
	if !flattenNested {
		return records, nil
	}

	processed := make([]models.Value, len(records))
	for i, record := range records {
		if record.IsObject() {
			processed[i] = models.ObjectValue(Flatten(record.Object(), ""))
			continue
		}
		processed[i] = record
	}
	return processed, nil
}

// CountRecords predicts how many rows a document yields with flattening
// enabled, without building them: the length of a root array, the summed
// lengths of the array properties of a root object, or 1 otherwise.
func CountRecords(root models.Value) int {
	if root.IsArray() {
		return len(root.Array())
	}
	if root.IsObject() {
		total := 0
		root.Object().Range(func(_ string, val models.Value) bool {
			if val.IsArray() {
				total += len(val.Array())
			}
			return true
		})
		if total > 0 {
			return total
		}
	}
	return 1
}
