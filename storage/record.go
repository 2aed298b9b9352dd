package storage

import (
	"encoding/json"
	"reflect"

	"go-storefront/models"
)

// immutableFields cannot be changed by a patch
var immutableFields = map[string]bool{
	"id":        true,
	"_id":       true,
	"createdAt": true,
}

// toFields flattens a record into its JSON field map
func toFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// normalize passes v through JSON so that 5, int64(5) and 5.0 compare equal
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// matches reports whether every query field equals the record's value
func matches(fields map[string]any, q Query) bool {
	for key, want := range q {
		if key == "_id" {
			key = "id"
		}
		got, ok := fields[key]
		if !ok {
			if want != nil {
				return false
			}
			continue
		}
		if !reflect.DeepEqual(got, normalize(want)) {
			return false
		}
	}
	return true
}

// applyPatch shallow-merges patch onto rec and returns the merged copy
func applyPatch[T any](rec T, patch Patch) (T, error) {
	var merged T
	fields, err := toFields(rec)
	if err != nil {
		return merged, err
	}
	for key, value := range patch {
		if immutableFields[key] {
			continue
		}
		fields[key] = value
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return merged, &models.ValidationError{Message: err.Error()}
	}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return merged, &models.ValidationError{Message: "patch does not fit the record: " + err.Error()}
	}
	return merged, nil
}

// numericField returns the value of a field Increment may change
func numericField(fields map[string]any, field string) (float64, error) {
	if immutableFields[field] {
		return 0, &models.ValidationError{Field: field, Message: field + " cannot be changed"}
	}
	n, ok := fields[field].(float64)
	if !ok {
		return 0, &models.ValidationError{Field: field, Message: field + " is not a number"}
	}
	return n, nil
}
