package docstore

import (
	"encoding/json"
	"reflect"
	"time"
)

type serverTimestamp struct{}

type arrayUnion struct{ values []interface{} }

type arrayRemove struct{ values []interface{} }

// ServerTimestamp is replaced by the commit time as {seconds, nanoseconds}.
func ServerTimestamp() interface{} { return serverTimestamp{} }

// ArrayUnion appends values not already present in the stored array.
func ArrayUnion(values ...interface{}) interface{} { return arrayUnion{values: values} }

// ArrayRemove removes every occurrence of values from the stored array.
func ArrayRemove(values ...interface{}) interface{} { return arrayRemove{values: values} }

// timestampValue encodes t the way stored timestamps are read back.
func timestampValue(t time.Time) map[string]interface{} {
	return map[string]interface{}{
		"seconds":     float64(t.Unix()),
		"nanoseconds": float64(t.Nanosecond()),
	}
}

// normalize converts v into the plain JSON value space (map, slice, string, float64, bool, nil).
func normalize(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, invalidArgument("value is not JSON encodable: " + err.Error())
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, invalidArgument(err.Error())
	}
	return out, nil
}

func normalizeAll(values []interface{}) ([]interface{}, error) {
	out := make([]interface{}, 0, len(values))
	for _, v := range values {
		n, err := normalize(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// apply resolves fields against existing (nil for a fresh document) and returns the new
// document body. existing is not modified.
func apply(existing map[string]interface{}, fields Fields, now time.Time, merge bool) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(existing)+len(fields))
	if merge {
		for k, v := range existing {
			out[k] = v
		}
	}
	for key, value := range fields {
		if key == "" {
			return nil, invalidArgument("empty field name")
		}
		switch v := value.(type) {
		case serverTimestamp:
			out[key] = timestampValue(now)
		case arrayUnion:
			values, err := normalizeAll(v.values)
			if err != nil {
				return nil, err
			}
			current := asArray(existing[key])
			for _, candidate := range values {
				if !containsValue(current, candidate) {
					current = append(current, candidate)
				}
			}
			out[key] = current
		case arrayRemove:
			values, err := normalizeAll(v.values)
			if err != nil {
				return nil, err
			}
			current := asArray(existing[key])
			kept := make([]interface{}, 0, len(current))
			for _, item := range current {
				if !containsValue(values, item) {
					kept = append(kept, item)
				}
			}
			out[key] = kept
		default:
			n, err := normalize(value)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
	}
	return out, nil
}

// asArray copies an existing array value; non-arrays are treated as empty.
func asArray(v interface{}) []interface{} {
	arr, ok := v.([]interface{})
	if !ok {
		return []interface{}{}
	}
	out := make([]interface{}, len(arr))
	copy(out, arr)
	return out
}

func containsValue(values []interface{}, target interface{}) bool {
	for _, v := range values {
		if reflect.DeepEqual(v, target) {
			return true
		}
	}
	return false
}

// matches evaluates filters against a JSON-normalised document body.
func matches(data map[string]interface{}, filters []Filter) (bool, error) {
	for _, f := range filters {
		want, err := normalize(f.Value)
		if err != nil {
			return false, err
		}
		got, ok := data[f.Field]
		switch f.Op {
		case OpEqual:
			if !ok || !reflect.DeepEqual(got, want) {
				return false, nil
			}
		case OpArrayContains:
			arr, isArr := got.([]interface{})
			if !ok || !isArr || !containsValue(arr, want) {
				return false, nil
			}
		}
	}
	return true, nil
}
