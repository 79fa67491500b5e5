// Package jsonutil provides lenient JSON decoding for model-emitted payloads
// and a deterministic depth-first walk over generic JSON values.
package jsonutil

import (
	"encoding/json"
	"sort"

	"github.com/kaptinlin/jsonrepair"
)

// Unmarshal decodes data into v, attempting to repair malformed JSON first
// when the initial decode fails with a syntax error. Models occasionally
// emit arguments with trailing commas, unquoted keys or truncated braces;
// repairing keeps the tool loop alive instead of failing the turn.
func Unmarshal(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(string(data))
		if rerr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

// ToGeneric round-trips an arbitrary value through JSON into generic
// map/slice form so it can be walked structurally.
func ToGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindFirst walks a generic JSON value depth-first and returns the first
// leaf for which match reports true, along with the key it was found under.
// Object keys are visited in sorted order so the result is deterministic
// regardless of map iteration order. Returns ok=false when nothing matches.
func FindFirst(v any, match func(key string, val any) bool) (key string, val any, ok bool) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := t[k]
			if match(k, child) {
				return k, child, true
			}
			if key, val, ok = FindFirst(child, match); ok {
				return key, val, true
			}
		}
	case []any:
		for _, child := range t {
			if key, val, ok = FindFirst(child, match); ok {
				return key, val, true
			}
		}
	}
	return "", nil, false
}
