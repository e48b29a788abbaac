package audit

import (
	"fmt"
	"reflect"
)

// cycleMarker replaces containers seen earlier on the current path so that
// self-referential metadata serializes instead of recursing forever.
const cycleMarker = "[CIRCULAR]"

// maxMetadataDepth bounds pathological nesting that is not strictly cyclic.
const maxMetadataDepth = 32

// normalizeMetadata deep-copies metadata into plain JSON-encodable shapes,
// breaking reference cycles with a marker. encoding/json would otherwise
// fail the whole entry on a self-referential map, and an audit logger must
// not drop records because a caller attached a careless structure.
func normalizeMetadata(metadata map[string]interface{}) map[string]interface{} {
	if metadata == nil {
		return nil
	}

	out := normalizeValue(reflect.ValueOf(metadata), make(map[uintptr]bool), 0)
	if m, ok := out.(map[string]interface{}); ok {
		return m
	}

	return nil
}

func normalizeValue(v reflect.Value, visited map[uintptr]bool, depth int) interface{} {
	if !v.IsValid() {
		return nil
	}
	if depth > maxMetadataDepth {
		return cycleMarker
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Ptr {
			ptr := v.Pointer()
			if visited[ptr] {
				return cycleMarker
			}
			visited[ptr] = true
			defer delete(visited, ptr)
		}
		return normalizeValue(v.Elem(), visited, depth+1)

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if visited[ptr] {
			return cycleMarker
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprintf("%v", iter.Key().Interface())
			out[key] = normalizeValue(iter.Value(), visited, depth+1)
		}
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if visited[ptr] {
			return cycleMarker
		}
		visited[ptr] = true
		defer delete(visited, ptr)

		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = normalizeValue(v.Index(i), visited, depth+1)
		}
		return out

	case reflect.Array:
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = normalizeValue(v.Index(i), visited, depth+1)
		}
		return out

	case reflect.Struct:
		out := make(map[string]interface{}, v.NumField())
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			out[t.Field(i).Name] = normalizeValue(v.Field(i), visited, depth+1)
		}
		return out

	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// Not representable in JSON; record the type instead of failing.
		return fmt.Sprintf("[%s]", v.Kind())

	default:
		return v.Interface()
	}
}
