package jsondb

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Entity is a record with an integer identifier. The identifier is the key
// for lookup, replace and delete.
type Entity interface {
	EntityID() int
}

// Document is a schemaless record. Its identifier is the "id" member.
type Document map[string]any

// EntityID returns the "id" member, matched case-insensitively. A missing or
// non-integral id yields 0.
func (d Document) EntityID() int {
	v, ok := d["id"]
	if !ok {
		for k, val := range d {
			if strings.EqualFold(k, "id") {
				v, ok = val, true
				break
			}
		}
	}
	if !ok {
		return 0
	}
	switch id := v.(type) {
	case int:
		return id
	case int64:
		return int(id)
	case int32:
		return int(id)
	case float64:
		if id == math.Trunc(id) {
			return int(id)
		}
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(id); err == nil {
			return n
		}
	}
	return 0
}

// isNil reports whether v is nil or a typed nil pointer, map, slice or interface.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
