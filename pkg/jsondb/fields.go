package jsondb

import (
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// field is one encoded struct member after embedding is resolved.
type field struct {
	name      string
	goName    string
	tagged    bool
	index     []int
	omitEmpty bool
	quoted    bool
	typ       reflect.Type
}

type fieldsKey struct {
	typ    reflect.Type
	naming NamingPolicy
}

var fieldCache sync.Map // fieldsKey → []field

// fields returns the members encoded for struct type t, following the
// encoding/json rules: exported fields of embedded structs are promoted,
// including those of unexported embedded structs; among fields with the same
// name the shallowest wins, then a tagged one; ties are dropped.
func (c *Codec) fields(t reflect.Type) []field {
	key := fieldsKey{typ: t, naming: c.Naming}
	if f, ok := fieldCache.Load(key); ok {
		return f.([]field)
	}
	f, _ := fieldCache.LoadOrStore(key, typeFields(t, c.Naming))
	return f.([]field)
}

func typeFields(t reflect.Type, naming NamingPolicy) []field {
	var current []field
	next := []field{{typ: t}}

	var count, nextCount map[reflect.Type]int
	visited := map[reflect.Type]bool{}

	var fields []field
	for len(next) > 0 {
		current, next = next, current[:0]
		count, nextCount = nextCount, map[reflect.Type]int{}

		for _, f := range current {
			if visited[f.typ] {
				continue
			}
			visited[f.typ] = true

			for i := 0; i < f.typ.NumField(); i++ {
				sf := f.typ.Field(i)
				if sf.Anonymous {
					et := sf.Type
					if et.Kind() == reflect.Pointer {
						et = et.Elem()
					}
					if !sf.IsExported() && et.Kind() != reflect.Struct {
						continue
					}
				} else if !sf.IsExported() {
					continue
				}
				tag := sf.Tag.Get("json")
				if tag == "-" {
					continue
				}
				name, opts, _ := strings.Cut(tag, ",")
				if !validTagName(name) {
					name = ""
				}
				index := make([]int, len(f.index)+1)
				copy(index, f.index)
				index[len(f.index)] = i

				ft := sf.Type
				if ft.Name() == "" && ft.Kind() == reflect.Pointer {
					ft = ft.Elem()
				}

				if name != "" || !sf.Anonymous || ft.Kind() != reflect.Struct {
					fld := field{
						name:      name,
						goName:    sf.Name,
						tagged:    name != "",
						index:     index,
						omitEmpty: hasOption(opts, "omitempty"),
						quoted:    hasOption(opts, "string") && quotable(ft),
						typ:       ft,
					}
					if fld.name == "" {
						fld.name = fieldName(sf.Name, naming)
					}
					fields = append(fields, fld)
					if count[f.typ] > 1 {
						// The same struct embedded twice at this depth: add
						// a duplicate so both copies cancel out below.
						fields = append(fields, fields[len(fields)-1])
					}
					continue
				}

				nextCount[ft]++
				if nextCount[ft] == 1 {
					next = append(next, field{name: ft.Name(), index: index, typ: ft})
				}
			}
		}
	}

	sort.Slice(fields, func(i, j int) bool {
		x := fields
		if x[i].name != x[j].name {
			return x[i].name < x[j].name
		}
		if len(x[i].index) != len(x[j].index) {
			return len(x[i].index) < len(x[j].index)
		}
		if x[i].tagged != x[j].tagged {
			return x[i].tagged
		}
		return indexLess(x[i].index, x[j].index)
	})

	out := fields[:0]
	for advance, i := 0, 0; i < len(fields); i += advance {
		fi := fields[i]
		for advance = 1; i+advance < len(fields); advance++ {
			if fields[i+advance].name != fi.name {
				break
			}
		}
		if advance == 1 {
			out = append(out, fi)
			continue
		}
		if dominant, ok := dominantField(fields[i : i+advance]); ok {
			out = append(out, dominant)
		}
	}

	sort.Slice(out, func(i, j int) bool { return indexLess(out[i].index, out[j].index) })
	return out
}

// dominantField picks the winner among fields sharing a name, sorted by
// depth and then tagged first. ok is false when the top two tie.
func dominantField(fields []field) (field, bool) {
	if len(fields) > 1 && len(fields[0].index) == len(fields[1].index) && fields[0].tagged == fields[1].tagged {
		return field{}, false
	}
	return fields[0], true
}

func indexLess(a, b []int) bool {
	for k, x := range a {
		if k >= len(b) {
			return false
		}
		if x != b[k] {
			return x < b[k]
		}
	}
	return len(a) < len(b)
}

func hasOption(opts, name string) bool {
	for opts != "" {
		var o string
		o, opts, _ = strings.Cut(opts, ",")
		if o == name {
			return true
		}
	}
	return false
}

// quotable reports whether the ",string" option applies to t. Types with
// their own marshaler are written as they choose.
func quotable(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	if t.Implements(marshalerType) || t.Implements(textMarshalerType) ||
		pt.Implements(marshalerType) || pt.Implements(textMarshalerType) {
		return false
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	}
	return false
}

func validTagName(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case strings.ContainsRune("!#$%&()*+-./:;<=>?@[]^_{|}~ ", c):
		case !unicode.IsLetter(c) && !unicode.IsDigit(c):
			return false
		}
	}
	return true
}

func fieldName(name string, naming NamingPolicy) string {
	if naming == AsDeclared {
		return name
	}
	return camelCase(name)
}
