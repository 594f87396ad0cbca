package jsondb

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"
	"strconv"
	"time"
	"unicode"

	"github.com/tidwall/pretty"
)

// NamingPolicy selects how untagged struct field names are written.
type NamingPolicy int

const (
	// CamelCase lowercases the leading word of untagged field names (UserID → userID).
	CamelCase NamingPolicy = iota
	// AsDeclared writes untagged field names exactly as declared in Go.
	AsDeclared
)

// LoopHandling selects what the encoder does with self-referencing values.
type LoopHandling int

const (
	// IgnoreLoops omits a pointer, map or slice that is already on the encoding path.
	IgnoreLoops LoopHandling = iota
	// ErrorOnLoop fails the encoding with ErrCycle.
	ErrorOnLoop
)

// ErrCycle is returned by a Codec configured with ErrorOnLoop.
var ErrCycle = errors.New("jsondb: reference cycle")

// Codec converts between record lists and collection file bytes.
// The zero value writes compact camelCase JSON and breaks cycles.
type Codec struct {
	Naming NamingPolicy
	Loops  LoopHandling
	Indent bool
}

var (
	timeType          = reflect.TypeOf(time.Time{})
	marshalerType     = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	utf8BOM           = []byte{0xEF, 0xBB, 0xBF}
)

// Marshal encodes v as JSON according to the codec settings.
func (c *Codec) Marshal(v any) ([]byte, error) {
	e := &encoder{codec: c, path: make(map[pathKey]struct{})}
	tree, ok, err := e.value(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	if !ok {
		tree = nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, err
	}
	out := bytes.TrimRight(buf.Bytes(), "\n")
	if c.Indent {
		out = pretty.Pretty(out)
	}
	return out, nil
}

// Unmarshal decodes data into v. Member names match case-insensitively,
// a leading UTF-8 BOM is skipped and blank input leaves v untouched.
func (c *Codec) Unmarshal(data []byte, v any) error {
	data = bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(data) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after top-level value")
	}
	return nil
}

// object keeps member order stable in the encoded output.
type object []member

type member struct {
	key   string
	value any
}

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalNoEscape(m.value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// encoder lowers a Go value into a tree of plain values, applying the naming
// policy and tracking the pointers, maps and slices on the current path.
type encoder struct {
	codec *Codec
	path  map[pathKey]struct{}
}

// pathKey includes the type so a struct and its first field never collide,
// and the length so a slice and a shorter reslice of it are distinct.
type pathKey struct {
	ptr uintptr
	len int
	typ reflect.Type
}

// value returns the lowered form of v. ok is false when v must be omitted
// because it closes a reference cycle.
func (e *encoder) value(v reflect.Value) (out any, ok bool, err error) {
	if !v.IsValid() {
		return nil, true, nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return nil, true, nil
		}
	}

	if v.Type() == timeType {
		return v.Interface().(time.Time).UTC().Format(time.RFC3339Nano), true, nil
	}
	if v.Kind() != reflect.Pointer {
		if out, ok, err := marshalWith(v); ok || err != nil {
			return out, ok, err
		}
	}

	switch v.Kind() {
	case reflect.Pointer:
		leave, ok, err := e.enter(v)
		if !ok || err != nil {
			return nil, ok, err
		}
		defer leave()
		// The element is addressable, so pointer receivers are found there.
		return e.value(v.Elem())
	case reflect.Interface:
		return e.value(v.Elem())
	case reflect.Struct:
		return e.structValue(v)
	case reflect.Map:
		leave, ok, err := e.enter(v)
		if !ok || err != nil {
			return nil, ok, err
		}
		defer leave()
		return e.mapValue(v)
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes(), true, nil
		}
		if v.Len() == 0 {
			return []any{}, true, nil
		}
		leave, ok, err := e.enter(v)
		if !ok || err != nil {
			return nil, ok, err
		}
		defer leave()
		return e.listValue(v)
	case reflect.Array:
		return e.listValue(v)
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return nil, false, &json.UnsupportedTypeError{Type: v.Type()}
	default:
		return v.Interface(), true, nil
	}
}

// marshalWith runs the json.Marshaler or encoding.TextMarshaler of v, looking
// at pointer receivers too when v is addressable. ok is false when v has
// neither.
func marshalWith(v reflect.Value) (any, bool, error) {
	recv := v
	switch {
	case v.Type().Implements(marshalerType), v.Type().Implements(textMarshalerType):
	case v.CanAddr() && (reflect.PointerTo(v.Type()).Implements(marshalerType) ||
		reflect.PointerTo(v.Type()).Implements(textMarshalerType)):
		recv = v.Addr()
	default:
		return nil, false, nil
	}

	if m, isJSON := recv.Interface().(json.Marshaler); isJSON {
		raw, err := m.MarshalJSON()
		if err != nil {
			return nil, false, err
		}
		return json.RawMessage(raw), true, nil
	}
	text, err := recv.Interface().(encoding.TextMarshaler).MarshalText()
	if err != nil {
		return nil, false, err
	}
	return string(text), true, nil
}

// enter pushes v on the encoding path. ok is false when v is already on it.
func (e *encoder) enter(v reflect.Value) (leave func(), ok bool, err error) {
	key := pathKey{ptr: v.Pointer(), typ: v.Type()}
	if v.Kind() == reflect.Slice {
		key.len = v.Len()
	}
	if _, seen := e.path[key]; seen {
		if e.codec.Loops == ErrorOnLoop {
			return nil, false, ErrCycle
		}
		return nil, false, nil
	}
	e.path[key] = struct{}{}
	return func() { delete(e.path, key) }, true, nil
}

func (e *encoder) listValue(v reflect.Value) (any, bool, error) {
	out := make([]any, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		item, ok, err := e.value(v.Index(i))
		if err != nil {
			return nil, false, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, true, nil
}

func (e *encoder) mapValue(v reflect.Value) (any, bool, error) {
	out := make(object, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		key, err := mapKey(iter.Key())
		if err != nil {
			return nil, false, err
		}
		item, ok, err := e.value(iter.Value())
		if err != nil {
			return nil, false, err
		}
		if ok {
			out = append(out, member{key: key, value: item})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out, true, nil
}

func mapKey(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if k.Type().Implements(textMarshalerType) {
		text, err := k.Interface().(encoding.TextMarshaler).MarshalText()
		return string(text), err
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", &json.UnsupportedTypeError{Type: k.Type()}
}

func (e *encoder) structValue(v reflect.Value) (any, bool, error) {
	fields := e.codec.fields(v.Type())
	out := make(object, 0, len(fields))
next:
	for _, f := range fields {
		fv := v
		for _, i := range f.index {
			if fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					continue next
				}
				fv = fv.Elem()
			}
			fv = fv.Field(i)
		}
		if f.omitEmpty && isEmptyValue(fv) {
			continue
		}
		item, ok, err := e.value(fv)
		if err != nil {
			return nil, false, fmt.Errorf("field %s: %w", f.goName, err)
		}
		if !ok {
			continue
		}
		if f.quoted && item != nil {
			raw, err := marshalNoEscape(item)
			if err != nil {
				return nil, false, fmt.Errorf("field %s: %w", f.goName, err)
			}
			item = string(raw)
		}
		out = append(out, member{key: f.name, value: item})
	}
	return out, true, nil
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Pointer:
		return v.IsNil()
	}
	return false
}

// camelCase lowercases the leading run of upper-case letters, keeping the
// last one when it starts the next word: ID → id, UserID → userID,
// URLPath → urlPath.
func camelCase(s string) string {
	r := []rune(s)
	if len(r) == 0 || !unicode.IsUpper(r[0]) {
		return s
	}
	for i := range r {
		if i == 1 && !unicode.IsUpper(r[i]) {
			break
		}
		if i > 0 && i+1 < len(r) && !unicode.IsUpper(r[i+1]) {
			break
		}
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}
