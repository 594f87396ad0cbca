package jsondb

import (
	"reflect"

	"github.com/invopop/jsonschema"
)

// documentShape is the record shape assumed for kinds only ever opened as
// Documents: an object with an integer id and any other members.
type documentShape struct {
	ID int `json:"id"`
}

var documentType = reflect.TypeFor[Document]()

// Schema describes the on-disk shape of a T collection file: an array of
// T objects with member names as the naming policy writes them.
func Schema[T Entity](naming NamingPolicy) *jsonschema.Schema {
	return schemaOf(reflect.TypeFor[T](), naming)
}

// Schema describes the collection file of kind using the record type the
// kind was last opened with through NewCollection. Kinds opened only as
// Documents are described as objects with an integer id.
func (s *Store) Schema(kind string) (*jsonschema.Schema, error) {
	e, err := s.lookup(kind)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	t := e.typ
	s.mu.Unlock()
	if t == nil {
		t = reflect.TypeFor[documentShape]()
	}
	return schemaOf(t, s.codec.Naming), nil
}

func schemaOf(t reflect.Type, naming NamingPolicy) *jsonschema.Schema {
	// Inline properties (no $ref) and no $id so the item can be nested.
	r := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	if naming == CamelCase {
		r.KeyNamer = camelCase
	}
	item := r.ReflectFromType(t)
	item.Version = ""
	return &jsonschema.Schema{
		Version: jsonschema.Version,
		Type:    "array",
		Items:   item,
	}
}
