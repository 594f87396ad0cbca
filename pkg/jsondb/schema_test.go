package jsondb

import (
	"errors"
	"testing"
)

func TestSchema(t *testing.T) {
	s := Schema[*product](CamelCase)
	if s.Type != "array" || s.Items == nil {
		t.Fatalf("schema = %+v, want array with items", s)
	}
	if s.Items.Type != "object" {
		t.Errorf("item type = %q, want object", s.Items.Type)
	}

	var names []string
	for pair := s.Items.Properties.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	want := []string{"id", "name", "price", "added"}
	if len(names) != len(want) {
		t.Fatalf("properties = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("property %d = %q, want %q", i, names[i], want[i])
		}
	}

	added, ok := s.Items.Properties.Get("added")
	if !ok || added.Format != "date-time" {
		t.Errorf("added = %+v, want date-time string", added)
	}
}

func TestSchemaAsDeclared(t *testing.T) {
	s := Schema[*product](AsDeclared)
	if _, ok := s.Items.Properties.Get("ID"); !ok {
		t.Error("AsDeclared schema should keep Go field names")
	}
}

func TestStoreSchema(t *testing.T) {
	s, _ := testStore(t)

	doc, err := s.Schema("Note")
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	id, ok := doc.Items.Properties.Get("id")
	if !ok || id.Type != "integer" {
		t.Errorf("document schema id = %+v, want integer", id)
	}

	// Opening the kind as Documents afterwards keeps the typed shape.
	products(t, s)
	if _, err := NewCollection[Document](s, "Product"); err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	typed, err := s.Schema("Product")
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if _, ok := typed.Items.Properties.Get("added"); !ok {
		t.Error("typed schema should list the product fields")
	}

	if _, err := s.Schema("../x"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}
