package jsondb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

type product struct {
	ID    int
	Name  string
	Price float64   `json:",omitempty"`
	Added time.Time `json:"added"`
}

func (p *product) EntityID() int { return p.ID }

type tag struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

func (t tag) EntityID() int { return t.ID }

func testStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "App_Data", "JsonDb")
	s, err := Open(dir, opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, dir
}

func products(t *testing.T, s *Store) *Collection[*product] {
	t.Helper()
	c, err := NewCollection[*product](s, "Product")
	if err != nil {
		t.Fatalf("NewCollection: %v", err)
	}
	return c
}

func ids[T Entity](records []T) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.EntityID()
	}
	return out
}

func TestSaveReplaceDeleteScenario(t *testing.T) {
	s, _ := testStore(t)
	c := products(t, s)

	if err := c.Save(&product{ID: 1, Name: "a"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	all, err := c.GetAll()
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 1 || all[0].Name != "a" {
		t.Fatalf("after first save = %+v", all)
	}

	if err := c.Save(&product{ID: 1, Name: "b"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	all, _ = c.GetAll()
	if len(all) != 1 || all[0].Name != "b" {
		t.Fatalf("after replace = %+v", all)
	}

	if err := c.Delete(&product{ID: 1}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	all, _ = c.GetAll()
	if len(all) != 0 {
		t.Fatalf("after delete len = %d, want 0", len(all))
	}
}

func TestSaveRangeDeleteRangeScenario(t *testing.T) {
	s, _ := testStore(t)
	c, err := NewCollection[tag](s, "Tag")
	if err != nil {
		t.Fatal(err)
	}

	if err := c.SaveRange([]tag{{ID: 2}, {ID: 3}}); err != nil {
		t.Fatalf("SaveRange: %v", err)
	}
	all, _ := c.GetAll()
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}

	if err := c.DeleteRange([]tag{{ID: 2}}); err != nil {
		t.Fatalf("DeleteRange: %v", err)
	}
	all, _ = c.GetAll()
	if !reflect.DeepEqual(ids(all), []int{3}) {
		t.Fatalf("ids = %v, want [3]", ids(all))
	}
}

func TestRoundTrip(t *testing.T) {
	s, _ := testStore(t)
	c := products(t, s)

	want := &product{ID: 7, Name: "lamp", Price: 12.5, Added: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)}
	if err := c.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := c.GetByID(want.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestRoundTripNonUTCTime(t *testing.T) {
	s, _ := testStore(t)
	c := products(t, s)

	zone := time.FixedZone("UTC+2", 2*60*60)
	added := time.Date(2024, 3, 1, 12, 30, 0, 0, zone)
	if err := c.Save(&product{ID: 1, Added: added}); err != nil {
		t.Fatal(err)
	}
	got, _ := c.GetByID(1)
	if !got.Added.Equal(added) {
		t.Errorf("added = %v, want instant %v", got.Added, added)
	}
	if got.Added.Location() != time.UTC {
		t.Errorf("added location = %v, want UTC", got.Added.Location())
	}
}

func TestUpsertIdempotence(t *testing.T) {
	s, _ := testStore(t)
	c := products(t, s)

	_ = c.Save(&product{ID: 1, Name: "first"})
	_ = c.Save(&product{ID: 2, Name: "other"})
	_ = c.Save(&product{ID: 1, Name: "second"})
	_ = c.Save(&product{ID: 1, Name: "second"})

	all, _ := c.GetAll()
	count := 0
	for _, p := range all {
		if p.ID == 1 {
			count++
			if p.Name != "second" {
				t.Errorf("name = %q, want second", p.Name)
			}
		}
	}
	if count != 1 {
		t.Errorf("records with id 1 = %d, want 1", count)
	}
	// Upsert is remove-then-append, so the replaced record moves to the end.
	if !reflect.DeepEqual(ids(all), []int{2, 1}) {
		t.Errorf("order = %v, want [2 1]", ids(all))
	}
}

func TestSaveRangeDuplicateIDsLastWins(t *testing.T) {
	s, _ := testStore(t)
	c := products(t, s)

	err := c.SaveRange([]*product{{ID: 1, Name: "x"}, {ID: 2, Name: "y"}, {ID: 1, Name: "z"}})
	if err != nil {
		t.Fatalf("SaveRange: %v", err)
	}
	all, _ := c.GetAll()
	if !reflect.DeepEqual(ids(all), []int{2, 1}) {
		t.Fatalf("ids = %v, want [2 1]", ids(all))
	}
	if all[1].Name != "z" {
		t.Errorf("name = %q, want z", all[1].Name)
	}
}

func TestDeleteRemovesDuplicates(t *testing.T) {
	s, dir := testStore(t)
	c := products(t, s)

	// Duplicates can only come from outside the store.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := `[{"id":1,"name":"a"},{"id":2,"name":"b"},{"id":1,"name":"c"}]`
	if err := os.WriteFile(filepath.Join(dir, "Product.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	before, _ := c.GetAll()
	if err := c.Delete(&product{ID: 1}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	after, _ := c.GetAll()
	if len(before)-len(after) != 2 {
		t.Errorf("removed %d records, want 2", len(before)-len(after))
	}
	if _, err := c.GetByID(1); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete err = %v, want ErrNotFound", err)
	}
}

func TestDeleteMissingIDKeepsCollection(t *testing.T) {
	s, _ := testStore(t)
	c := products(t, s)
	_ = c.Save(&product{ID: 1})

	if err := c.DeleteByID(42); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	all, _ := c.GetAll()
	if len(all) != 1 {
		t.Errorf("len = %d, want 1", len(all))
	}
}

func TestGetByIDNotFound(t *testing.T) {
	s, _ := testStore(t)
	c := products(t, s)
	_ = c.Save(&product{ID: 1})

	got, err := c.GetByID(2)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestEmptyFileBootstrap(t *testing.T) {
	cases := map[string]func(c *Collection[*product]) error{
		"GetAll": func(c *Collection[*product]) error { _, err := c.GetAll(); return err },
		"GetByID": func(c *Collection[*product]) error {
			_, err := c.GetByID(1)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		},
		"Save":        func(c *Collection[*product]) error { return c.Save(&product{ID: 1}) },
		"SaveRange":   func(c *Collection[*product]) error { return c.SaveRange([]*product{{ID: 1}}) },
		"Delete":      func(c *Collection[*product]) error { return c.Delete(&product{ID: 1}) },
		"DeleteRange": func(c *Collection[*product]) error { return c.DeleteRange([]*product{{ID: 1}}) },
	}
	for name, op := range cases {
		t.Run(name, func(t *testing.T) {
			s, dir := testStore(t)
			c := products(t, s)
			if err := op(c); err != nil {
				t.Fatalf("%s on missing file: %v", name, err)
			}
			if _, err := os.Stat(filepath.Join(dir, "Product.json")); err != nil {
				t.Fatalf("file not created: %v", err)
			}
		})
	}
}

func TestBlankFileIsEmptyCollection(t *testing.T) {
	for name, content := range map[string]string{
		"empty":      "",
		"whitespace": " \n\t",
		"bom":        "\xEF\xBB\xBF",
		"null":       "null",
	} {
		t.Run(name, func(t *testing.T) {
			s, dir := testStore(t)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(dir, "Product.json"), []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			all, err := products(t, s).GetAll()
			if err != nil {
				t.Fatalf("GetAll: %v", err)
			}
			if all == nil || len(all) != 0 {
				t.Errorf("all = %#v, want empty non-nil slice", all)
			}
		})
	}
}

func TestCorruptData(t *testing.T) {
	for name, content := range map[string]string{
		"invalid json":  `[{"id":1,`,
		"object":        `{"id":1}`,
		"wrong type":    `[{"id":"x"}]`,
		"null record":   `[{"id":1},null]`,
		"trailing data": `[] []`,
	} {
		t.Run(name, func(t *testing.T) {
			s, dir := testStore(t)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				t.Fatal(err)
			}
			path := filepath.Join(dir, "Product.json")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			c := products(t, s)
			if _, err := c.GetAll(); !errors.Is(err, ErrCorruptData) {
				t.Errorf("GetAll err = %v, want ErrCorruptData", err)
			}
			if err := c.Save(&product{ID: 2}); !errors.Is(err, ErrCorruptData) {
				t.Errorf("Save err = %v, want ErrCorruptData", err)
			}
			got, _ := os.ReadFile(path)
			if string(got) != content {
				t.Errorf("corrupt file was rewritten: %q", got)
			}
		})
	}
}

func TestNilArguments(t *testing.T) {
	s, _ := testStore(t)
	c := products(t, s)

	checks := map[string]error{
		"Save":                c.Save(nil),
		"SaveRange nil":       c.SaveRange(nil),
		"SaveRange element":   c.SaveRange([]*product{{ID: 1}, nil}),
		"Delete":              c.Delete(nil),
		"DeleteRange nil":     c.DeleteRange(nil),
		"DeleteRange element": c.DeleteRange([]*product{nil}),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%s: err = %v, want ErrInvalidArgument", name, err)
		}
	}
	all, err := c.GetAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("rejected calls must not write, got %d records", len(all))
	}
}

func TestNilDocumentRejected(t *testing.T) {
	s, _ := testStore(t)
	c, err := NewCollection[Document](s, "Doc")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Save(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestEmptySaveRangeIsNoOp(t *testing.T) {
	s, _ := testStore(t)
	c := products(t, s)
	_ = c.Save(&product{ID: 1})

	if err := c.SaveRange([]*product{}); err != nil {
		t.Fatalf("SaveRange: %v", err)
	}
	all, _ := c.GetAll()
	if len(all) != 1 {
		t.Errorf("len = %d, want 1", len(all))
	}
}

func TestLastModifiedUTC(t *testing.T) {
	s, _ := testStore(t)
	c := products(t, s)

	before, err := c.LastModifiedUTC()
	if err != nil {
		t.Fatalf("LastModifiedUTC: %v", err)
	}
	if !before.IsZero() {
		t.Fatalf("missing file should report zero time, got %v", before)
	}

	if err := c.Save(&product{ID: 1}); err != nil {
		t.Fatal(err)
	}
	first, err := c.LastModifiedUTC()
	if err != nil {
		t.Fatal(err)
	}
	if !first.After(before) {
		t.Fatalf("first write %v not after %v", first, before)
	}
	if first.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", first.Location())
	}

	time.Sleep(20 * time.Millisecond)
	if err := c.Save(&product{ID: 2}); err != nil {
		t.Fatal(err)
	}
	second, err := c.LastModifiedUTC()
	if err != nil {
		t.Fatal(err)
	}
	if !second.After(first) {
		t.Errorf("second write %v not after %v", second, first)
	}
}

func TestLastModifiedDoesNotCreateFile(t *testing.T) {
	s, dir := testStore(t)
	if _, err := products(t, s).LastModifiedUTC(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("data directory should not exist yet, stat err = %v", err)
	}
}

func TestConcurrentSavesKeepEveryRecord(t *testing.T) {
	s, _ := testStore(t)
	c := products(t, s)

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			errs <- c.Save(&product{ID: id, Name: fmt.Sprintf("p%d", id)})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	all, _ := c.GetAll()
	if len(all) != n {
		t.Errorf("len = %d, want %d", len(all), n)
	}
}

func TestCollectionsShareKindLock(t *testing.T) {
	s, _ := testStore(t)
	a := products(t, s)
	b := products(t, s)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(2)
		go func(id int) { defer wg.Done(); _ = a.Save(&product{ID: id}) }(i)
		go func(id int) { defer wg.Done(); _ = b.Save(&product{ID: 100 + id}) }(i)
	}
	wg.Wait()

	all, _ := a.GetAll()
	if len(all) != 40 {
		t.Errorf("len = %d, want 40", len(all))
	}
}

func TestFileLayoutCamelCase(t *testing.T) {
	s, dir := testStore(t)
	c := products(t, s)
	_ = c.Save(&product{ID: 1, Name: "a", Added: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)})

	got, err := os.ReadFile(filepath.Join(dir, "Product.json"))
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"id":1,"name":"a","added":"2024-01-02T03:04:05Z"}]`
	if string(got) != want {
		t.Errorf("file = %s\nwant  %s", got, want)
	}
}

func TestRegisteredFileName(t *testing.T) {
	s, dir := testStore(t, WithKind("Product", "catalog-products.json"))
	_ = products(t, s).Save(&product{ID: 1})

	if _, err := os.Stat(filepath.Join(dir, "catalog-products.json")); err != nil {
		t.Errorf("registered file not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "Product.json")); !os.IsNotExist(err) {
		t.Errorf("default file should not exist, stat err = %v", err)
	}
}

func TestDocumentCollection(t *testing.T) {
	s, _ := testStore(t)
	c, err := NewCollection[Document](s, "Note")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SaveRange([]Document{{"id": 1, "title": "a"}, {"id": 2, "title": "b"}}); err != nil {
		t.Fatalf("SaveRange: %v", err)
	}
	if err := c.Save(Document{"id": 1, "title": "c"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := c.GetByID(1)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got["title"] != "c" {
		t.Errorf("title = %v, want c", got["title"])
	}
	all, _ := c.GetAll()
	if len(all) != 2 {
		t.Errorf("len = %d, want 2", len(all))
	}
}

func TestDeleteOnEmptyFileWritesEmptyArray(t *testing.T) {
	s, dir := testStore(t)
	c := products(t, s)

	path := filepath.Join(dir, "Product.json")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := c.DeleteByID(1); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "[]" {
		t.Errorf("file = %q, want []", got)
	}
}
