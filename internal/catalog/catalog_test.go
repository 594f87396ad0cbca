package catalog

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/jsondb/internal/apperr"
	"github.com/starford/jsondb/internal/models"
	"github.com/starford/jsondb/internal/storage"
)

func testDB(t *testing.T, opts ...Option) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "jsondb-catalog-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name(), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testStorage(t *testing.T) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM collections`).Scan(&count); err != nil {
		t.Fatalf("collections table missing: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)
	mod := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	err := db.Upsert(models.Collection{
		Kind:       "Product",
		File:       "Product.json",
		Checksum:   "abc",
		Size:       42,
		Records:    3,
		ModifiedAt: mod,
		SyncedAt:   mod,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := db.Get("Product")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.File != "Product.json" || got.Checksum != "abc" || got.Size != 42 || got.Records != 3 || got.Corrupt {
		t.Errorf("entry = %+v", got)
	}
	if !got.ModifiedAt.Equal(mod) {
		t.Errorf("modified = %v, want %v", got.ModifiedAt, mod)
	}
}

func TestUpsertUpdatesExisting(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(models.Collection{Kind: "Order", File: "Order.json", Checksum: "1", Records: 1})
	_ = db.Upsert(models.Collection{Kind: "Order", File: "Order.json", Checksum: "2", Corrupt: true})

	got, err := db.Get("Order")
	if err != nil {
		t.Fatal(err)
	}
	if got.Checksum != "2" || !got.Corrupt || got.Records != 0 {
		t.Errorf("entry = %+v", got)
	}
	list, _ := db.List()
	if len(list) != 1 {
		t.Errorf("list len = %d, want 1", len(list))
	}
}

func TestGetNotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.Get("Missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListOrderedByKind(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(models.Collection{Kind: "b", File: "b.json"})
	_ = db.Upsert(models.Collection{Kind: "a", File: "a.json"})

	list, err := db.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Kind != "a" || list[1].Kind != "b" {
		t.Errorf("list = %+v", list)
	}
}

func TestListEmptyIsNotNil(t *testing.T) {
	list, err := testDB(t).List()
	if err != nil {
		t.Fatal(err)
	}
	if list == nil {
		t.Error("empty list should not be nil")
	}
}

func TestDeleteAndChecksum(t *testing.T) {
	db := testDB(t)
	_ = db.Upsert(models.Collection{Kind: "Gone", File: "Gone.json", Checksum: "x"})

	cs, err := db.Checksum("Gone.json")
	if err != nil || cs != "x" {
		t.Fatalf("Checksum = %q, %v", cs, err)
	}
	if err := db.Delete("Gone.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	cs, err = db.Checksum("Gone.json")
	if err != nil {
		t.Fatalf("Checksum: %v", err)
	}
	if cs != "" {
		t.Errorf("deleted entry still has checksum %q", cs)
	}
	if err := db.Delete("Gone.json"); err != nil {
		t.Errorf("deleting a missing entry: %v", err)
	}
}

func TestKindFunc(t *testing.T) {
	db := testDB(t, WithKindFunc(func(file string) string { return "K:" + file }))
	if got := db.KindOf("a.json"); got != "K:a.json" {
		t.Errorf("KindOf = %q", got)
	}
	if got := testDB(t).KindOf("Product.json"); got != "Product" {
		t.Errorf("default KindOf = %q, want Product", got)
	}
}

func TestDescribe(t *testing.T) {
	mod := time.Now()
	cases := []struct {
		name    string
		data    string
		records int
		corrupt bool
	}{
		{"empty file", "", 0, false},
		{"null", "null", 0, false},
		{"empty array", "[]", 0, false},
		{"two records", `[{"id":1},{"id":2}]`, 2, false},
		{"bom", "\xEF\xBB\xBF[{\"id\":1}]", 1, false},
		{"object", `{"id":1}`, 0, true},
		{"truncated", `[{"id":1}`, 0, true},
		{"null element", `[{"id":1},null]`, 0, true},
	}
	for _, c := range cases {
		got := Describe("K", "K.json", []byte(c.data), mod)
		if got.Records != c.records || got.Corrupt != c.corrupt {
			t.Errorf("%s: records=%d corrupt=%v, want %d %v", c.name, got.Records, got.Corrupt, c.records, c.corrupt)
		}
		if got.Size != int64(len(c.data)) || got.Checksum == "" {
			t.Errorf("%s: size/checksum not filled: %+v", c.name, got)
		}
	}
}

func TestRefreshEvents(t *testing.T) {
	db := testDB(t)
	store := testStorage(t)

	event, err := Refresh(db, store, "Tag.json")
	if err != nil || event != "" {
		t.Fatalf("missing uncatalogued file: event=%q err=%v", event, err)
	}

	_ = store.Write("Tag.json", []byte(`[{"id":1}]`))
	if event, _ = Refresh(db, store, "Tag.json"); event != EventCreated {
		t.Errorf("first refresh = %q, want created", event)
	}
	if event, _ = Refresh(db, store, "Tag.json"); event != "" {
		t.Errorf("unchanged refresh = %q, want none", event)
	}

	_ = store.Write("Tag.json", []byte(`[{"id":1},{"id":2}]`))
	if event, _ = Refresh(db, store, "Tag.json"); event != EventUpdated {
		t.Errorf("changed refresh = %q, want updated", event)
	}
	got, _ := db.Get("Tag")
	if got == nil || got.Records != 2 {
		t.Errorf("entry = %+v, want 2 records", got)
	}

	if err := os.Remove(filepath.Join(store.Root(), "Tag.json")); err != nil {
		t.Fatal(err)
	}
	if event, _ = Refresh(db, store, "Tag.json"); event != EventDeleted {
		t.Errorf("removed refresh = %q, want deleted", event)
	}
	if _, err := db.Get("Tag"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("entry should be gone, err = %v", err)
	}
}

func TestSync(t *testing.T) {
	db := testDB(t)
	store := testStorage(t)
	_ = store.Write("A.json", []byte(`[{"id":1}]`))
	_ = store.Write("B.json", []byte(`not json`))
	_ = db.Upsert(models.Collection{Kind: "Stale", File: "Stale.json", Checksum: "old"})

	if err := Sync(db, store, quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	list, _ := db.List()
	if len(list) != 2 {
		t.Fatalf("list = %+v, want A and B", list)
	}
	if list[0].Kind != "A" || list[0].Records != 1 || list[0].Corrupt {
		t.Errorf("A = %+v", list[0])
	}
	if list[1].Kind != "B" || !list[1].Corrupt {
		t.Errorf("B = %+v", list[1])
	}
}

func TestSyncMissingDataDir(t *testing.T) {
	db := testDB(t)
	if err := Sync(db, testStorage(t), quietLogger()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}
