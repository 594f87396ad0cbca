// Package testutil provides shared test helpers for setting up data
// directories, catalogs and record services.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/jsondb/internal/catalog"
	"github.com/starford/jsondb/internal/recordservice"
	"github.com/starford/jsondb/internal/storage"
	"github.com/starford/jsondb/pkg/jsondb"
)

// TestDB creates a temporary catalog database that is automatically cleaned up.
func TestDB(t *testing.T, opts ...catalog.Option) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "jsondb-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestDataDir returns a storage provider on a data directory that does not
// exist yet.
func TestDataDir(t *testing.T) *storage.FS {
	t.Helper()
	fsys, err := storage.NewFS(filepath.Join(t.TempDir(), "App_Data", "JsonDb"))
	if err != nil {
		t.Fatal(err)
	}
	return fsys
}

// TestService wires a store, a catalog and a record service on temporary
// directories. Extra options are applied after the catalog.
func TestService(t *testing.T, opts ...recordservice.Option) (*recordservice.Service, *catalog.DB, *storage.FS) {
	t.Helper()
	fsys := TestDataDir(t)
	store, err := jsondb.New(fsys)
	if err != nil {
		t.Fatal(err)
	}
	db := TestDB(t, catalog.WithKindFunc(recordservice.KindFunc(store)))
	svc := recordservice.NewService(store, fsys, append([]recordservice.Option{recordservice.WithCatalog(db)}, opts...)...)
	return svc, db, fsys
}
