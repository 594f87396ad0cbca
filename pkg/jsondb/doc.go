// Package jsondb is a small file-backed JSON object store.
//
// Each record kind lives in one JSON file holding an array of records. Every
// operation reads the whole file, decodes it, mutates the list in memory and
// writes the whole file back. It targets small, rarely written datasets
// embedded in an application; it is not a database engine.
//
// # Records
//
// A record type implements [Entity] by exposing its integer identifier:
//
//	type Product struct {
//	    ID    int
//	    Name  string
//	    Added time.Time
//	}
//
//	func (p *Product) EntityID() int { return p.ID }
//
// [Document] is a ready-made schemaless record keyed by its "id" member.
//
// # Basic Usage
//
//	db, err := jsondb.Open("App_Data/JsonDb")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	products, err := jsondb.NewCollection[*Product](db, "Product")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = products.Save(&Product{ID: 1, Name: "lamp"})
//	p, err := products.GetByID(1)
//	all, err := products.GetAll()
//	err = products.Delete(p)
//
// The collection above is stored in App_Data/JsonDb/Product.json as
// [{"id":1,"name":"lamp","added":"0001-01-01T00:00:00Z"}]. Use
// [Store.Register] or [WithKind] to map a kind to a different file.
//
// # Writes
//
// Save and SaveRange upsert by identifier: existing records with the same
// identifier are removed and the new record is appended. Delete removes every
// record with the identifier, duplicates included. The file is replaced by
// writing a temporary file and renaming it over the target, so an interrupted
// write leaves the previous content intact.
//
// # Thread Safety
//
// A Store is safe for concurrent use. Each kind has its own lock, held for the
// whole read-modify-write cycle, so concurrent writers in one process never
// lose updates. Nothing coordinates separate processes sharing a directory.
//
// # Errors
//
// Failures wrap [ErrInvalidArgument], [ErrNotFound], [ErrCorruptData] or
// [ErrIO]; test for them with errors.Is.
package jsondb
