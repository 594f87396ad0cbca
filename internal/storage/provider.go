// Package storage defines the data directory abstraction behind the store.
package storage

import (
	"io/fs"

	"github.com/starford/jsondb/internal/models"
)

// Provider is the interface for collection file operations. Names are bare
// file names relative to the data directory.
type Provider interface {
	// Root returns the absolute data directory. It may not exist yet.
	Root() string
	// Create makes the data directory and an empty file at name if either is missing.
	Create(name string) error
	// Read returns the raw bytes of the file at name.
	Read(name string) ([]byte, error)
	// Write atomically replaces the file at name with content.
	Write(name string, content []byte) error
	// Stat returns file info for name.
	Stat(name string) (fs.FileInfo, error)
	// List returns metadata for every .json file in the data directory.
	List() ([]models.CollectionFile, error)
}
