package catalog

import "github.com/starford/jsondb/internal/models"

// Index defines the catalog operations the service layer needs.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Index interface {
	Upsert(c models.Collection) error
	Delete(file string) error
	Get(kind string) (*models.Collection, error)
	List() ([]models.Collection, error)
	Checksum(file string) (string, error)
	AllChecksums() (map[string]string, error)
	KindOf(file string) string
	Close() error
}

// Verify *DB satisfies Index at compile time.
var _ Index = (*DB)(nil)

// KindFunc maps a collection file name to its record kind.
type KindFunc func(file string) string

// Change events reported to an EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is called after a catalog change caused by a file change.
// event is one of EventCreated, EventUpdated or EventDeleted.
type EventCallback func(event, kind string)
