package jsondb

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"reflect"
	"time"
)

// Collection is a typed handle on one record kind. Every call reads the whole
// collection file and every write rewrites it; nothing is cached between calls.
type Collection[T Entity] struct {
	store *Store
	entry *kindEntry
}

// NewCollection returns the collection for kind. An unregistered kind is
// registered with the file name "<kind>.json".
func NewCollection[T Entity](s *Store, kind string) (*Collection[T], error) {
	if s == nil {
		return nil, fmt.Errorf("jsondb: nil store: %w", ErrInvalidArgument)
	}
	e, err := s.lookup(kind)
	if err != nil {
		return nil, err
	}
	s.bind(e, reflect.TypeFor[T]())
	return &Collection[T]{store: s, entry: e}, nil
}

// Kind returns the record kind.
func (c *Collection[T]) Kind() string {
	return c.entry.name
}

// File returns the collection file name.
func (c *Collection[T]) File() string {
	return c.entry.file
}

// GetAll returns every record in the collection.
func (c *Collection[T]) GetAll() ([]T, error) {
	c.entry.mu.RLock()
	defer c.entry.mu.RUnlock()
	return c.load("get all")
}

// GetByID returns the first record whose identifier is id, or ErrNotFound.
func (c *Collection[T]) GetByID(id int) (T, error) {
	var zero T
	c.entry.mu.RLock()
	defer c.entry.mu.RUnlock()
	records, err := c.load("get")
	if err != nil {
		return zero, err
	}
	for _, r := range records {
		if r.EntityID() == id {
			return r, nil
		}
	}
	return zero, fmt.Errorf("jsondb: get %s %d: %w", c.entry.name, id, ErrNotFound)
}

// Save upserts record: any record sharing its identifier is removed and
// record is appended.
func (c *Collection[T]) Save(record T) error {
	if isNil(record) {
		return fmt.Errorf("jsondb: save %s: record is nil: %w", c.entry.name, ErrInvalidArgument)
	}
	return c.update("save", func(records []T) []T {
		records = removeID(records, record.EntityID())
		return append(records, record)
	})
}

// SaveRange upserts every record in order and writes the collection once.
func (c *Collection[T]) SaveRange(records []T) error {
	if records == nil {
		return fmt.Errorf("jsondb: save range %s: records is nil: %w", c.entry.name, ErrInvalidArgument)
	}
	for i, r := range records {
		if isNil(r) {
			return fmt.Errorf("jsondb: save range %s: record %d is nil: %w", c.entry.name, i, ErrInvalidArgument)
		}
	}
	return c.update("save range", func(existing []T) []T {
		for _, r := range records {
			existing = removeID(existing, r.EntityID())
			existing = append(existing, r)
		}
		return existing
	})
}

// Delete removes every record sharing record's identifier.
func (c *Collection[T]) Delete(record T) error {
	if isNil(record) {
		return fmt.Errorf("jsondb: delete %s: record is nil: %w", c.entry.name, ErrInvalidArgument)
	}
	return c.DeleteByID(record.EntityID())
}

// DeleteByID removes every record whose identifier is id.
func (c *Collection[T]) DeleteByID(id int) error {
	return c.update("delete", func(records []T) []T {
		records = removeID(records, id)
		return records
	})
}

// DeleteRange removes the records sharing any of the given identifiers and
// writes the collection once.
func (c *Collection[T]) DeleteRange(records []T) error {
	if records == nil {
		return fmt.Errorf("jsondb: delete range %s: records is nil: %w", c.entry.name, ErrInvalidArgument)
	}
	ids := make([]int, 0, len(records))
	for i, r := range records {
		if isNil(r) {
			return fmt.Errorf("jsondb: delete range %s: record %d is nil: %w", c.entry.name, i, ErrInvalidArgument)
		}
		ids = append(ids, r.EntityID())
	}
	return c.update("delete range", func(existing []T) []T {
		for _, id := range ids {
			existing = removeID(existing, id)
		}
		return existing
	})
}

// LastModifiedUTC returns the collection file's modification time in UTC,
// or the zero time when the file does not exist yet. It takes no lock.
func (c *Collection[T]) LastModifiedUTC() (time.Time, error) {
	info, err := c.store.fs.Stat(c.entry.file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("jsondb: last modified %s: %w", c.entry.name, err)
	}
	return info.ModTime().UTC(), nil
}

// load reads and decodes the collection, creating an empty file first when
// the kind has none. Callers hold the kind lock.
func (c *Collection[T]) load(op string) ([]T, error) {
	if err := c.store.fs.Create(c.entry.file); err != nil {
		return nil, fmt.Errorf("jsondb: %s %s: %w", op, c.entry.name, err)
	}
	data, err := c.store.fs.Read(c.entry.file)
	if err != nil {
		return nil, fmt.Errorf("jsondb: %s %s: %w", op, c.entry.name, err)
	}
	var records []T
	if err := c.store.codec.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("jsondb: %s %s: decode %s: %w: %w", op, c.entry.name, c.entry.file, ErrCorruptData, err)
	}
	for i, r := range records {
		if isNil(r) {
			return nil, fmt.Errorf("jsondb: %s %s: decode %s: null record at %d: %w", op, c.entry.name, c.entry.file, i, ErrCorruptData)
		}
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

// update runs one load-mutate-store cycle under the kind's write lock.
func (c *Collection[T]) update(op string, mutate func([]T) []T) error {
	c.entry.mu.Lock()
	defer c.entry.mu.Unlock()

	records, err := c.load(op)
	if err != nil {
		return err
	}
	before := len(records)
	records = mutate(records)

	data, err := c.store.codec.Marshal(records)
	if err != nil {
		return fmt.Errorf("jsondb: %s %s: encode: %w: %w", op, c.entry.name, ErrInvalidArgument, err)
	}
	if err := c.store.fs.Write(c.entry.file, data); err != nil {
		return fmt.Errorf("jsondb: %s %s: %w", op, c.entry.name, err)
	}

	c.store.logger.Debug("jsondb: collection written",
		slog.String("op", op),
		slog.String("kind", c.entry.name),
		slog.Int("records_before", before),
		slog.Int("records", len(records)),
		slog.Int("bytes", len(data)))
	return nil
}

// removeID drops every record whose identifier is id, preserving order.
func removeID[T Entity](records []T, id int) []T {
	out := records[:0]
	for _, r := range records {
		if r.EntityID() != id {
			out = append(out, r)
		}
	}
	return out
}
