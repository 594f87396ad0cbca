// Package recordservice exposes schemaless access to every record kind in a
// store and keeps the collection catalog in step with the writes it makes.
package recordservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/starford/jsondb/internal/apperr"
	"github.com/starford/jsondb/internal/catalog"
	"github.com/starford/jsondb/internal/models"
	"github.com/starford/jsondb/internal/storage"
	"github.com/starford/jsondb/pkg/jsondb"
)

// Service coordinates the record store and the catalog.
type Service struct {
	store    *jsondb.Store
	files    storage.Provider
	db       catalog.Index
	logger   *slog.Logger
	onChange catalog.EventCallback
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog refreshes db after every write. Without it the service works
// on the store alone.
func WithCatalog(db catalog.Index) Option {
	return func(s *Service) {
		s.db = db
	}
}

// WithLogger sets the logger used for catalog refresh failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithChangeHook calls fn after a write changed a catalogued collection.
func WithChangeHook(fn catalog.EventCallback) Option {
	return func(s *Service) {
		s.onChange = fn
	}
}

// NewService creates a new record service. files must be the provider the
// store was built on.
func NewService(store *jsondb.Store, files storage.Provider, opts ...Option) *Service {
	s := &Service{
		store:  store,
		files:  files,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying record store.
func (s *Service) Store() *jsondb.Store {
	return s.store
}

// KindFunc returns the file to kind mapping of store: the registered kind
// when there is one, otherwise the file name without ".json".
func KindFunc(store *jsondb.Store) catalog.KindFunc {
	return func(file string) string {
		if kind, ok := store.KindFor(file); ok {
			return kind
		}
		return storage.KindOf(file)
	}
}

// KindOf returns the record kind held in a collection file.
func (s *Service) KindOf(file string) string {
	return KindFunc(s.store)(file)
}

// List returns every kind known to the store or present in the data
// directory, sorted.
func (s *Service) List(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, k := range s.store.Kinds() {
		seen[k] = struct{}{}
	}
	files, err := s.files.List()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		seen[s.KindOf(f.Name)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// Collections returns the catalog view of every collection file. Without a
// catalog the entries are described from disk on the fly.
func (s *Service) Collections(_ context.Context) ([]models.Collection, error) {
	if s.db != nil {
		return s.db.List()
	}
	files, err := s.files.List()
	if err != nil {
		return nil, err
	}
	out := make([]models.Collection, 0, len(files))
	for _, f := range files {
		data, err := s.files.Read(f.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, catalog.Describe(s.KindOf(f.Name), f.Name, data, f.ModTime))
	}
	return out, nil
}

// Collection returns the catalog entry for kind's collection file, or
// apperr.ErrNotFound when the file does not exist yet.
func (s *Service) Collection(_ context.Context, kind string) (*models.Collection, error) {
	c, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	if s.db != nil {
		return s.db.Get(c.Kind())
	}

	data, err := s.files.Read(c.File())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("recordservice: collection %s: %w", kind, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	info, err := s.files.Stat(c.File())
	if err != nil {
		return nil, err
	}
	entry := catalog.Describe(c.Kind(), c.File(), data, info.ModTime())
	return &entry, nil
}

// Schema returns the JSON Schema of kind's collection file.
func (s *Service) Schema(_ context.Context, kind string) (*jsonschema.Schema, error) {
	return s.store.Schema(kind)
}

// Records returns every record of kind.
func (s *Service) Records(_ context.Context, kind string) ([]jsondb.Document, error) {
	c, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	return c.GetAll()
}

// Record returns the record of kind with the given id.
func (s *Service) Record(_ context.Context, kind string, id int) (jsondb.Document, error) {
	c, err := s.collection(kind)
	if err != nil {
		return nil, err
	}
	return c.GetByID(id)
}

// Save upserts one record.
func (s *Service) Save(_ context.Context, kind string, doc jsondb.Document) error {
	c, err := s.collection(kind)
	if err != nil {
		return err
	}
	if err := c.Save(doc); err != nil {
		return err
	}
	s.refresh(c)
	return nil
}

// SaveRange upserts docs with a single write.
func (s *Service) SaveRange(_ context.Context, kind string, docs []jsondb.Document) error {
	c, err := s.collection(kind)
	if err != nil {
		return err
	}
	if err := c.SaveRange(docs); err != nil {
		return err
	}
	s.refresh(c)
	return nil
}

// Delete removes every record of kind with the given id.
func (s *Service) Delete(_ context.Context, kind string, id int) error {
	c, err := s.collection(kind)
	if err != nil {
		return err
	}
	if err := c.DeleteByID(id); err != nil {
		return err
	}
	s.refresh(c)
	return nil
}

// DeleteRange removes the records with any of ids with a single write.
func (s *Service) DeleteRange(_ context.Context, kind string, ids []int) error {
	if ids == nil {
		return fmt.Errorf("recordservice: delete range %s: ids is nil: %w", kind, apperr.ErrInvalidArgument)
	}
	c, err := s.collection(kind)
	if err != nil {
		return err
	}
	docs := make([]jsondb.Document, len(ids))
	for i, id := range ids {
		docs[i] = jsondb.Document{"id": id}
	}
	if err := c.DeleteRange(docs); err != nil {
		return err
	}
	s.refresh(c)
	return nil
}

// LastModified returns the UTC modification time of kind's collection file,
// or the zero time when it does not exist.
func (s *Service) LastModified(_ context.Context, kind string) (time.Time, error) {
	c, err := s.collection(kind)
	if err != nil {
		return time.Time{}, err
	}
	return c.LastModifiedUTC()
}

func (s *Service) collection(kind string) (*jsondb.Collection[jsondb.Document], error) {
	return jsondb.NewCollection[jsondb.Document](s.store, kind)
}

// refresh updates the catalog entry for c after a successful write. The
// write already happened, so failures are logged and not returned.
func (s *Service) refresh(c *jsondb.Collection[jsondb.Document]) {
	if s.db == nil {
		return
	}
	event, err := catalog.Refresh(s.db, s.files, c.File())
	if err != nil {
		s.logger.Warn("catalog refresh failed",
			slog.String("kind", c.Kind()),
			slog.String("file", c.File()),
			slog.String("error", err.Error()))
		return
	}
	if event != "" && s.onChange != nil {
		s.onChange(event, c.Kind())
	}
}
