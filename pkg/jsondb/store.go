package jsondb

import (
	"fmt"
	"io/fs"
	"log/slog"
	"reflect"
	"regexp"
	"sort"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jsondb/internal/storage"
)

// FileSystem is the storage a Store needs. *storage.FS implements it.
type FileSystem interface {
	Create(name string) error
	Read(name string) ([]byte, error)
	Write(name string, content []byte) error
	Stat(name string) (fs.FileInfo, error)
}

var (
	kindPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)
	filePattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.-]*\.json$`)
)

// Store maps record kinds to collection files and serialises access per kind.
type Store struct {
	fs     FileSystem
	codec  *Codec
	logger *slog.Logger

	mu    sync.Mutex
	kinds map[string]*kindEntry
	files map[string]string // file → kind
}

type kindEntry struct {
	name string
	file string
	typ  reflect.Type // guarded by Store.mu; nil until a typed collection opens
	// held for the whole load-mutate-store cycle of a write
	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store) error

// WithCodec sets the serializer used for every collection.
func WithCodec(c *Codec) Option {
	return func(s *Store) error {
		if c == nil {
			return fmt.Errorf("jsondb: nil codec: %w", ErrInvalidArgument)
		}
		s.codec = c
		return nil
	}
}

// WithLogger sets the logger. Writes are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) error {
		if l != nil {
			s.logger = l
		}
		return nil
	}
}

// WithKind registers kind with an explicit file name.
func WithKind(kind, file string) Option {
	return func(s *Store) error {
		return s.Register(kind, file)
	}
}

// Open creates a Store whose collections live in dir. The directory is
// created on first access to a kind, not here.
func Open(dir string, opts ...Option) (*Store, error) {
	fsys, err := storage.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("jsondb: open %s: %w", dir, err)
	}
	return New(fsys, opts...)
}

// New creates a Store on top of fsys.
func New(fsys FileSystem, opts ...Option) (*Store, error) {
	if fsys == nil {
		return nil, fmt.Errorf("jsondb: nil file system: %w", ErrInvalidArgument)
	}
	s := &Store{
		fs:     fsys,
		codec:  &Codec{},
		logger: slog.New(slog.DiscardHandler),
		kinds:  make(map[string]*kindEntry),
		files:  make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Codec returns the store's serializer.
func (s *Store) Codec() *Codec {
	return s.codec
}

// Register maps kind to file. An empty file defaults to "<kind>.json".
// Registering the same mapping twice is a no-op; remapping a kind or
// sharing a file between kinds fails with ErrInvalidArgument.
func (s *Store) Register(kind, file string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.registerLocked(kind, file)
	return err
}

func (s *Store) registerLocked(kind, file string) (*kindEntry, error) {
	if file == "" {
		file = kind + ".json"
	}
	if err := validation.Validate(kind, validation.Required, validation.Length(1, 128), validation.Match(kindPattern)); err != nil {
		return nil, fmt.Errorf("jsondb: register kind %q: %w: %w", kind, ErrInvalidArgument, err)
	}
	if err := validation.Validate(file, validation.Required, validation.Length(1, 255), validation.Match(filePattern)); err != nil {
		return nil, fmt.Errorf("jsondb: register file %q: %w: %w", file, ErrInvalidArgument, err)
	}
	if e, ok := s.kinds[kind]; ok {
		if e.file != file {
			return nil, fmt.Errorf("jsondb: kind %q already maps to %s: %w", kind, e.file, ErrInvalidArgument)
		}
		return e, nil
	}
	if other, ok := s.files[file]; ok {
		return nil, fmt.Errorf("jsondb: file %s already used by kind %q: %w", file, other, ErrInvalidArgument)
	}
	e := &kindEntry{name: kind, file: file}
	s.kinds[kind] = e
	s.files[file] = kind
	return e, nil
}

// lookup returns the entry for kind, registering the default file name
// when the kind is new.
func (s *Store) lookup(kind string) (*kindEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.kinds[kind]; ok {
		return e, nil
	}
	return s.registerLocked(kind, "")
}

// Kinds returns the registered kinds, sorted.
func (s *Store) Kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.kinds))
	for k := range s.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// bind records t as the record type of e. Documents leave it unchanged.
func (s *Store) bind(e *kindEntry, t reflect.Type) {
	if t == documentType {
		return
	}
	s.mu.Lock()
	e.typ = t
	s.mu.Unlock()
}

// FileFor returns the collection file registered for kind.
func (s *Store) FileFor(kind string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.kinds[kind]
	if !ok {
		return "", false
	}
	return e.file, true
}

// KindFor returns the kind registered for a collection file.
func (s *Store) KindFor(file string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.files[file]
	return k, ok
}
