package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/jsondb/internal/apperr"
	"github.com/starford/jsondb/internal/models"
)

// TempPrefix marks in-flight atomic writes. Files with this prefix are never
// collection files.
const TempPrefix = ".jsondb-tmp-"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the data directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory is created lazily on first Create or Write.
func NewFS(root string) (*FS, error) {
	if root == "" {
		return nil, fmt.Errorf("storage: root is required: %w", apperr.ErrInvalidArgument)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w: %w", apperr.ErrIO, err)
	}
	info, err := os.Stat(abs)
	if err == nil && !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s: %w", abs, apperr.ErrInvalidArgument)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a bare file name against the data directory and rejects
// anything that is not a direct child of it.
func (f *FS) safePath(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("storage: empty file name: %w", apperr.ErrInvalidArgument)
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s: %w", name, apperr.ErrInvalidArgument)
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || cleaned == "." || cleaned == ".." {
		return "", fmt.Errorf("storage: nested or relative path not allowed: %s: %w", name, apperr.ErrInvalidArgument)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: path escapes data directory: %s: %w", name, apperr.ErrInvalidArgument)
	}
	return abs, nil
}

func (f *FS) ensureRoot() error {
	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir %s: %w: %w", f.root, apperr.ErrIO, err)
	}
	return nil
}

// Create makes the data directory and an empty file if they do not exist.
func (f *FS) Create(name string) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	if err := f.ensureRoot(); err != nil {
		return err
	}
	file, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil
		}
		return fmt.Errorf("storage: create %s: %w: %w", name, apperr.ErrIO, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w: %w", name, apperr.ErrIO, err)
	}
	return nil
}

// Read returns the raw bytes of a collection file.
func (f *FS) Read(name string) ([]byte, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w: %w", name, apperr.ErrIO, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(name string, content []byte) error {
	abs, err := f.safePath(name)
	if err != nil {
		return err
	}
	if err := f.ensureRoot(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w: %w", apperr.ErrIO, err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w: %w", apperr.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w: %w", apperr.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w: %w", apperr.ErrIO, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("storage: chmod temp: %w: %w", apperr.ErrIO, err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w: %w", apperr.ErrIO, err)
	}
	success = true

	// The rename is only durable once the directory entry is.
	if dir, err := os.Open(f.root); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}

// Stat returns file info for a collection file.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	abs, err := f.safePath(name)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w: %w", name, apperr.ErrIO, err)
	}
	return info, nil
}

// List returns metadata for every collection file, sorted by name.
// A missing data directory lists as empty.
func (f *FS) List() ([]models.CollectionFile, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("storage: list: %w: %w", apperr.ErrIO, err)
	}
	var out []models.CollectionFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !IsCollectionFile(name) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: list %s: %w: %w", name, apperr.ErrIO, err)
		}
		data, err := os.ReadFile(filepath.Join(f.root, name))
		if err != nil {
			return nil, fmt.Errorf("storage: list %s: %w: %w", name, apperr.ErrIO, err)
		}
		out = append(out, models.CollectionFile{
			Name:     name,
			Kind:     KindOf(name),
			Size:     info.Size(),
			Checksum: Checksum(data),
			ModTime:  info.ModTime().UTC(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// IsCollectionFile reports whether a bare file name names a collection file.
func IsCollectionFile(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".") && len(name) > len(".json")
}

// KindOf returns the kind a collection file name maps to by default.
func KindOf(name string) string {
	return strings.TrimSuffix(name, ".json")
}

// Checksum returns the hex-encoded SHA-256 digest of collection bytes.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
