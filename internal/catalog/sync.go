package catalog

import (
	"log/slog"

	"github.com/starford/jsondb/internal/storage"
)

// Sync walks the data directory and brings the catalog up to date:
//   - new/changed files are described and upserted
//   - files removed from disk are deleted from the catalog
func Sync(db Index, store storage.Provider, logger *slog.Logger) error {
	files, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(files))
	for _, f := range files {
		disk[f.Name] = struct{}{}

		if checksums[f.Name] == f.Checksum {
			continue
		}

		data, err := store.Read(f.Name)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("file", f.Name), slog.String("error", err.Error()))
			continue
		}
		entry := Describe(db.KindOf(f.Name), f.Name, data, f.ModTime)
		if err := db.Upsert(entry); err != nil {
			logger.Warn("sync: upsert failed", slog.String("file", f.Name), slog.String("error", err.Error()))
			continue
		}
		if entry.Corrupt {
			logger.Warn("sync: corrupt collection", slog.String("file", f.Name), slog.String("kind", entry.Kind))
		} else {
			logger.Debug("sync: catalogued", slog.String("file", f.Name), slog.Int("records", entry.Records))
		}
	}

	// Remove stale entries.
	for file := range checksums {
		if _, ok := disk[file]; !ok {
			if err := db.Delete(file); err != nil {
				logger.Warn("sync: delete failed", slog.String("file", file), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("file", file))
			}
		}
	}

	return nil
}
