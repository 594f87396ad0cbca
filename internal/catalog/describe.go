package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/starford/jsondb/internal/models"
	"github.com/starford/jsondb/internal/storage"
	"github.com/starford/jsondb/pkg/jsondb"
)

// Describe builds the catalog entry for a collection file from its raw bytes.
// Content that does not decode as an array of objects marks the entry corrupt.
func Describe(kind, file string, data []byte, modTime time.Time) models.Collection {
	c := models.Collection{
		Kind:       kind,
		File:       file,
		Checksum:   storage.Checksum(data),
		Size:       int64(len(data)),
		ModifiedAt: modTime.UTC(),
		SyncedAt:   time.Now().UTC(),
	}
	var records []json.RawMessage
	if err := (&jsondb.Codec{}).Unmarshal(data, &records); err != nil {
		c.Corrupt = true
		return c
	}
	for _, r := range records {
		if string(r) == "null" {
			c.Corrupt = true
			return c
		}
	}
	c.Records = len(records)
	return c
}

// Refresh brings the entry for file in line with the file on disk and
// returns the resulting event, or "" when nothing changed.
func Refresh(db Index, store storage.Provider, file string) (string, error) {
	prev, err := db.Checksum(file)
	if err != nil {
		return "", err
	}

	data, err := store.Read(file)
	if errors.Is(err, fs.ErrNotExist) {
		if prev == "" {
			return "", nil
		}
		if err := db.Delete(file); err != nil {
			return "", err
		}
		return EventDeleted, nil
	}
	if err != nil {
		return "", err
	}
	info, err := store.Stat(file)
	if err != nil {
		return "", fmt.Errorf("catalog: refresh %s: %w", file, err)
	}

	entry := Describe(db.KindOf(file), file, data, info.ModTime())
	if prev == entry.Checksum {
		return "", nil
	}
	if err := db.Upsert(entry); err != nil {
		return "", err
	}
	if prev == "" {
		return EventCreated, nil
	}
	return EventUpdated, nil
}
