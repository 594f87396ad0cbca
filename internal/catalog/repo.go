package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/jsondb/internal/apperr"
	"github.com/starford/jsondb/internal/models"
)

const selectColumns = `SELECT kind, file, checksum, size, records, corrupt, modified_at, synced_at FROM collections`

// Upsert inserts or replaces the entry for c.File.
func (db *DB) Upsert(c models.Collection) error {
	_, err := db.conn.Exec(`
		INSERT INTO collections (file, kind, checksum, size, records, corrupt, modified_at, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file) DO UPDATE SET
			kind        = excluded.kind,
			checksum    = excluded.checksum,
			size        = excluded.size,
			records     = excluded.records,
			corrupt     = excluded.corrupt,
			modified_at = excluded.modified_at,
			synced_at   = excluded.synced_at
	`, c.File, c.Kind, c.Checksum, c.Size, c.Records, c.Corrupt, c.ModifiedAt.UTC(), c.SyncedAt.UTC())
	if err != nil {
		return fmt.Errorf("catalog: upsert %s: %w", c.File, err)
	}
	return nil
}

// Delete removes the entry for file. Deleting a missing entry is not an error.
func (db *DB) Delete(file string) error {
	if _, err := db.conn.Exec(`DELETE FROM collections WHERE file = ?`, file); err != nil {
		return fmt.Errorf("catalog: delete %s: %w", file, err)
	}
	return nil
}

// Get returns the entry for kind, or apperr.ErrNotFound.
func (db *DB) Get(kind string) (*models.Collection, error) {
	row := db.conn.QueryRow(selectColumns+` WHERE kind = ? ORDER BY file LIMIT 1`, kind)
	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: get %s: %w", kind, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get %s: %w", kind, err)
	}
	return c, nil
}

// List returns every entry ordered by kind.
func (db *DB) List() ([]models.Collection, error) {
	rows, err := db.conn.Query(selectColumns + ` ORDER BY kind, file`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	out := []models.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Checksum returns the stored checksum for file, or an empty string if it
// is not catalogued.
func (db *DB) Checksum(file string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM collections WHERE file = ?`, file).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("catalog: checksum %s: %w", file, err)
	}
	return cs, nil
}

// AllChecksums returns the stored checksum of every catalogued file.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT file, checksum FROM collections`)
	if err != nil {
		return nil, fmt.Errorf("catalog: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var file, cs string
		if err := rows.Scan(&file, &cs); err != nil {
			return nil, err
		}
		out[file] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(s scanner) (*models.Collection, error) {
	var c models.Collection
	if err := s.Scan(&c.Kind, &c.File, &c.Checksum, &c.Size, &c.Records, &c.Corrupt, &c.ModifiedAt, &c.SyncedAt); err != nil {
		return nil, err
	}
	c.ModifiedAt = c.ModifiedAt.UTC()
	c.SyncedAt = c.SyncedAt.UTC()
	return &c, nil
}
