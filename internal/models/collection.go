// Package models defines the shared types describing collection files.
package models

import "time"

// CollectionFile describes one collection file found in the data directory.
type CollectionFile struct {
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Size     int64     `json:"size"`
	Checksum string    `json:"checksum"`
	ModTime  time.Time `json:"modTime"`
}

// Collection is the catalog view of a collection file.
type Collection struct {
	Kind       string    `json:"kind"`
	File       string    `json:"file"`
	Checksum   string    `json:"checksum"`
	Size       int64     `json:"size"`
	Records    int       `json:"records"`
	Corrupt    bool      `json:"corrupt"`
	ModifiedAt time.Time `json:"modifiedAt"`
	SyncedAt   time.Time `json:"syncedAt"`
}
