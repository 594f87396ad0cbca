package api

import (
	"time"

	"github.com/starford/jsondb/internal/models"
)

// Collection is a catalog entry (aliased from the models layer).
type Collection = models.Collection

// CollectionListResponse wraps the catalog listing.
type CollectionListResponse struct {
	Collections []Collection `json:"collections" validate:"required"`
}

// LastModifiedResponse reports when a collection file was last written.
type LastModifiedResponse struct {
	Kind            string    `json:"kind" example:"Product" validate:"required"`
	Exists          bool      `json:"exists"`
	LastModifiedUTC time.Time `json:"lastModifiedUtc"`
}

// SaveResponse is returned after records were saved.
type SaveResponse struct {
	Kind  string `json:"kind" example:"Product" validate:"required"`
	Saved int    `json:"saved" example:"2"`
}

// DeleteResponse is returned after records were deleted by id.
type DeleteResponse struct {
	Kind string `json:"kind" example:"Product" validate:"required"`
	IDs  []int  `json:"ids" validate:"required"`
}
