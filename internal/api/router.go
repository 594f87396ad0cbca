package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jsondb/internal/recordservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *recordservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Catalog.
	r.Get("/collections", h.ListCollections)

	// Records.
	r.Get("/collections/{kind}", h.GetRecords)
	r.Put("/collections/{kind}", h.SaveRecords)
	r.Post("/collections/{kind}/delete", h.DeleteRecords)
	r.Get("/collections/{kind}/modified", h.LastModified)
	r.Get("/collections/{kind}/info", h.GetCollection)
	r.Get("/collections/{kind}/schema", h.GetSchema)
	r.Get("/collections/{kind}/{id}", h.GetRecord)
	r.Delete("/collections/{kind}/{id}", h.DeleteRecord)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
