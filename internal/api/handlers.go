package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jsondb/internal/apperr"
	"github.com/starford/jsondb/internal/recordservice"
	"github.com/starford/jsondb/pkg/jsondb"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *recordservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *recordservice.Service) *Handler {
	return &Handler{svc: svc}
}

// recordID parses the {id} URL parameter.
func recordID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", raw, apperr.ErrInvalidArgument)
	}
	return id, nil
}

// ListCollections handles GET /collections.
//
//	@Summary		List catalogued collection files
//	@Tags			collections
//	@Produce		json
//	@Success		200	{object}	CollectionListResponse
//	@Security		BearerAuth
//	@Router			/collections [get]
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	cols, err := h.svc.Collections(r.Context())
	if err != nil {
		writeError(w, "list collections", "", err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionListResponse{Collections: cols})
}

// GetRecords handles GET /collections/{kind}.
//
//	@Summary		Get every record of a kind
//	@Tags			records
//	@Produce		json
//	@Param			kind	path		string	true	"Record kind"
//	@Success		200		{array}		object
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{kind} [get]
func (h *Handler) GetRecords(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	records, err := h.svc.Records(r.Context(), kind)
	if err != nil {
		writeError(w, "get records", kind, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GetRecord handles GET /collections/{kind}/{id}.
//
//	@Summary		Get one record by id
//	@Tags			records
//	@Produce		json
//	@Param			kind	path		string	true	"Record kind"
//	@Param			id		path		int		true	"Record id"
//	@Success		200		{object}	object
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{kind}/{id} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	id, err := recordID(r)
	if err != nil {
		writeError(w, "get record", kind, err)
		return
	}
	record, err := h.svc.Record(r.Context(), kind, id)
	if err != nil {
		writeError(w, "get record", kind, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// SaveRecords handles PUT /collections/{kind}. A JSON object is saved as one
// record; a JSON array is saved as a range with a single write.
//
//	@Summary		Upsert one record or a list of records
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			kind	path		string	true	"Record kind"
//	@Success		200		{object}	SaveResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{kind} [put]
func (h *Handler) SaveRecords(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	kind := chi.URLParam(r, "kind")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("body is required"))
		return
	}

	switch body[0] {
	case '{':
		var doc jsondb.Document
		if err := decode(body, &doc); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
		if err := h.svc.Save(r.Context(), kind, doc); err != nil {
			writeError(w, "save record", kind, err)
			return
		}
		writeJSON(w, http.StatusOK, SaveResponse{Kind: kind, Saved: 1})
	case '[':
		var docs []jsondb.Document
		if err := decode(body, &docs); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
		if err := h.svc.SaveRange(r.Context(), kind, docs); err != nil {
			writeError(w, "save records", kind, err)
			return
		}
		writeJSON(w, http.StatusOK, SaveResponse{Kind: kind, Saved: len(docs)})
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("body must be a JSON object or array"))
	}
}

// DeleteRecords handles POST /collections/{kind}/delete. The body is an array
// whose items are ids or records carrying an id.
//
//	@Summary		Delete a list of records with a single write
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			kind	path		string	true	"Record kind"
//	@Success		200		{object}	DeleteResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{kind}/delete [post]
func (h *Handler) DeleteRecords(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	kind := chi.URLParam(r, "kind")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	var items []json.RawMessage
	if err := decode(body, &items); err != nil || items == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("body must be a JSON array"))
		return
	}

	ids := make([]int, 0, len(items))
	for i, item := range items {
		id, err := itemID(item)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("item %d: %v", i, err)))
			return
		}
		ids = append(ids, id)
	}
	if err := h.svc.DeleteRange(r.Context(), kind, ids); err != nil {
		writeError(w, "delete records", kind, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Kind: kind, IDs: ids})
}

// DeleteRecord handles DELETE /collections/{kind}/{id}.
//
//	@Summary		Delete every record with an id
//	@Tags			records
//	@Param			kind	path	string	true	"Record kind"
//	@Param			id		path	int		true	"Record id"
//	@Success		204		"Records deleted"
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{kind}/{id} [delete]
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	id, err := recordID(r)
	if err != nil {
		writeError(w, "delete record", kind, err)
		return
	}
	if err := h.svc.Delete(r.Context(), kind, id); err != nil {
		writeError(w, "delete record", kind, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LastModified handles GET /collections/{kind}/modified.
//
//	@Summary		Last write time of a collection file
//	@Tags			collections
//	@Produce		json
//	@Param			kind	path		string	true	"Record kind"
//	@Success		200		{object}	LastModifiedResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{kind}/modified [get]
func (h *Handler) LastModified(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	ts, err := h.svc.LastModified(r.Context(), kind)
	if err != nil {
		writeError(w, "last modified", kind, err)
		return
	}
	writeJSON(w, http.StatusOK, LastModifiedResponse{
		Kind:            kind,
		Exists:          !ts.IsZero(),
		LastModifiedUTC: ts,
	})
}

// GetCollection handles GET /collections/{kind}/info.
//
//	@Summary		Catalog entry of one collection file
//	@Tags			collections
//	@Produce		json
//	@Param			kind	path		string	true	"Record kind"
//	@Success		200		{object}	Collection
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{kind}/info [get]
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	col, err := h.svc.Collection(r.Context(), kind)
	if err != nil {
		writeError(w, "get collection", kind, err)
		return
	}
	writeJSON(w, http.StatusOK, col)
}

// GetSchema handles GET /collections/{kind}/schema.
//
//	@Summary		JSON Schema of a collection file
//	@Tags			collections
//	@Produce		json
//	@Param			kind	path		string	true	"Record kind"
//	@Success		200		{object}	object
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{kind}/schema [get]
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	schema, err := h.svc.Schema(r.Context(), kind)
	if err != nil {
		writeError(w, "get schema", kind, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

// decode parses a request body keeping numbers as json.Number so integer ids
// and large values survive unchanged.
func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}

// itemID reads an id from a bare integer or from an object's "id" member.
func itemID(item json.RawMessage) (int, error) {
	item = bytes.TrimSpace(item)
	if len(item) > 0 && item[0] == '{' {
		var doc jsondb.Document
		if err := decode(item, &doc); err != nil {
			return 0, err
		}
		return doc.EntityID(), nil
	}
	var n json.Number
	if err := decode(item, &n); err != nil {
		return 0, fmt.Errorf("expected an id or an object")
	}
	id, err := strconv.Atoi(n.String())
	if err != nil {
		return 0, fmt.Errorf("id %s is not an integer", n)
	}
	return id, nil
}
