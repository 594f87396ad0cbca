// Package seed parses fixture files into documents that can be saved into a
// collection.
package seed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/jsondb/internal/apperr"
	"github.com/starford/jsondb/pkg/jsondb"
)

// Format is a fixture file format.
type Format string

// Supported fixture formats.
const (
	JSON Format = "json"
	YAML Format = "yaml"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FormatFor returns the fixture format implied by the extension of path.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	}
	return "", fmt.Errorf("seed: unsupported fixture extension %q: %w", filepath.Ext(path), apperr.ErrInvalidArgument)
}

// Parse decodes a fixture holding a single object or a list of objects.
func Parse(data []byte, format Format) ([]jsondb.Document, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("seed: fixture is empty: %w", apperr.ErrInvalidArgument)
	}

	var v any
	switch format {
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("seed: parse json: %w", errors.Join(err, apperr.ErrInvalidArgument))
		}
		if dec.More() {
			return nil, fmt.Errorf("seed: parse json: unexpected data after fixture: %w", apperr.ErrInvalidArgument)
		}
	case YAML:
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("seed: parse yaml: %w", errors.Join(err, apperr.ErrInvalidArgument))
		}
	default:
		return nil, fmt.Errorf("seed: unknown format %q: %w", format, apperr.ErrInvalidArgument)
	}

	switch top := normalize(v).(type) {
	case map[string]any:
		return []jsondb.Document{top}, nil
	case []any:
		docs := make([]jsondb.Document, 0, len(top))
		for i, item := range top {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("seed: item %d is %T, not an object: %w", i, item, apperr.ErrInvalidArgument)
			}
			docs = append(docs, m)
		}
		return docs, nil
	default:
		return nil, fmt.Errorf("seed: fixture must be an object or a list of objects: %w", apperr.ErrInvalidArgument)
	}
}

// normalize turns YAML maps with non-string keys into string-keyed maps so
// every nested value encodes as a JSON object.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	}
	return v
}
