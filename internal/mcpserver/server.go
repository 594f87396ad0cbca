// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes jsondb tools for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jsondb/internal/recordservice"
	"github.com/starford/jsondb/pkg/jsondb"
)

const formatURI = "jsondb://collection-format"

// Server wraps the MCP server with jsondb tools.
type Server struct {
	mcp *server.MCPServer
	svc *recordservice.Service
}

// New creates a new MCP server with all jsondb tools registered.
func New(svc *recordservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"jsondb",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_collections",
		mcp.WithDescription("List every collection file with its kind and record count."),
	), s.listCollections)

	s.mcp.AddTool(mcp.NewTool("get_records",
		mcp.WithDescription("Read every record of a kind as a JSON array."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Record kind (e.g. Product)")),
	), s.getRecords)

	s.mcp.AddTool(mcp.NewTool("get_record",
		mcp.WithDescription("Read the record of a kind with the given id."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Record kind (e.g. Product)")),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Integer record id")),
	), s.getRecord)

	s.mcp.AddTool(mcp.NewTool("save_record",
		mcp.WithDescription("Insert or replace records of a kind. "+
			"Records MUST follow the collection format contract: JSON objects with an "+
			"integer id and camelCase property names. Read the contract first via the "+
			"get_collection_format tool or the jsondb://collection-format resource."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Record kind (e.g. Product)")),
		mcp.WithString("record", mcp.Required(), mcp.Description("A JSON object, or a JSON array of objects saved with one write")),
	), s.saveRecord)

	s.mcp.AddTool(mcp.NewTool("delete_record",
		mcp.WithDescription("Delete every record of a kind with the given id."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Record kind (e.g. Product)")),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Integer record id")),
	), s.deleteRecord)

	s.mcp.AddTool(mcp.NewTool("describe_collection",
		mcp.WithDescription("Show the catalog entry of a kind: file, size, record count and whether it is corrupt."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Record kind (e.g. Product)")),
	), s.describeCollection)

	s.mcp.AddTool(mcp.NewTool("get_collection_schema",
		mcp.WithDescription("Returns the JSON Schema of a kind's collection file."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Record kind (e.g. Product)")),
	), s.getCollectionSchema)

	s.mcp.AddTool(mcp.NewTool("get_collection_format",
		mcp.WithDescription("Returns the jsondb collection format contract. "+
			"Call this before saving records to ensure correct structure."),
	), s.getCollectionFormat)

	// Resource: collection format contract.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Collection Format Contract",
			mcp.WithResourceDescription("On-disk JSON format that every collection file follows."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listCollections(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cols, err := s.svc.Collections(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(cols) == 0 {
		return mcp.NewToolResultText("no collections found"), nil
	}
	lines := make([]string, 0, len(cols))
	for _, c := range cols {
		line := fmt.Sprintf("%s\t%s\t%d records", c.Kind, c.File, c.Records)
		if c.Corrupt {
			line += "\tcorrupt"
		}
		lines = append(lines, line)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := s.svc.Records(ctx, kind)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(records, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	record, err := s.svc.Record(ctx, kind, id)
	if errors.Is(err, jsondb.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s %d", kind, id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(record, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) saveRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("record")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := bytes.TrimSpace([]byte(raw))
	if len(body) == 0 {
		return mcp.NewToolResultError("record is empty"), nil
	}
	switch body[0] {
	case '{':
		var doc jsondb.Document
		if err := decode(body, &doc); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid record: %v", err)), nil
		}
		if err := s.svc.Save(ctx, kind, doc); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("saved: %s %d", kind, doc.EntityID())), nil
	case '[':
		var docs []jsondb.Document
		if err := decode(body, &docs); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid records: %v", err)), nil
		}
		if err := s.svc.SaveRange(ctx, kind, docs); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("saved: %s %d records", kind, len(docs))), nil
	default:
		return mcp.NewToolResultError("record must be a JSON object or array"), nil
	}
}

func (s *Server) deleteRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, kind, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s %d", kind, id)), nil
}

func (s *Server) describeCollection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	col, err := s.svc.Collection(ctx, kind)
	if errors.Is(err, jsondb.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", kind)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(col, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getCollectionSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	schema, err := s.svc.Schema(ctx, kind)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getCollectionFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(CollectionFormatContract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     CollectionFormatContract,
		},
	}, nil
}

func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}
