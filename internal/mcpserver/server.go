// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Quire tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quire/internal/document"
	"github.com/starford/quire/internal/editor"
	"github.com/starford/quire/internal/findreplace"
	"github.com/starford/quire/internal/mathrender"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/noteservice"
)

const contractURI = "quire://markup-contract"

// Server wraps the MCP server with Quire tools.
type Server struct {
	mcp      *server.MCPServer
	notes    *noteservice.Service
	settings models.EditorSettings
	fetch    fetchFunc
}

// New creates a new MCP server with all Quire tools registered. settings
// style exported pages.
func New(notes *noteservice.Service, settings models.EditorSettings) *Server {
	s := &Server{notes: notes, settings: settings, fetch: fetchHTTP}

	s.mcp = server.NewMCPServer(
		"Quire",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the stored HTML content of a note."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. Content MUST follow the note markup contract; "+
			"read it first via the get_markup_contract tool or the "+contractURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title")),
		mcp.WithString("folder", mcp.Description("Optional folder (empty for the root)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("HTML fragment following the markup contract")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_markup_contract",
		mcp.WithDescription("Returns the canonical Quire note markup contract. "+
			"Call this before creating or updating notes to ensure correct structure."),
	), s.getMarkupContract)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes or notes in a specific folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all, \"/\" for the root)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("replace_in_note",
		mcp.WithDescription("Replace every literal occurrence of a string in a note's text. "+
			"Markup is never matched, and matches spanning formatting runs are not found."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("find", mcp.Required(), mcp.Description("Text to find")),
		mcp.WithString("replace", mcp.Description("Replacement text")),
	), s.replaceInNote)

	s.mcp.AddTool(mcp.NewTool("render_math",
		mcp.WithDescription("Render $...$ and $$...$$ math in plain text to HTML with MathML."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Plain text with math delimiters")),
	), s.renderMath)

	s.mcp.AddTool(mcp.NewTool("export_note",
		mcp.WithDescription("Render a note as a standalone HTML page."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
	), s.exportNote)

	s.mcp.AddTool(mcp.NewTool("insert_image",
		mcp.WithDescription("Append an image to a note. Accepts an http(s) URL or a "+
			"data:image/...;base64 URI; the image is embedded as a data URI."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Image URL or data URI")),
	), s.insertImage)

	// Resource: markup contract.
	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Note Markup Contract",
			mcp.WithResourceDescription("Canonical HTML markup that all notes must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.notes.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.Load(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(note.Content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.Create(ctx, title, req.GetString("folder", ""), content)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.ID)), nil
}

type listEntry struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Folder string `json:"folder"`
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, _, err := s.notes.List(ctx, req.GetString("folder", ""), 1000, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]listEntry, 0, len(notes))
	for _, n := range notes {
		out = append(out, listEntry{ID: n.ID, Title: n.Title, Folder: n.Folder})
	}
	return jsonResult(out), nil
}

func (s *Server) replaceInNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	find, err := req.RequireString("find")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, doc, err := s.loadDocument(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := findreplace.ReplaceAll(doc, find, req.GetString("replace", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if n > 0 {
		if _, err := s.notes.Save(ctx, id, note.Title, doc.Serialize(), note.Checksum); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("replaced: %d", n)), nil
}

func (s *Server) renderMath(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(mathrender.Render(text)), nil
}

func (s *Server) exportNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.notes.Load(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	return mcp.NewToolResultText(editor.Page(note.Title, note.Content, s.settings)), nil
}

func (s *Server) getMarkupContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MarkupContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     MarkupContract,
		},
	}, nil
}

// loadDocument reads a note and parses its content.
func (s *Server) loadDocument(ctx context.Context, id string) (*models.Note, *document.Document, error) {
	note, err := s.notes.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	doc, err := document.Deserialize(note.Content)
	if err != nil {
		return nil, nil, err
	}
	return note, doc, nil
}

func isDataURI(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "data:")
}
