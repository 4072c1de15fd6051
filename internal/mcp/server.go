// Package mcp exposes the session engine's state to coaching and analytics
// agents over the Model Context Protocol: the active session, the local
// session history, and the structural change log.
package mcp

import (
	"context"
	"log/slog"

	"github.com/claude/liveset/internal/draft"
	"github.com/claude/liveset/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// HistorySource reads the locally mirrored session history.
type HistorySource interface {
	ListHistory(ctx context.Context, limit int) ([]draft.HistoryRecord, error)
}

// New creates an MCP server with all tools and resources registered.
func New(manager *session.Manager, drafts draft.Store, history HistorySource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("LiveSet", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("LiveSet workout session engine. Inspect the live session, committed session history, and the exercise change log used for coaching adjustments."),
	)

	h := &handlers{manager: manager, drafts: drafts, history: history, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetActiveSession, Handler: h.getActiveSession},
		server.ServerTool{Tool: toolGetSessionHistory, Handler: h.getSessionHistory},
		server.ServerTool{Tool: toolGetChangeLog, Handler: h.getChangeLog},
	)

	s.AddResources(
		server.ServerResource{Resource: resLastSession, Handler: h.lastSession},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	manager *session.Manager
	drafts  draft.Store
	history HistorySource
	log     *slog.Logger
}

// --- Resource definitions ---

var resLastSession = mcp.NewResource(
	"liveset://last_session",
	"Last Session Result",
	mcp.WithResourceDescription("The save collaborator's acknowledgement for the most recently committed session, including any progression job reference"),
	mcp.WithMIMEType("application/json"),
)

func (h *handlers) lastSession(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := h.drafts.Load(ctx, draft.KeyLastResult)
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte(`{}`)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
