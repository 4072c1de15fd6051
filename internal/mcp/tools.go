package mcp

import (
	"context"
	"errors"

	"github.com/claude/liveset/internal/session"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolGetActiveSession = mcp.NewTool("get_active_session",
	mcp.WithDescription("Snapshot of the live workout session: exercise items with set-by-set progress, cursors, effort ratings, elapsed time, and rest state. Returns an error when no session is active."),
)

var toolGetSessionHistory = mcp.NewTool("get_session_history",
	mcp.WithDescription("Committed workout sessions mirrored locally, newest first. Each record carries the full finalize payload as submitted to the backend."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of sessions to return. Defaults to 20.")),
)

var toolGetChangeLog = mcp.NewTool("get_change_log",
	mcp.WithDescription("The active session's structural change log: replace/remove/skip/exclude events with exercise identities, reasons, and timestamps. Used by coaching logic to adapt future plans."),
)

// --- Tool handlers ---

func (h *handlers) getActiveSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	view, err := h.manager.View()
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return mcp.NewToolResultError("no active session"), nil
		}
		h.log.Error("mcp get_active_session", "error", err)
		return mcp.NewToolResultError("snapshot failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(view)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSessionHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	records, err := h.history.ListHistory(ctx, limit)
	if err != nil {
		h.log.Error("mcp get_session_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(records)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getChangeLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cp, err := h.manager.Checkpoint()
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return mcp.NewToolResultError("no active session"), nil
		}
		return mcp.NewToolResultError("snapshot failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(cp.Changes)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
