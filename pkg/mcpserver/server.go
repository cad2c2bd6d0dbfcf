// Package mcpserver wires Rune's four tools (capture, recall,
// vault_status, reload_pipelines) onto a line-delimited JSON-RPC 2.0
// stdio transport via mark3labs/mcp-go, and maps every pkg/rune outcome
// onto MCP's CallToolResult content as a {ok, error, detail} envelope —
// never a transport-level Go error.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/rune-mem/rune/pkg/retriever"
	runeapp "github.com/rune-mem/rune/pkg/rune"
	"github.com/rune-mem/rune/pkg/scribe"
)

// Server wraps an mcp-go MCPServer bound to a Rune App.
type Server struct {
	mcp    *mcpserver.MCPServer
	app    *runeapp.App
	logger zerolog.Logger
}

// New constructs a Server and registers all four tools.
func New(app *runeapp.App, logger zerolog.Logger) *Server {
	s := &Server{
		app:    app,
		logger: logger.With().Str("component", "mcpserver").Logger(),
	}

	mcpSrv := mcpserver.NewMCPServer(
		"rune",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildCaptureTool(), s.handleCapture)
	mcpSrv.AddTool(buildRecallTool(), s.handleRecall)
	mcpSrv.AddTool(buildVaultStatusTool(), s.handleVaultStatus)
	mcpSrv.AddTool(buildReloadPipelinesTool(), s.handleReloadPipelines)

	s.mcp = mcpSrv
	return s
}

// ServeStdio blocks, serving tool calls over stdin/stdout until the
// transport closes.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcp)
}

func buildCaptureTool() mcpgo.Tool {
	return mcpgo.NewTool("capture",
		mcpgo.WithDescription("Store a new decision, rationale, policy, lesson, or insight as organizational memory."),
		mcpgo.WithString("text",
			mcpgo.Required(),
			mcpgo.Description("The free-form utterance to consider for capture"),
		),
		mcpgo.WithString("source",
			mcpgo.Description("Origin of the utterance (e.g. tool/integration name)"),
		),
		mcpgo.WithString("user",
			mcpgo.Description("The participant who authored the utterance"),
		),
		mcpgo.WithString("channel",
			mcpgo.Description("The conversational channel/thread the utterance came from"),
		),
	)
}

func buildRecallTool() mcpgo.Tool {
	return mcpgo.NewTool("recall",
		mcpgo.WithDescription("Answer a question from previously captured organizational memory, with citations."),
		mcpgo.WithString("query",
			mcpgo.Required(),
			mcpgo.Description("The natural-language question to answer"),
		),
		mcpgo.WithNumber("topk",
			mcpgo.Description("Maximum number of source records to consider, 1-10 (default 5)"),
		),
	)
}

func buildVaultStatusTool() mcpgo.Tool {
	return mcpgo.NewTool("vault_status",
		mcpgo.WithDescription("Report whether Vault is reachable and its reported security mode."),
	)
}

func buildReloadPipelinesTool() mcpgo.Tool {
	return mcpgo.NewTool("reload_pipelines",
		mcpgo.WithDescription("Re-read configuration from disk and atomically rebuild the capture and recall pipelines."),
	)
}

func (s *Server) handleCapture(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	text := req.GetString("text", "")
	hints := scribe.Hints{
		Source:  req.GetString("source", ""),
		User:    req.GetString("user", ""),
		Channel: req.GetString("channel", ""),
	}

	outcome, err := s.app.Capture(ctx, text, hints)
	if err != nil {
		return resultJSON(errorPayload(err))
	}

	payload := map[string]interface{}{
		"ok":       true,
		"captured": outcome.Captured,
	}
	if outcome.Reason != "" {
		payload["reason"] = outcome.Reason
	}
	if outcome.RecordID != "" {
		payload["record_id"] = outcome.RecordID
	}
	return resultJSON(payload)
}

func (s *Server) handleRecall(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	query := req.GetString("query", "")
	topk := int(req.GetFloat("topk", 0))
	if topk == 0 {
		topk = retriever.DefaultTopK
	}

	result, err := s.app.Recall(ctx, query, topk)
	if err != nil {
		return resultJSON(errorPayload(err))
	}

	sources := make([]map[string]interface{}, len(result.Sources))
	for i, src := range result.Sources {
		sources[i] = map[string]interface{}{
			"id":        src.ID,
			"title":     src.Title,
			"certainty": src.Certainty,
		}
	}

	payload := map[string]interface{}{
		"ok":              true,
		"found":           result.Found,
		"answer":          result.Answer,
		"sources":         sources,
		"confidence":      result.Confidence,
		"warnings":        result.Warnings,
		"related_queries": result.RelatedQueries,
	}
	return resultJSON(payload)
}

func (s *Server) handleVaultStatus(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	status, err := s.app.VaultStatus(ctx)
	if err != nil {
		return resultJSON(errorPayload(err))
	}
	return resultJSON(map[string]interface{}{
		"ok":            true,
		"reachable":     status.Reachable,
		"security_mode": status.SecurityMode,
	})
}

func (s *Server) handleReloadPipelines(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if err := s.app.Reload(ctx); err != nil {
		return resultJSON(errorPayload(err))
	}
	return resultJSON(map[string]interface{}{"ok": true})
}

// errorPayload maps any error surfaced by the App into the {ok:false,
// error:kind, detail} envelope. Unclassified failures still surface a
// closed tag (internal) with an opaque detail string, never a raw
// transport error.
func errorPayload(err error) map[string]interface{} {
	kind := runeapp.KindOf(err)
	return map[string]interface{}{
		"ok":     false,
		"error":  string(kind),
		"detail": err.Error(),
	}
}

// resultJSON marshals payload and wraps it as a tool text result, never
// returning a transport-level error for a domain failure — per spec,
// every tool response is a JSON-RPC result, not a JSON-RPC error.
func resultJSON(payload map[string]interface{}) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("mcpserver: marshal result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}
