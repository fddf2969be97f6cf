// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Tiwaz tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/tiwaz/internal/gate"
	"github.com/starford/tiwaz/internal/models"
	"github.com/starford/tiwaz/internal/practice"
)

// Server wraps the MCP server with Tiwaz tools.
type Server struct {
	mcp *server.MCPServer
	svc *practice.Service
}

// New creates a new MCP server with all Tiwaz tools registered.
func New(svc *practice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Tiwaz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("query_counsel",
		mcp.WithDescription("Ask the configured counsel model a question. The query runs "+
			"through the compliance gate; a blocked query returns the rule that stopped it, "+
			"a warned query needs override=true to proceed. Responses carry a disclaimer and "+
			"must be reviewed by a licensed attorney."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("The question to ask")),
		mcp.WithString("provider_id", mcp.Description("Optional provider id (empty for the default)")),
		mcp.WithString("jurisdiction", mcp.Description("Jurisdiction the question concerns, e.g. Tennessee")),
		mcp.WithBoolean("override", mcp.Description("Approve a compliance warning and proceed")),
	), s.queryCounsel)

	s.mcp.AddTool(mcp.NewTool("create_record",
		mcp.WithDescription("Create a practice record through the compliance gate. "+
			"Field requirements per kind are listed in the compliance charter; read it first "+
			"via the get_compliance_charter tool or the tiwaz://compliance-charter resource."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Record kind (client, case_file, contract, note, feedback, guideline)")),
		mcp.WithObject("fields", mcp.Required(), mcp.Description("Record fields as a JSON object")),
		mcp.WithString("tags", mcp.Description("Optional comma-separated compliance tags")),
		mcp.WithBoolean("override", mcp.Description("Approve a compliance warning and proceed")),
	), s.createRecord)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Free-text search across all record kinds."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("read_record",
		mcp.WithDescription("Read one record as JSON."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Record kind")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
	), s.readRecord)

	s.mcp.AddTool(mcp.NewTool("list_records",
		mcp.WithDescription("List records of one kind, or the per-kind counts when no kind is given."),
		mcp.WithString("kind", mcp.Description("Optional record kind (empty for counts)")),
	), s.listRecords)

	s.mcp.AddTool(mcp.NewTool("list_providers",
		mcp.WithDescription("List the configured model providers with redacted credentials."),
	), s.listProviders)

	s.mcp.AddTool(mcp.NewTool("get_compliance_charter",
		mcp.WithDescription("Returns the compliance charter: the rules every guarded action "+
			"is evaluated against and the field requirements per record kind. Call this before "+
			"creating records or querying counsel."),
	), s.getComplianceCharter)

	// Resource: compliance charter.
	s.mcp.AddResource(
		mcp.NewResource("tiwaz://compliance-charter", "Compliance Charter",
			mcp.WithResourceDescription("Rules applied to every guarded action, and the record field requirements."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCharterResource,
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

// decider builds the decision source for one tool call. MCP clients are
// non-interactive, so confirmation is implied by invoking the tool;
// warnings still need the explicit override flag.
func decider(req mcp.CallToolRequest) gate.StaticDecider {
	return gate.StaticDecider{Override: req.GetBool("override", false), Confirm: true}
}

// gateRefusal renders a non-executed outcome as a tool error, nil when
// the action executed.
func gateRefusal(out gate.Outcome) *mcp.CallToolResult {
	switch out.Status {
	case gate.StatusBlocked:
		return mcp.NewToolResultError(fmt.Sprintf("blocked by %s: %s", out.Verdict.RuleID, out.Verdict.Explanation))
	case gate.StatusCancelled:
		if out.Verdict.Severity > models.SeverityPass {
			return mcp.NewToolResultError(fmt.Sprintf("cancelled on warning from %s: %s (pass override=true to proceed)",
				out.Verdict.RuleID, out.Verdict.Explanation))
		}
		return mcp.NewToolResultError("action cancelled")
	}
	if out.Err != nil {
		return mcp.NewToolResultError(out.Err.Error())
	}
	return nil
}

func (s *Server) queryCounsel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, out := s.svc.Query(ctx, "", decider(req), practice.QueryRequest{
		ProviderID:   req.GetString("provider_id", ""),
		Prompt:       prompt,
		Jurisdiction: req.GetString("jurisdiction", ""),
	})
	if refusal := gateRefusal(out); refusal != nil {
		return refusal, nil
	}
	if result.Failed {
		return mcp.NewToolResultError(result.Text), nil
	}
	return mcp.NewToolResultText(result.Text), nil
}

func (s *Server) createRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fields, ok := req.GetArguments()["fields"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("fields must be a JSON object"), nil
	}

	var tags []string
	for _, tag := range strings.Split(req.GetString("tags", ""), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	rec, out := s.svc.CreateRecord(ctx, "", decider(req), models.Kind(kind), fields, tags, nil)
	if refusal := gateRefusal(out); refusal != nil {
		return refusal, nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s/%s", rec.Kind, rec.ID)), nil
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results := s.svc.SearchRecords(query)
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.GetRecord(models.Kind(kind), id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s/%s", kind, id)), nil
	}
	out, _ := json.MarshalIndent(rec, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := req.GetString("kind", "")
	if kind == "" {
		counts := s.svc.Counts()
		kinds := make([]string, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		var lines []string
		for _, k := range kinds {
			lines = append(lines, fmt.Sprintf("%s: %d", k, counts[models.Kind(k)]))
		}
		return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
	}

	records, err := s.svc.ListRecords(models.Kind(kind), practice.ListFilter{})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var lines []string
	for _, rec := range records {
		if label := recordLabel(rec); label != "" {
			lines = append(lines, rec.ID+"  "+label)
		} else {
			lines = append(lines, rec.ID)
		}
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

// recordLabel picks a display line for a record from the fields the
// builtin kinds carry.
func recordLabel(rec models.Record) string {
	for _, key := range []string{"name", "title", "case_name", "reference", "text"} {
		if v := rec.StringField(key); v != "" {
			if len(v) > 80 {
				v = v[:80]
			}
			return v
		}
	}
	return ""
}

func (s *Server) listProviders(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	configs := s.svc.Providers()
	redacted := make([]models.ProviderConfig, len(configs))
	for i, cfg := range configs {
		redacted[i] = cfg.Redacted()
	}
	out, _ := json.MarshalIndent(redacted, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getComplianceCharter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ComplianceCharter), nil
}

func (s *Server) readCharterResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "tiwaz://compliance-charter",
			MIMEType: "text/markdown",
			Text:     ComplianceCharter,
		},
	}, nil
}
