package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/depwarden/depwarden/pkg/client"
)

// Server adapts depwarden-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"depwarden",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// depwarden://runs
	s.mcpServer.AddResource(mcp.NewResource(
		"depwarden://runs",
		"Depwarden Run History",
		mcp.WithResourceDescription("Recent policy evaluation runs with their aggregate verdicts"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadRuns)

	// depwarden://report
	s.mcpServer.AddResource(mcp.NewResource(
		"depwarden://report",
		"Latest Evaluation Report",
		mcp.WithResourceDescription("Full report of the most recent policy evaluation run"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadReport)
}

// --- Tools ---

func (s *Server) registerTools() {
	// check_dependencies
	s.mcpServer.AddTool(mcp.NewTool(
		"check_dependencies",
		mcp.WithDescription("Evaluate a resolved dependency graph against a license/ban policy. Returns the aggregate verdict and violations."),
		mcp.WithString("policy_path", mcp.Required(), mcp.Description("Path to the policy document (JSON)")),
		mcp.WithString("graph_path", mcp.Required(), mcp.Description("Path to the resolved dependency graph (JSON)")),
	), s.handleCheckDependencies)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"depwarden-aware",
		mcp.WithPromptDescription("Provides context about depwarden concepts (policies, verdicts, skip-trees)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadRuns(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	runs, err := s.apiClient.ListRuns(ctx, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runs: %w", err)
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal runs: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleReadReport(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	runs, err := s.apiClient.ListRuns(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runs: %w", err)
	}

	text := "{}"
	if len(runs) > 0 {
		run, err := s.apiClient.GetRun(ctx, runs[0].RunID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch run %s: %w", runs[0].RunID, err)
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, run.Report, "", "  "); err != nil {
			return nil, fmt.Errorf("stored report for run %s is not valid JSON: %w", run.RunID, err)
		}
		text = buf.String()
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     text,
		},
	}, nil
}

func (s *Server) handleCheckDependencies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	policyPath := mcp.ParseString(request, "policy_path", "")
	graphPath := mcp.ParseString(request, "graph_path", "")

	policyJSON, err := os.ReadFile(policyPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read policy: %v", err)), nil
	}
	graphJSON, err := os.ReadFile(graphPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read graph: %v", err)), nil
	}

	resp, err := s.apiClient.Check(ctx, policyJSON, graphJSON)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Verdict: %s\n", resp.Report.Verdict)
	fmt.Fprintf(&b, "Packages checked: %d\n", resp.Report.NodeCount)
	violations := resp.Report.Violations()
	if len(violations) == 0 {
		b.WriteString("No violations.\n")
	} else {
		fmt.Fprintf(&b, "Violations (%d):\n", len(violations))
		for _, v := range violations {
			fmt.Fprintf(&b, "- [%s] %s %s: %s\n", v.Verdict, v.Package.Name, v.Package.Version, v.Reason)
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "depwarden-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with depwarden, a dependency policy audit engine.

Concepts:
- Policy: license allow/deny lists, copyleft and unlicensed handling, per-package exceptions, license clarifications, and duplicate-version ban rules.
- Graph: the resolved dependency graph (packages with versions and detected licenses, plus edges).
- Verdict: pass, warn, or deny. Deny means the build should fail.
- Skip-tree: a policy directive excluding a package and its whole dependency subtree from duplicate-version analysis (license checks still apply).

When the user asks whether their dependencies comply with policy, use the 'check_dependencies' tool with the policy and graph file paths.
If the verdict is DENY, report which packages violated which rules.
`

	return mcp.NewGetPromptResult(
		"depwarden-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
