package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/recruitx/recruitx/internal/interview"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Service *interview.Service
}

// NewMCPServer creates an MCP server exposing interview lookups and scheduling
// to assistant clients.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"recruitx",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("recruitx runs automated phone screening interviews and stores the candidate reports."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("interview_status",
			mcp.WithDescription("Show the lifecycle status and answer progress of an interview."),
			mcp.WithString("interview_id", mcp.Description("Interview ID"), mcp.Required()),
		),
		mcpInterviewStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("interview_responses",
			mcp.WithDescription("List the stored answers of an interview in question order."),
			mcp.WithString("interview_id", mcp.Description("Interview ID"), mcp.Required()),
		),
		mcpInterviewResponses(deps),
	)

	s.AddTool(
		mcp.NewTool("interview_report",
			mcp.WithDescription("Fetch the evaluation report of a completed interview."),
			mcp.WithString("interview_id", mcp.Description("Interview ID"), mcp.Required()),
		),
		mcpInterviewReport(deps),
	)

	s.AddTool(
		mcp.NewTool("schedule_interview",
			mcp.WithDescription("Schedule an interview for a candidate and generate its questions."),
			mcp.WithString("candidate_id", mcp.Description("Candidate ID"), mcp.Required()),
			mcp.WithString("job_description", mcp.Description("Job description text"), mcp.Required()),
			mcp.WithString("scheduled_at", mcp.Description("RFC 3339 time of the call (default now)")),
		),
		mcpScheduleInterview(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"recruitx://reports/summary",
			"Report Summary",
			mcp.WithResourceDescription("Aggregate score and most frequent strengths and weaknesses"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSummary(deps),
	)

	return s
}

func mcpInterviewStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("interview_id")
		if err != nil {
			return mcpError("interview_id is required"), nil
		}
		st, err := deps.Service.Status(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("status failed: %v", err)), nil
		}
		return mcpJSON(statusView(st))
	}
}

func mcpInterviewResponses(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("interview_id")
		if err != nil {
			return mcpError("interview_id is required"), nil
		}
		rs, err := deps.Service.Responses(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("listing responses failed: %v", err)), nil
		}
		return mcpJSON(responseViews(rs))
	}
}

func mcpInterviewReport(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("interview_id")
		if err != nil {
			return mcpError("interview_id is required"), nil
		}
		rep, err := deps.Service.Report(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("report lookup failed: %v", err)), nil
		}
		return mcpJSON(reportView(rep))
	}
}

func mcpScheduleInterview(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		candidateID, err := req.RequireString("candidate_id")
		if err != nil {
			return mcpError("candidate_id is required"), nil
		}
		jd, err := req.RequireString("job_description")
		if err != nil {
			return mcpError("job_description is required"), nil
		}

		at := time.Now().UTC()
		if s := req.GetString("scheduled_at", ""); s != "" {
			at, err = time.Parse(time.RFC3339, s)
			if err != nil {
				return mcpError(fmt.Sprintf("scheduled_at must be RFC 3339: %v", err)), nil
			}
		}

		res, err := deps.Service.Schedule(ctx, interview.ScheduleInput{
			CandidateID:    candidateID,
			JobDescription: jd,
			ScheduledAt:    at,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("scheduling failed: %v", err)), nil
		}
		return mcpJSON(ScheduleResponse{InterviewID: res.InterviewID, Questions: questionViews(res.Questions)})
	}
}

func mcpResourceSummary(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		sum, err := deps.Service.Summary(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize reports: %w", err)
		}

		b, err := json.Marshal(sum)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal summary: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
