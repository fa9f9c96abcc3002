package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/recruitx/recruitx/internal/interview"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestMCPTool_InterviewStatus(t *testing.T) {
	env := newTestEnv(t)
	_, id := env.seed(t)
	handler := mcpInterviewStatus(MCPDeps{Service: env.svc})

	result, err := handler(context.Background(), makeCallToolRequest("interview_status", map[string]interface{}{"interview_id": id}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var st StatusView
	if err := json.Unmarshal([]byte(toolText(t, result)), &st); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if st.InterviewID != id || st.Status != "scheduled" || st.TotalQuestions != 3 {
		t.Errorf("status = %+v", st)
	}
}

func TestMCPTool_MissingArguments(t *testing.T) {
	env := newTestEnv(t)
	deps := MCPDeps{Service: env.svc}

	for name, handler := range map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"interview_status":    mcpInterviewStatus(deps),
		"interview_responses": mcpInterviewResponses(deps),
		"interview_report":    mcpInterviewReport(deps),
		"schedule_interview":  mcpScheduleInterview(deps),
	} {
		result, err := handler(context.Background(), makeCallToolRequest(name, map[string]interface{}{}))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !result.IsError {
			t.Errorf("%s: expected error result", name)
		}
	}
}

func TestMCPTool_UnknownInterview(t *testing.T) {
	env := newTestEnv(t)
	handler := mcpInterviewReport(MCPDeps{Service: env.svc})

	result, err := handler(context.Background(), makeCallToolRequest("interview_report", map[string]interface{}{"interview_id": "missing"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError || !strings.Contains(toolText(t, result), "not found") {
		t.Errorf("result = %s", toolText(t, result))
	}
}

func TestMCPTool_ResponsesAndReport(t *testing.T) {
	env := newTestEnv(t)
	_, id := env.seed(t)
	if _, err := env.svc.Start(context.Background(), id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 3; i++ {
		answer(t, env, id, fmt.Sprint(i), url.Values{"SpeechResult": {fmt.Sprintf("answer %d", i)}})
	}
	deps := MCPDeps{Service: env.svc}
	args := map[string]interface{}{"interview_id": id}

	result, _ := mcpInterviewResponses(deps)(context.Background(), makeCallToolRequest("interview_responses", args))
	var rs []ResponseView
	if err := json.Unmarshal([]byte(toolText(t, result)), &rs); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(rs) != 3 || rs[2].Answer != "answer 2" {
		t.Errorf("responses = %+v", rs)
	}

	result, _ = mcpInterviewReport(deps)(context.Background(), makeCallToolRequest("interview_report", args))
	var rep ReportView
	if err := json.Unmarshal([]byte(toolText(t, result)), &rep); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if rep.InterviewID != id || rep.HiringDecision != "hire" {
		t.Errorf("report = %+v", rep)
	}
}

func TestMCPTool_ScheduleInterview(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.svc.CreateCandidate(context.Background(), interview.CandidateInput{Name: "Ada", Email: "ada@example.com", Phone: "+15550001111"})
	if err != nil {
		t.Fatalf("CreateCandidate: %v", err)
	}
	handler := mcpScheduleInterview(MCPDeps{Service: env.svc})

	result, err := handler(context.Background(), makeCallToolRequest("schedule_interview", map[string]interface{}{
		"candidate_id":    c.ID,
		"job_description": "Backend engineer",
		"scheduled_at":    "2026-11-01T09:00:00Z",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var out ScheduleResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if out.InterviewID == "" || len(out.Questions) != 3 {
		t.Errorf("schedule = %+v", out)
	}

	result, _ = handler(context.Background(), makeCallToolRequest("schedule_interview", map[string]interface{}{
		"candidate_id":    c.ID,
		"job_description": "Backend engineer",
		"scheduled_at":    "tomorrow",
	}))
	if !result.IsError {
		t.Error("expected error for unparseable scheduled_at")
	}
}

func TestMCPResource_Summary(t *testing.T) {
	env := newTestEnv(t)
	handler := mcpResourceSummary(MCPDeps{Service: env.svc})

	contents, err := handler(context.Background(), makeReadResourceRequest("recruitx://reports/summary"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.MIMEType != "application/json" {
		t.Errorf("MIME type = %q", tc.MIMEType)
	}
	var sum interview.Summary
	if err := json.Unmarshal([]byte(tc.Text), &sum); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if sum.TotalReports != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	env := newTestEnv(t)
	_, id := env.seed(t)
	handler := mcpInterviewStatus(MCPDeps{Service: env.svc})

	var wg sync.WaitGroup
	errs := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := handler(context.Background(), makeCallToolRequest("interview_status", map[string]interface{}{"interview_id": id}))
			if err != nil {
				errs <- err.Error()
				return
			}
			if result.IsError {
				errs <- "tool error"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Errorf("concurrent call failed: %s", e)
	}
}

func TestNewMCPServer(t *testing.T) {
	env := newTestEnv(t)
	if s := NewMCPServer(MCPDeps{Service: env.svc}); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
