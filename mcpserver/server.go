// Package mcpserver exposes the answering pipeline over the Model
// Context Protocol so editor agents and chat hosts can call it as a
// set of tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mathsage/mathsage/feedback"
	"github.com/mathsage/mathsage/orchestrator"
)

const serverVersion = "0.1.0"

// Deps carries the collaborators the tools delegate to. Feedback may be
// nil, in which case the feedback tools report an error.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Feedback     feedback.Store
}

// NewServer builds an MCP server with the math answering tools
// registered. Run it over the transport of your choice, typically
// stdio.
func NewServer(name string, deps Deps) (*mcp.Server, error) {
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: serverVersion,
		Title:   "math question answering",
	}, nil)

	addAskTool(server, deps)
	addRefineTool(server, deps)
	addFeedbackTool(server, deps)
	addStatsTool(server, deps)
	addHealthTool(server, deps)

	return server, nil
}

func addAskTool(server *mcp.Server, deps Deps) {
	type args struct {
		Question  string `json:"question" jsonschema:"The mathematics question to answer"`
		SessionID string `json:"session_id,omitempty" jsonschema:"Optional session identifier for follow-up context"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_math",
		Description: "Answer a mathematics question using the knowledge base, web evidence, and an LLM",
	}, func(ctx context.Context, req *mcp.CallToolRequest, a args) (*mcp.CallToolResult, any, error) {
		question := strings.TrimSpace(a.Question)
		if question == "" {
			return nil, nil, fmt.Errorf("question is required")
		}

		record := deps.Orchestrator.Answer(ctx, question, a.SessionID)
		return jsonResult(record)
	})
}

func addRefineTool(server *mcp.Server, deps Deps) {
	type args struct {
		Question       string `json:"question" jsonschema:"The original question"`
		OriginalAnswer string `json:"original_answer" jsonschema:"The answer being refined"`
		Feedback       string `json:"feedback" jsonschema:"What the user wants improved"`
		FeedbackID     int64  `json:"feedback_id,omitempty" jsonschema:"Optional stored feedback entry to attach the refinement to"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "refine_answer",
		Description: "Rewrite a previous answer according to user feedback",
	}, func(ctx context.Context, req *mcp.CallToolRequest, a args) (*mcp.CallToolResult, any, error) {
		if strings.TrimSpace(a.Question) == "" || strings.TrimSpace(a.OriginalAnswer) == "" {
			return nil, nil, fmt.Errorf("question and original_answer are required")
		}
		if strings.TrimSpace(a.Feedback) == "" {
			return nil, nil, fmt.Errorf("feedback is required")
		}

		result, err := deps.Orchestrator.Refine(ctx, a.Question, a.OriginalAnswer, a.Feedback, a.FeedbackID)
		if err != nil {
			return nil, nil, fmt.Errorf("refine answer: %w", err)
		}
		return jsonResult(result)
	})
}

func addFeedbackTool(server *mcp.Server, deps Deps) {
	type args struct {
		Question  string `json:"question" jsonschema:"The question that was asked"`
		Response  string `json:"response" jsonschema:"The answer being rated"`
		Source    string `json:"source" jsonschema:"Where the answer came from (Knowledge Base, Web Search, General Knowledge)"`
		Rating    *int   `json:"rating,omitempty" jsonschema:"Rating from 1 to 5"`
		Comment   string `json:"comment,omitempty" jsonschema:"Optional free-text feedback"`
		SessionID string `json:"session_id,omitempty" jsonschema:"Optional session identifier"`
	}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "record_feedback",
		Description: "Record a user rating for an answer",
	}, func(ctx context.Context, req *mcp.CallToolRequest, a args) (*mcp.CallToolResult, any, error) {
		if deps.Feedback == nil {
			return nil, nil, fmt.Errorf("feedback store not configured")
		}
		if a.Rating != nil && (*a.Rating < 1 || *a.Rating > 5) {
			return nil, nil, fmt.Errorf("rating must be between 1 and 5")
		}

		entry := &feedback.Entry{
			Question:     a.Question,
			Response:     a.Response,
			Source:       a.Source,
			Rating:       a.Rating,
			FeedbackText: a.Comment,
			SessionID:    a.SessionID,
		}
		id, err := deps.Feedback.RecordFeedback(ctx, entry)
		if err != nil {
			return nil, nil, fmt.Errorf("record feedback: %w", err)
		}
		return jsonResult(map[string]any{"feedback_id": id})
	})
}

func addStatsTool(server *mcp.Server, deps Deps) {
	type args struct{}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "feedback_stats",
		Description: "Summarise recorded feedback: totals, per-source ratings, recent negative entries",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ args) (*mcp.CallToolResult, any, error) {
		if deps.Feedback == nil {
			return nil, nil, fmt.Errorf("feedback store not configured")
		}
		stats, err := deps.Feedback.Stats(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("feedback stats: %w", err)
		}
		return jsonResult(stats)
	})
}

func addHealthTool(server *mcp.Server, deps Deps) {
	type args struct{}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "system_health",
		Description: "Report knowledge base size, feedback aggregates, and component availability",
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ args) (*mcp.CallToolResult, any, error) {
		return jsonResult(deps.Orchestrator.SystemHealth(ctx))
	})
}

// jsonResult renders a value as an indented JSON text block.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}
