package pg

import (
	"context"
	"os"
	"testing"

	stderrors "errors"

	mserrors "github.com/mathsage/mathsage/errors"
	"github.com/mathsage/mathsage/feedback"
)

// newTestStore connects to the database named by POSTGRES_DSN and skips
// the test when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	s, err := New(dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx := context.Background()
		s.db.ExecContext(ctx, "TRUNCATE refinements, feedback, response_analytics RESTART IDENTITY")
		s.Close()
	})
	return s
}

func intPtr(v int) *int { return &v }

func TestRecordAndStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entries := []*feedback.Entry{
		{Question: "what is a derivative", Response: "the rate of change", Source: "Knowledge Base", Rating: intPtr(5)},
		{Question: "what is a derivative", Response: "slope of the tangent", Source: "Knowledge Base", Rating: intPtr(4)},
		{Question: "solve x+1=2", Response: "x=1", Source: "Web Search", Rating: intPtr(1), FeedbackText: "too terse"},
	}
	for _, e := range entries {
		id, err := s.RecordFeedback(ctx, e)
		if err != nil {
			t.Fatalf("RecordFeedback: %v", err)
		}
		if id == 0 {
			t.Fatal("expected non-zero feedback ID")
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.AverageRating != 3.33 {
		t.Errorf("AverageRating = %v, want 3.33", stats.AverageRating)
	}
	if len(stats.SourceStats) != 2 {
		t.Fatalf("got %d source stats, want 2", len(stats.SourceStats))
	}
	if len(stats.RecentNegative) != 1 || stats.RecentNegative[0].Feedback != "too terse" {
		t.Errorf("RecentNegative = %+v", stats.RecentNegative)
	}
}

func TestRefinementRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.RecordFeedback(ctx, &feedback.Entry{
		Question: "integrate x", Response: "x^2/2 + C", Source: "General Knowledge", Rating: intPtr(2),
	})
	if err != nil {
		t.Fatalf("RecordFeedback: %v", err)
	}

	req, err := s.RequestRefinement(ctx, id, "please show the steps")
	if err != nil {
		t.Fatalf("RequestRefinement: %v", err)
	}
	if req.Question != "integrate x" || req.UserInput != "please show the steps" {
		t.Errorf("RefinementRequest = %+v", req)
	}

	if err := s.StoreRefinement(ctx, id, "Step 1: apply the power rule...", "please show the steps"); err != nil {
		t.Fatalf("StoreRefinement: %v", err)
	}

	export, err := s.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(export.Feedback) != 1 || !export.Feedback[0].Refined {
		t.Errorf("exported feedback = %+v", export.Feedback)
	}
	if len(export.Refinements) != 1 || export.Refinements[0].FeedbackID != id {
		t.Errorf("exported refinements = %+v", export.Refinements)
	}
}

func TestRequestRefinementUnknownID(t *testing.T) {
	s := newTestStore(t)

	_, err := s.RequestRefinement(context.Background(), 99999, "anything")
	if !stderrors.Is(err, mserrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInsights(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, e := range []*feedback.Entry{
		{Question: "confusing one", Response: "a", Source: "Web Search", Rating: intPtr(1)},
		{Question: "confusing one", Response: "b", Source: "Web Search", Rating: intPtr(2)},
		{Question: "good one", Response: "c", Source: "Knowledge Base", Rating: intPtr(5)},
	} {
		if _, err := s.RecordFeedback(ctx, e); err != nil {
			t.Fatalf("RecordFeedback: %v", err)
		}
	}

	insights, err := s.Insights(ctx)
	if err != nil {
		t.Fatalf("Insights: %v", err)
	}
	if len(insights.ProblemQuestions) != 1 || insights.ProblemQuestions[0].Question != "confusing one" {
		t.Errorf("ProblemQuestions = %+v", insights.ProblemQuestions)
	}
	if len(insights.BestSources) != 1 || insights.BestSources[0].Source != "Knowledge Base" {
		t.Errorf("BestSources = %+v", insights.BestSources)
	}
}
