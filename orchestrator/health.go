package orchestrator

import (
	"context"

	"github.com/mathsage/mathsage/feedback"
)

// KnowledgeBaseHealth reports the state of the indexed corpus.
type KnowledgeBaseHealth struct {
	Status        string `json:"status"`
	DocumentCount int    `json:"document_count"`
}

// Health is a point-in-time snapshot of the system's components.
type Health struct {
	KnowledgeBase KnowledgeBaseHealth `json:"knowledge_base"`
	Feedback      *feedback.Stats     `json:"feedback,omitempty"`
	Insights      *feedback.Insights  `json:"learning_insights,omitempty"`
	Components    map[string]string   `json:"components"`
}

// SystemHealth reports corpus size, feedback aggregates, and component
// availability. Collaborator failures degrade the snapshot instead of
// failing it.
func (o *Orchestrator) SystemHealth(ctx context.Context) *Health {
	h := &Health{
		KnowledgeBase: KnowledgeBaseHealth{Status: "unknown"},
		Components: map[string]string{
			"guardrails":      "active",
			"web_search":      "disabled",
			"feedback_system": "disabled",
		},
	}
	if o.webEnabled {
		h.Components["web_search"] = "active"
	}

	if counter, ok := o.retriever.(KnowledgeCounter); ok {
		if count, err := counter.Count(ctx); err == nil {
			h.KnowledgeBase.DocumentCount = count
			if count > 0 {
				h.KnowledgeBase.Status = "active"
			} else {
				h.KnowledgeBase.Status = "empty"
			}
		} else {
			o.logger.Warn("knowledge base count failed", "error", err)
		}
	}

	if o.feedback != nil {
		h.Components["feedback_system"] = "active"
		if stats, err := o.feedback.Stats(ctx); err == nil {
			h.Feedback = stats
		} else {
			o.logger.Warn("feedback stats failed", "error", err)
		}
		if insights, err := o.feedback.Insights(ctx); err == nil {
			h.Insights = insights
		} else {
			o.logger.Warn("feedback insights failed", "error", err)
		}
	}

	return h
}
