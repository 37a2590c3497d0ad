// Package feedback collects user ratings and refinement requests for
// generated answers and aggregates them into statistics the system can
// learn from.
package feedback

import (
	"context"
	"time"
)

// Entry is one recorded piece of user feedback on an answer.
type Entry struct {
	ID           int64     `json:"id"`
	Question     string    `json:"question"`
	Response     string    `json:"response"`
	Source       string    `json:"source"`
	Rating       *int      `json:"rating,omitempty"`
	FeedbackText string    `json:"feedback_text,omitempty"`
	SessionID    string    `json:"session_id,omitempty"`
	Refined      bool      `json:"is_refined"`
	CreatedAt    time.Time `json:"created_at"`
}

// Refinement is a stored rewrite of an answer that received feedback.
type Refinement struct {
	ID         int64     `json:"id"`
	FeedbackID int64     `json:"original_feedback_id"`
	Response   string    `json:"refined_response"`
	Reason     string    `json:"refinement_reason"`
	CreatedAt  time.Time `json:"created_at"`
}

// RefinementRequest carries the original exchange back to the caller so
// it can build a refinement prompt.
type RefinementRequest struct {
	FeedbackID       int64  `json:"feedback_id"`
	Question         string `json:"question"`
	OriginalResponse string `json:"original_response"`
	Source           string `json:"source"`
	UserInput        string `json:"user_input"`
}

// SourceStat aggregates rated feedback per answer source.
type SourceStat struct {
	Source        string  `json:"source"`
	Count         int     `json:"count"`
	AverageRating float64 `json:"avg_rating"`
}

// NegativeEntry is a recent low-rated exchange surfaced for review.
type NegativeEntry struct {
	Question string `json:"question"`
	Response string `json:"response"`
	Feedback string `json:"feedback"`
}

// Stats summarises all recorded feedback.
type Stats struct {
	Total          int             `json:"total_feedback"`
	AverageRating  float64         `json:"average_rating"`
	SourceStats    []SourceStat    `json:"source_stats"`
	RecentNegative []NegativeEntry `json:"recent_negative"`
}

// ProblemQuestion is a question that repeatedly rates poorly.
type ProblemQuestion struct {
	Question      string  `json:"question"`
	AverageRating float64 `json:"avg_rating"`
	Occurrences   int     `json:"occurrences"`
}

// SourcePerformance counts highly-rated answers per source.
type SourcePerformance struct {
	Source        string `json:"source"`
	PositiveCount int    `json:"positive_count"`
}

// Insights extracts actionable signals from accumulated feedback.
type Insights struct {
	ProblemQuestions []ProblemQuestion   `json:"problem_questions"`
	BestSources      []SourcePerformance `json:"best_performing_sources"`
}

// Export is a full dump of stored feedback for offline analysis.
type Export struct {
	Feedback    []Entry      `json:"feedback"`
	Refinements []Refinement `json:"refinements"`
	ExportedAt  time.Time    `json:"export_timestamp"`
}

// Store persists feedback and refinements. Implementations must be safe
// for concurrent use.
type Store interface {
	// RecordFeedback stores a new entry and returns its id. The entry's
	// ID, Refined, and CreatedAt fields are assigned by the store.
	RecordFeedback(ctx context.Context, entry *Entry) (int64, error)

	// RequestRefinement marks the entry as needing refinement and returns
	// the original exchange. Returns errors.ErrNotFound for unknown ids.
	RequestRefinement(ctx context.Context, feedbackID int64, userInput string) (*RefinementRequest, error)

	// StoreRefinement saves a refined response keyed to the original entry.
	StoreRefinement(ctx context.Context, feedbackID int64, refinedResponse, reason string) error

	// Stats returns aggregate feedback statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Insights returns learning signals derived from rated feedback.
	Insights(ctx context.Context) (*Insights, error)

	// Export dumps all stored data.
	Export(ctx context.Context) (*Export, error)
}

// Rating thresholds shared by all backends.
const (
	positiveRating = 4
	negativeRating = 2

	recentNegativeLimit  = 5
	problemQuestionLimit = 10
)

// IsPositive reports whether a rating counts as positive feedback.
func IsPositive(rating int) bool { return rating >= positiveRating }

// IsNegative reports whether a rating counts as negative feedback.
func IsNegative(rating int) bool { return rating <= negativeRating }
