package feedback

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mathsage/mathsage/errors"
)

// MemoryStore is an in-process Store for tests, examples, and
// single-process deployments without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	entries     []Entry
	refinements []Refinement
	nextID      int64
	nextRefID   int64
}

// NewMemoryStore creates an empty in-memory feedback store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, nextRefID: 1}
}

// RecordFeedback stores a new entry and returns its id.
func (s *MemoryStore) RecordFeedback(ctx context.Context, entry *Entry) (int64, error) {
	if entry == nil {
		return 0, fmt.Errorf("%w: entry cannot be nil", errors.ErrInvalidInput)
	}
	if entry.Question == "" || entry.Response == "" || entry.Source == "" {
		return 0, fmt.Errorf("%w: question, response, and source are required", errors.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *entry
	stored.ID = s.nextID
	stored.Refined = false
	stored.CreatedAt = time.Now()
	if entry.Rating != nil {
		r := *entry.Rating
		stored.Rating = &r
	}
	s.nextID++
	s.entries = append(s.entries, stored)
	return stored.ID, nil
}

// RequestRefinement marks the entry refined and returns the exchange.
func (s *MemoryStore) RequestRefinement(ctx context.Context, feedbackID int64, userInput string) (*RefinementRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].ID != feedbackID {
			continue
		}
		s.entries[i].Refined = true
		return &RefinementRequest{
			FeedbackID:       feedbackID,
			Question:         s.entries[i].Question,
			OriginalResponse: s.entries[i].Response,
			Source:           s.entries[i].Source,
			UserInput:        userInput,
		}, nil
	}
	return nil, fmt.Errorf("%w: feedback %d", errors.ErrNotFound, feedbackID)
}

// StoreRefinement saves a refined response.
func (s *MemoryStore) StoreRefinement(ctx context.Context, feedbackID int64, refinedResponse, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refinements = append(s.refinements, Refinement{
		ID:         s.nextRefID,
		FeedbackID: feedbackID,
		Response:   refinedResponse,
		Reason:     reason,
		CreatedAt:  time.Now(),
	})
	s.nextRefID++
	return nil
}

// Stats aggregates all recorded feedback.
func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{Total: len(s.entries)}

	type agg struct {
		count int
		sum   int
	}
	var ratedCount, ratedSum int
	bySource := map[string]*agg{}
	var sourceOrder []string

	for _, e := range s.entries {
		if e.Rating == nil {
			continue
		}
		ratedCount++
		ratedSum += *e.Rating
		a, ok := bySource[e.Source]
		if !ok {
			a = &agg{}
			bySource[e.Source] = a
			sourceOrder = append(sourceOrder, e.Source)
		}
		a.count++
		a.sum += *e.Rating
	}

	if ratedCount > 0 {
		stats.AverageRating = round2(float64(ratedSum) / float64(ratedCount))
	}
	for _, src := range sourceOrder {
		a := bySource[src]
		stats.SourceStats = append(stats.SourceStats, SourceStat{
			Source:        src,
			Count:         a.count,
			AverageRating: round2(float64(a.sum) / float64(a.count)),
		})
	}

	// Most recent negatives first.
	for i := len(s.entries) - 1; i >= 0 && len(stats.RecentNegative) < recentNegativeLimit; i-- {
		e := s.entries[i]
		if e.Rating == nil || !IsNegative(*e.Rating) {
			continue
		}
		stats.RecentNegative = append(stats.RecentNegative, NegativeEntry{
			Question: e.Question,
			Response: e.Response,
			Feedback: e.FeedbackText,
		})
	}

	return stats, nil
}

// Insights surfaces repeatedly low-rated questions and the sources that
// earn the most positive ratings.
func (s *MemoryStore) Insights(ctx context.Context) (*Insights, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type agg struct {
		count int
		sum   int
	}
	byQuestion := map[string]*agg{}
	positiveBySource := map[string]int{}

	for _, e := range s.entries {
		if e.Rating == nil {
			continue
		}
		a, ok := byQuestion[e.Question]
		if !ok {
			a = &agg{}
			byQuestion[e.Question] = a
		}
		a.count++
		a.sum += *e.Rating
		if IsPositive(*e.Rating) {
			positiveBySource[e.Source]++
		}
	}

	insights := &Insights{}
	for q, a := range byQuestion {
		avg := float64(a.sum) / float64(a.count)
		if avg < 3 && a.count >= 2 {
			insights.ProblemQuestions = append(insights.ProblemQuestions, ProblemQuestion{
				Question:      q,
				AverageRating: round2(avg),
				Occurrences:   a.count,
			})
		}
	}
	sort.Slice(insights.ProblemQuestions, func(i, j int) bool {
		return insights.ProblemQuestions[i].Occurrences > insights.ProblemQuestions[j].Occurrences
	})
	if len(insights.ProblemQuestions) > problemQuestionLimit {
		insights.ProblemQuestions = insights.ProblemQuestions[:problemQuestionLimit]
	}

	for src, n := range positiveBySource {
		insights.BestSources = append(insights.BestSources, SourcePerformance{
			Source:        src,
			PositiveCount: n,
		})
	}
	sort.Slice(insights.BestSources, func(i, j int) bool {
		return insights.BestSources[i].PositiveCount > insights.BestSources[j].PositiveCount
	})

	return insights, nil
}

// Export dumps all stored data.
func (s *MemoryStore) Export(ctx context.Context) (*Export, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := &Export{
		Feedback:    make([]Entry, len(s.entries)),
		Refinements: make([]Refinement, len(s.refinements)),
		ExportedAt:  time.Now(),
	}
	copy(out.Feedback, s.entries)
	copy(out.Refinements, s.refinements)
	return out, nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
