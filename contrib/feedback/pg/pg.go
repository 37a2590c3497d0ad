// Package pg implements feedback.Store on PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/lib/pq"

	mserrors "github.com/mathsage/mathsage/errors"
	"github.com/mathsage/mathsage/feedback"
)

// Store persists feedback, refinements and per-source analytics in
// PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ feedback.Store = (*Store)(nil)

// New connects and creates the schema if needed.
func New(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: DSN is required", mserrors.ErrInvalidInput)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}

	store := &Store{db: db}
	if err := store.setup(context.Background()); err != nil {
		return nil, fmt.Errorf("setup feedback schema: %w", err)
	}
	return store, nil
}

func (s *Store) setup(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS feedback (
			id BIGSERIAL PRIMARY KEY,
			question TEXT NOT NULL,
			response TEXT NOT NULL,
			source TEXT NOT NULL,
			rating INTEGER,
			feedback_text TEXT,
			session_id TEXT,
			is_refined BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS refinements (
			id BIGSERIAL PRIMARY KEY,
			original_feedback_id BIGINT REFERENCES feedback (id),
			refined_response TEXT NOT NULL,
			refinement_reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS response_analytics (
			id BIGSERIAL PRIMARY KEY,
			question_type TEXT NOT NULL UNIQUE,
			avg_rating DOUBLE PRECISION NOT NULL,
			total_responses INTEGER NOT NULL,
			positive_feedback INTEGER NOT NULL,
			negative_feedback INTEGER NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordFeedback stores a new entry and updates source analytics.
func (s *Store) RecordFeedback(ctx context.Context, entry *feedback.Entry) (int64, error) {
	if entry == nil {
		return 0, fmt.Errorf("%w: entry cannot be nil", mserrors.ErrInvalidInput)
	}
	if entry.Question == "" || entry.Response == "" || entry.Source == "" {
		return 0, fmt.Errorf("%w: question, response and source are required", mserrors.ErrInvalidInput)
	}

	var id int64
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO feedback (question, response, source, rating, feedback_text, session_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, entry.Question, entry.Response, entry.Source, entry.Rating, nullIfEmpty(entry.FeedbackText), nullIfEmpty(entry.SessionID)).Scan(&id, &createdAt)
	if err != nil {
		return 0, fmt.Errorf("record feedback: %w", err)
	}

	entry.ID = id
	entry.Refined = false
	entry.CreatedAt = createdAt

	if entry.Rating != nil {
		if err := s.updateAnalytics(ctx, entry.Source, *entry.Rating); err != nil {
			return 0, fmt.Errorf("update analytics: %w", err)
		}
	}
	return id, nil
}

// updateAnalytics maintains a running average and positive/negative
// counters per source.
func (s *Store) updateAnalytics(ctx context.Context, source string, rating int) error {
	positive := 0
	if feedback.IsPositive(rating) {
		positive = 1
	}
	negative := 0
	if feedback.IsNegative(rating) {
		negative = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO response_analytics
			(question_type, avg_rating, total_responses, positive_feedback, negative_feedback)
		VALUES ($1, $2, 1, $3, $4)
		ON CONFLICT (question_type) DO UPDATE SET
			avg_rating = (response_analytics.avg_rating * response_analytics.total_responses + EXCLUDED.avg_rating)
				/ (response_analytics.total_responses + 1),
			total_responses = response_analytics.total_responses + 1,
			positive_feedback = response_analytics.positive_feedback + EXCLUDED.positive_feedback,
			negative_feedback = response_analytics.negative_feedback + EXCLUDED.negative_feedback,
			last_updated = CURRENT_TIMESTAMP
	`, source, float64(rating), positive, negative)
	return err
}

// RequestRefinement marks an entry for refinement and returns the
// original exchange.
func (s *Store) RequestRefinement(ctx context.Context, feedbackID int64, userInput string) (*feedback.RefinementRequest, error) {
	var question, response, source string
	err := s.db.QueryRowContext(ctx, `
		SELECT question, response, source FROM feedback WHERE id = $1
	`, feedbackID).Scan(&question, &response, &source)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("feedback %d: %w", feedbackID, mserrors.ErrNotFound)
		}
		return nil, fmt.Errorf("load feedback: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE feedback SET is_refined = TRUE WHERE id = $1`, feedbackID); err != nil {
		return nil, fmt.Errorf("mark refined: %w", err)
	}

	return &feedback.RefinementRequest{
		FeedbackID:       feedbackID,
		Question:         question,
		OriginalResponse: response,
		Source:           source,
		UserInput:        userInput,
	}, nil
}

// StoreRefinement saves a refined response keyed to the original entry.
func (s *Store) StoreRefinement(ctx context.Context, feedbackID int64, refinedResponse, reason string) error {
	if refinedResponse == "" {
		return fmt.Errorf("%w: refined response cannot be empty", mserrors.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refinements (original_feedback_id, refined_response, refinement_reason)
		VALUES ($1, $2, $3)
	`, feedbackID, refinedResponse, nullIfEmpty(reason))
	if err != nil {
		return fmt.Errorf("store refinement: %w", err)
	}
	return nil
}

// Stats returns aggregate feedback statistics.
func (s *Store) Stats(ctx context.Context) (*feedback.Stats, error) {
	stats := &feedback.Stats{
		SourceStats:    []feedback.SourceStat{},
		RecentNegative: []feedback.NegativeEntry{},
	}

	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(rating) FROM feedback
	`).Scan(&stats.Total, &avg)
	if err != nil {
		return nil, fmt.Errorf("feedback totals: %w", err)
	}
	if avg.Valid {
		stats.AverageRating = round2(avg.Float64)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source, COUNT(*), AVG(rating)
		FROM feedback
		WHERE rating IS NOT NULL
		GROUP BY source
		ORDER BY MIN(id)
	`)
	if err != nil {
		return nil, fmt.Errorf("source stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var stat feedback.SourceStat
		var srcAvg float64
		if err := rows.Scan(&stat.Source, &stat.Count, &srcAvg); err != nil {
			return nil, fmt.Errorf("scan source stat: %w", err)
		}
		stat.AverageRating = round2(srcAvg)
		stats.SourceStats = append(stats.SourceStats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source stats: %w", err)
	}

	negRows, err := s.db.QueryContext(ctx, `
		SELECT question, response, COALESCE(feedback_text, '')
		FROM feedback
		WHERE rating IS NOT NULL AND rating <= $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, 2, 5)
	if err != nil {
		return nil, fmt.Errorf("recent negative: %w", err)
	}
	defer negRows.Close()
	for negRows.Next() {
		var neg feedback.NegativeEntry
		if err := negRows.Scan(&neg.Question, &neg.Response, &neg.Feedback); err != nil {
			return nil, fmt.Errorf("scan negative entry: %w", err)
		}
		stats.RecentNegative = append(stats.RecentNegative, neg)
	}
	if err := negRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate negative entries: %w", err)
	}
	return stats, nil
}

// Insights returns learning signals derived from rated feedback.
func (s *Store) Insights(ctx context.Context) (*feedback.Insights, error) {
	insights := &feedback.Insights{
		ProblemQuestions: []feedback.ProblemQuestion{},
		BestSources:      []feedback.SourcePerformance{},
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT question, AVG(rating), COUNT(*)
		FROM feedback
		WHERE rating IS NOT NULL
		GROUP BY question
		HAVING AVG(rating) < 3 AND COUNT(*) >= 2
		ORDER BY COUNT(*) DESC
		LIMIT $1
	`, 10)
	if err != nil {
		return nil, fmt.Errorf("problem questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pq feedback.ProblemQuestion
		var avg float64
		if err := rows.Scan(&pq.Question, &avg, &pq.Occurrences); err != nil {
			return nil, fmt.Errorf("scan problem question: %w", err)
		}
		pq.AverageRating = round2(avg)
		insights.ProblemQuestions = append(insights.ProblemQuestions, pq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate problem questions: %w", err)
	}

	srcRows, err := s.db.QueryContext(ctx, `
		SELECT source, COUNT(*)
		FROM feedback
		WHERE rating >= $1
		GROUP BY source
		ORDER BY COUNT(*) DESC
	`, 4)
	if err != nil {
		return nil, fmt.Errorf("best sources: %w", err)
	}
	defer srcRows.Close()
	for srcRows.Next() {
		var sp feedback.SourcePerformance
		if err := srcRows.Scan(&sp.Source, &sp.PositiveCount); err != nil {
			return nil, fmt.Errorf("scan source performance: %w", err)
		}
		insights.BestSources = append(insights.BestSources, sp)
	}
	if err := srcRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate best sources: %w", err)
	}
	return insights, nil
}

// Export dumps all stored data.
func (s *Store) Export(ctx context.Context) (*feedback.Export, error) {
	export := &feedback.Export{
		Feedback:    []feedback.Entry{},
		Refinements: []feedback.Refinement{},
		ExportedAt:  time.Now().UTC(),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, response, source, rating,
			COALESCE(feedback_text, ''), COALESCE(session_id, ''), is_refined, created_at
		FROM feedback
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("export feedback: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var entry feedback.Entry
		var rating sql.NullInt64
		if err := rows.Scan(&entry.ID, &entry.Question, &entry.Response, &entry.Source,
			&rating, &entry.FeedbackText, &entry.SessionID, &entry.Refined, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback entry: %w", err)
		}
		if rating.Valid {
			r := int(rating.Int64)
			entry.Rating = &r
		}
		export.Feedback = append(export.Feedback, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback entries: %w", err)
	}

	refRows, err := s.db.QueryContext(ctx, `
		SELECT id, original_feedback_id, refined_response, COALESCE(refinement_reason, ''), created_at
		FROM refinements
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("export refinements: %w", err)
	}
	defer refRows.Close()
	for refRows.Next() {
		var ref feedback.Refinement
		if err := refRows.Scan(&ref.ID, &ref.FeedbackID, &ref.Response, &ref.Reason, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan refinement: %w", err)
		}
		export.Refinements = append(export.Refinements, ref)
	}
	if err := refRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refinements: %w", err)
	}
	return export, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
