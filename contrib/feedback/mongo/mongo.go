// Package mongo implements feedback.Store on MongoDB.
package mongo

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mscfg "github.com/mathsage/mathsage/config"
	mserrors "github.com/mathsage/mathsage/errors"
	"github.com/mathsage/mathsage/feedback"
)

// Config holds MongoDB connection settings.
type Config struct {
	URI      string
	Database string
}

// DefaultConfig returns settings for a local development instance.
func DefaultConfig() *Config {
	return &Config{
		URI:      "mongodb://localhost:27017",
		Database: "mathsage",
	}
}

// Store persists feedback and refinements in MongoDB. Numeric IDs come
// from a counters collection so they stay compatible with the rest of
// the feedback API.
type Store struct {
	client      *mongo.Client
	feedback    *mongo.Collection
	refinements *mongo.Collection
	counters    *mongo.Collection
}

var _ feedback.Store = (*Store)(nil)

type feedbackDoc struct {
	ID           int64     `bson:"_id"`
	Question     string    `bson:"question"`
	Response     string    `bson:"response"`
	Source       string    `bson:"source"`
	Rating       *int      `bson:"rating,omitempty"`
	FeedbackText string    `bson:"feedback_text,omitempty"`
	SessionID    string    `bson:"session_id,omitempty"`
	Refined      bool      `bson:"is_refined"`
	CreatedAt    time.Time `bson:"created_at"`
}

type refinementDoc struct {
	ID         int64     `bson:"_id"`
	FeedbackID int64     `bson:"original_feedback_id"`
	Response   string    `bson:"refined_response"`
	Reason     string    `bson:"refinement_reason,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

// New connects to MongoDB and prepares the collections.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := mscfg.ValidateMongoConfig(config.URI, config.Database); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	db := client.Database(config.Database)
	store := &Store{
		client:      client,
		feedback:    db.Collection("feedback"),
		refinements: db.Collection("refinements"),
		counters:    db.Collection("counters"),
	}
	if err := store.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return store, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.feedback.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "source", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.refinements.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "original_feedback_id", Value: 1}},
	})
	return err
}

// nextID increments and returns the named sequence.
func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", name, err)
	}
	return counter.Seq, nil
}

// RecordFeedback stores a new entry and returns its id.
func (s *Store) RecordFeedback(ctx context.Context, entry *feedback.Entry) (int64, error) {
	if entry == nil {
		return 0, fmt.Errorf("%w: entry cannot be nil", mserrors.ErrInvalidInput)
	}
	if entry.Question == "" || entry.Response == "" || entry.Source == "" {
		return 0, fmt.Errorf("%w: question, response and source are required", mserrors.ErrInvalidInput)
	}

	id, err := s.nextID(ctx, "feedback")
	if err != nil {
		return 0, err
	}

	doc := feedbackDoc{
		ID:           id,
		Question:     entry.Question,
		Response:     entry.Response,
		Source:       entry.Source,
		Rating:       entry.Rating,
		FeedbackText: entry.FeedbackText,
		SessionID:    entry.SessionID,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := s.feedback.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("record feedback: %w", err)
	}

	entry.ID = id
	entry.Refined = false
	entry.CreatedAt = doc.CreatedAt
	return id, nil
}

// RequestRefinement marks the entry refined and returns the original
// exchange.
func (s *Store) RequestRefinement(ctx context.Context, feedbackID int64, userInput string) (*feedback.RefinementRequest, error) {
	var doc feedbackDoc
	err := s.feedback.FindOneAndUpdate(ctx,
		bson.M{"_id": feedbackID},
		bson.M{"$set": bson.M{"is_refined": true}},
	).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("feedback %d: %w", feedbackID, mserrors.ErrNotFound)
		}
		return nil, fmt.Errorf("load feedback: %w", err)
	}

	return &feedback.RefinementRequest{
		FeedbackID:       feedbackID,
		Question:         doc.Question,
		OriginalResponse: doc.Response,
		Source:           doc.Source,
		UserInput:        userInput,
	}, nil
}

// StoreRefinement saves a refined response keyed to the original entry.
func (s *Store) StoreRefinement(ctx context.Context, feedbackID int64, refinedResponse, reason string) error {
	if refinedResponse == "" {
		return fmt.Errorf("%w: refined response cannot be empty", mserrors.ErrInvalidInput)
	}

	id, err := s.nextID(ctx, "refinements")
	if err != nil {
		return err
	}
	_, err = s.refinements.InsertOne(ctx, refinementDoc{
		ID:         id,
		FeedbackID: feedbackID,
		Response:   refinedResponse,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	})
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

	total, err := s.feedback.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}
	stats.Total = int(total)

	avgCursor, err := s.feedback.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"rating": bson.M{"$ne": nil}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "avg": bson.M{"$avg": "$rating"}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("average rating: %w", err)
	}
	var avgRows []struct {
		Avg float64 `bson:"avg"`
	}
	if err := avgCursor.All(ctx, &avgRows); err != nil {
		return nil, fmt.Errorf("decode average rating: %w", err)
	}
	if len(avgRows) > 0 {
		stats.AverageRating = round2(avgRows[0].Avg)
	}

	srcCursor, err := s.feedback.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"rating": bson.M{"$ne": nil}}}},
		{{Key: "$group", Value: bson.M{
			"_id":     "$source",
			"count":   bson.M{"$sum": 1},
			"avg":     bson.M{"$avg": "$rating"},
			"firstID": bson.M{"$min": "$_id"},
		}}},
		{{Key: "$sort", Value: bson.M{"firstID": 1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("source stats: %w", err)
	}
	var srcRows []struct {
		Source string  `bson:"_id"`
		Count  int     `bson:"count"`
		Avg    float64 `bson:"avg"`
	}
	if err := srcCursor.All(ctx, &srcRows); err != nil {
		return nil, fmt.Errorf("decode source stats: %w", err)
	}
	for _, row := range srcRows {
		stats.SourceStats = append(stats.SourceStats, feedback.SourceStat{
			Source:        row.Source,
			Count:         row.Count,
			AverageRating: round2(row.Avg),
		})
	}

	negCursor, err := s.feedback.Find(ctx,
		bson.M{"rating": bson.M{"$ne": nil, "$lte": 2}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).SetLimit(5),
	)
	if err != nil {
		return nil, fmt.Errorf("recent negative: %w", err)
	}
	var negDocs []feedbackDoc
	if err := negCursor.All(ctx, &negDocs); err != nil {
		return nil, fmt.Errorf("decode negative entries: %w", err)
	}
	for _, doc := range negDocs {
		stats.RecentNegative = append(stats.RecentNegative, feedback.NegativeEntry{
			Question: doc.Question,
			Response: doc.Response,
			Feedback: doc.FeedbackText,
		})
	}
	return stats, nil
}

// Insights returns learning signals derived from rated feedback.
func (s *Store) Insights(ctx context.Context) (*feedback.Insights, error) {
	insights := &feedback.Insights{
		ProblemQuestions: []feedback.ProblemQuestion{},
		BestSources:      []feedback.SourcePerformance{},
	}

	problemCursor, err := s.feedback.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"rating": bson.M{"$ne": nil}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$question",
			"avg":   bson.M{"$avg": "$rating"},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$match", Value: bson.M{"avg": bson.M{"$lt": 3}, "count": bson.M{"$gte": 2}}}},
		{{Key: "$sort", Value: bson.M{"count": -1}}},
		{{Key: "$limit", Value: 10}},
	})
	if err != nil {
		return nil, fmt.Errorf("problem questions: %w", err)
	}
	var problemRows []struct {
		Question string  `bson:"_id"`
		Avg      float64 `bson:"avg"`
		Count    int     `bson:"count"`
	}
	if err := problemCursor.All(ctx, &problemRows); err != nil {
		return nil, fmt.Errorf("decode problem questions: %w", err)
	}
	for _, row := range problemRows {
		insights.ProblemQuestions = append(insights.ProblemQuestions, feedback.ProblemQuestion{
			Question:      row.Question,
			AverageRating: round2(row.Avg),
			Occurrences:   row.Count,
		})
	}

	srcCursor, err := s.feedback.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"rating": bson.M{"$gte": 4}}}},
		{{Key: "$group", Value: bson.M{"_id": "$source", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.M{"count": -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("best sources: %w", err)
	}
	var srcRows []struct {
		Source string `bson:"_id"`
		Count  int    `bson:"count"`
	}
	if err := srcCursor.All(ctx, &srcRows); err != nil {
		return nil, fmt.Errorf("decode best sources: %w", err)
	}
	for _, row := range srcRows {
		insights.BestSources = append(insights.BestSources, feedback.SourcePerformance{
			Source:        row.Source,
			PositiveCount: row.Count,
		})
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

	cursor, err := s.feedback.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("export feedback: %w", err)
	}
	var docs []feedbackDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode feedback: %w", err)
	}
	for _, doc := range docs {
		export.Feedback = append(export.Feedback, feedback.Entry{
			ID:           doc.ID,
			Question:     doc.Question,
			Response:     doc.Response,
			Source:       doc.Source,
			Rating:       doc.Rating,
			FeedbackText: doc.FeedbackText,
			SessionID:    doc.SessionID,
			Refined:      doc.Refined,
			CreatedAt:    doc.CreatedAt,
		})
	}

	refCursor, err := s.refinements.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("export refinements: %w", err)
	}
	var refs []refinementDoc
	if err := refCursor.All(ctx, &refs); err != nil {
		return nil, fmt.Errorf("decode refinements: %w", err)
	}
	for _, ref := range refs {
		export.Refinements = append(export.Refinements, feedback.Refinement{
			ID:         ref.ID,
			FeedbackID: ref.FeedbackID,
			Response:   ref.Response,
			Reason:     ref.Reason,
			CreatedAt:  ref.CreatedAt,
		})
	}
	return export, nil
}

// Ping checks the MongoDB connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Disconnect(ctx)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
