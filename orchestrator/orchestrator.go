// Package orchestrator sequences the answer pipeline: content policy,
// knowledge-base retrieval, conditional web fallback, generation, and
// output validation. It owns every threshold and the fallback order.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mathsage/mathsage/feedback"
	"github.com/mathsage/mathsage/generator"
	"github.com/mathsage/mathsage/guard"
	"github.com/mathsage/mathsage/knowledge/retriever"
	"github.com/mathsage/mathsage/knowledge/tokenizer"
	"github.com/mathsage/mathsage/message"
	"github.com/mathsage/mathsage/pkg/logging"
	"github.com/mathsage/mathsage/pkg/telemetry"
	"github.com/mathsage/mathsage/prompt"
	"github.com/mathsage/mathsage/session"
	"github.com/mathsage/mathsage/websearch"
)

// SourceKind labels where an answer's supporting evidence came from.
type SourceKind string

const (
	SourceKnowledgeBase     SourceKind = "Knowledge Base"
	SourceWebSearch         SourceKind = "Web Search"
	SourceGeneralKnowledge  SourceKind = "General Knowledge"
	SourceGuardrailsBlocked SourceKind = "Guardrails Blocked"
	SourceMathFilter        SourceKind = "Math Filter"
	SourceRefinedResponse   SourceKind = "Refined Response"
)

// Pipeline tuning constants. The retrieval threshold and the web-fallback
// trigger differ so weak KB hits still reach generation while also
// triggering a web lookup.
const (
	// minConfidenceScore is the retrieval score floor passed to the
	// knowledge retriever.
	minConfidenceScore = 0.5

	// webSearchThreshold triggers the web fallback when the best KB score
	// sits below it, even when KB results exist.
	webSearchThreshold = 0.4

	// mathRelevanceGate is the soft topic gate on the combined relevance
	// confidence.
	mathRelevanceGate = 0.3

	// defaultTopK is how many passages to request from the retriever.
	defaultTopK = 3

	// defaultTokenBudget bounds assembled context size.
	defaultTokenBudget = 2048

	// safetyInstruction is appended to the question for the single
	// regeneration attempt after a severe output violation.
	safetyInstruction = " [Please provide a safe, educational response]"
)

const (
	offTopicMessage          = "I'm a mathematics education assistant. Please ask a math-related question, and I'll be happy to help!"
	generationFailureMessage = "I ran into a problem generating a response. Please try again."
)

// Record is the immutable result of one answer or refinement pipeline run.
type Record struct {
	Answer            string        `json:"answer"`
	Source            SourceKind    `json:"source"`
	Sources           []string      `json:"sources,omitempty"`
	UsedKnowledgeBase bool          `json:"used_kb"`
	UsedWeb           bool          `json:"used_web"`
	KBConfidence      float64       `json:"kb_confidence"`
	MathRelevance     float64       `json:"math_relevance"`
	InputVerdict      guard.Verdict `json:"input_validation"`
	OutputVerdict     guard.Verdict `json:"output_validation"`
	Success           bool          `json:"success"`
	SessionID         string        `json:"session_id,omitempty"`
}

// RefineResult is the outcome of one refinement run.
type RefineResult struct {
	RefinedAnswer string        `json:"refined_answer"`
	OutputVerdict guard.Verdict `json:"validation"`
	Success       bool          `json:"success"`
}

// WebSearcher is the web evidence contract. Transport failures surface
// inside the Response, never as panics or errors.
type WebSearcher interface {
	Search(ctx context.Context, query string) *websearch.Response
}

// KnowledgeCounter is implemented by retrievers that can report corpus
// size, used by Health.
type KnowledgeCounter interface {
	Count(ctx context.Context) (int, error)
}

// Orchestrator runs the answer and refinement pipelines. Safe for
// concurrent use when its collaborators are.
type Orchestrator struct {
	guard     *guard.Guard
	retriever retriever.Searcher
	web       WebSearcher
	gen       *generator.Generator
	feedback  feedback.Store
	sessions  session.Store
	tokens    tokenizer.Counter
	logger    *slog.Logger
	tracer    trace.Tracer

	webEnabled  bool
	tokenBudget int
	topK        int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithWebSearch wires a web evidence provider and enables the fallback.
func WithWebSearch(w WebSearcher) Option {
	return func(o *Orchestrator) {
		o.web = w
		o.webEnabled = w != nil
	}
}

// WithFeedback wires a feedback store for refinement persistence and Health.
func WithFeedback(store feedback.Store) Option {
	return func(o *Orchestrator) { o.feedback = store }
}

// WithSessions wires a chat-history store. Questions answered without
// retrieved context then continue the session's conversation instead of
// starting fresh.
func WithSessions(store session.Store) Option {
	return func(o *Orchestrator) { o.sessions = store }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTokenBudget bounds the assembled context size in estimated tokens.
func WithTokenBudget(budget int) Option {
	return func(o *Orchestrator) {
		if budget > 0 {
			o.tokenBudget = budget
		}
	}
}

// WithTokenCounter overrides the token estimator used for the budget.
func WithTokenCounter(c tokenizer.Counter) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.tokens = c
		}
	}
}

// WithTopK sets how many passages to request from the retriever.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k > 0 {
			o.topK = k
		}
	}
}

// New creates an orchestrator around a retriever and an LLM client.
func New(searcher retriever.Searcher, client generator.Client, opts ...Option) (*Orchestrator, error) {
	if searcher == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	gen, err := generator.New(client)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		guard:       guard.New(),
		retriever:   searcher,
		gen:         gen,
		tokens:      tokenizer.NewHeuristicCounter(),
		logger:      logging.WithComponent("orchestrator"),
		tracer:      otel.Tracer("mathsage/orchestrator"),
		tokenBudget: defaultTokenBudget,
		topK:        defaultTopK,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Answer runs the full question pipeline and always returns a well-formed
// record; no failure path panics or propagates an error.
func (o *Orchestrator) Answer(ctx context.Context, question, sessionID string) *Record {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Answer",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	var spanErr error
	defer func() { telemetry.End(span, spanErr) }()

	// Stage 1: input guard. Any invalid verdict is terminal; advisory
	// verdicts (valid with a warning) continue and are attached to the
	// final record.
	inputVerdict := o.guard.ValidateInput(question)
	if !inputVerdict.Valid {
		o.logger.Warn("question blocked by content policy",
			"reason", inputVerdict.Reason, "severity", inputVerdict.Severity,
			"session_id", sessionID)
		span.SetAttributes(attribute.String("answer.source", string(SourceGuardrailsBlocked)))
		return &Record{
			Answer:       inputVerdict.Message,
			Source:       SourceGuardrailsBlocked,
			InputVerdict: inputVerdict,
			Success:      false,
			SessionID:    sessionID,
		}
	}

	// Stage 2: topic relevance gate, independent of stage 1.
	isMath, mathConfidence := o.guard.MathRelevance(question)
	if !isMath && mathConfidence < mathRelevanceGate {
		o.logger.Info("question outside math scope",
			"confidence", mathConfidence, "session_id", sessionID)
		span.SetAttributes(attribute.String("answer.source", string(SourceMathFilter)))
		return &Record{
			Answer:        offTopicMessage,
			Source:        SourceMathFilter,
			MathRelevance: mathConfidence,
			InputVerdict:  inputVerdict,
			Success:       false,
			SessionID:     sessionID,
		}
	}

	// Stage 3: knowledge-base retrieval. Retrieval failure falls through
	// to the next evidence tier, identical to an empty result.
	passages, err := o.retriever.Search(ctx, question, o.topK, minConfidenceScore)
	if err != nil {
		o.logger.Warn("knowledge retrieval failed, continuing without it", "error", err)
		passages = nil
	}
	hasKBContext := len(passages) > 0
	bestKBScore := 0.0
	if hasKBContext {
		bestKBScore = passages[0].Score
	}

	// Stage 4: web fallback, triggered by one inequality. Weak KB hits
	// still trigger it even though they win context assembly below.
	var webResults []websearch.Result
	if o.webEnabled && (!hasKBContext || bestKBScore < webSearchThreshold) {
		resp := o.web.Search(ctx, question)
		if resp != nil && resp.Success && len(resp.Results) > 0 {
			if websearch.ValidateAnswerExists(question, resp.Results) {
				webResults = resp.Results
			} else {
				o.logger.Debug("web results failed relevance validation", "query", question)
			}
		}
	}

	// Stage 5: context assembly, strict KB > web > parametric priority.
	contextText, sources, sourceKind := o.assembleContext(passages, webResults)

	span.SetAttributes(
		attribute.String("answer.source", string(sourceKind)),
		attribute.Bool("answer.used_kb", hasKBContext),
		attribute.Bool("answer.used_web", webResults != nil),
		attribute.Float64("answer.kb_confidence", bestKBScore),
	)

	record := &Record{
		Source:            sourceKind,
		Sources:           sources,
		UsedKnowledgeBase: hasKBContext,
		UsedWeb:           webResults != nil,
		KBConfidence:      bestKBScore,
		MathRelevance:     mathConfidence,
		InputVerdict:      inputVerdict,
		SessionID:         sessionID,
	}

	// Stage 6: generation. The only fatal stage. A parametric answer
	// inside a known session becomes a follow-up so the conversation
	// carries forward; grounded answers always restate their context.
	var history []*message.Message
	if o.sessions != nil && sessionID != "" {
		if h, histErr := o.sessions.History(ctx, sessionID); histErr == nil {
			history = h
		}
	}

	var answer string
	if contextText == "" && len(history) > 0 {
		answer, err = o.gen.FollowUp(ctx, question, history)
	} else {
		answer, err = o.gen.Answer(ctx, question, contextText)
	}
	if err != nil {
		spanErr = err
		o.logger.Error("generation failed", "error", err, "session_id", sessionID)
		record.Answer = generationFailureMessage
		record.Success = false
		return record
	}

	// Stage 7: output guard with at most one regeneration.
	outputVerdict := o.guard.ValidateOutput(answer)
	if !outputVerdict.Valid && outputVerdict.Severity == guard.SeverityHigh {
		o.logger.Warn("output failed content policy, regenerating once",
			"reason", outputVerdict.Reason)
		regenerated, regenErr := o.gen.Answer(ctx, question+safetyInstruction, contextText)
		if regenErr == nil {
			answer = regenerated
			outputVerdict = o.guard.ValidateOutput(answer)
		}
	}

	// Record the exchange for future follow-ups. Best effort only.
	if o.sessions != nil && sessionID != "" {
		if appendErr := o.sessions.Append(ctx, sessionID,
			message.NewMessage(message.RoleUser, question),
			message.NewMessage(message.RoleAssistant, answer)); appendErr != nil {
			o.logger.Warn("session append failed", "error", appendErr, "session_id", sessionID)
		}
	}

	record.Answer = answer
	record.OutputVerdict = outputVerdict
	record.Success = true
	return record
}

// Refine rewrites an existing answer to address free-text user feedback.
// It never re-retrieves; the rewrite works from the original material only,
// and output validation runs once with no regeneration loop.
func (o *Orchestrator) Refine(ctx context.Context, originalQuestion, originalAnswer, userFeedback string, feedbackID int64) (*RefineResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Refine",
		trace.WithAttributes(attribute.Int64("feedback.id", feedbackID)))
	var spanErr error
	defer func() { telemetry.End(span, spanErr) }()

	b := prompt.NewBuilder()
	b.AddFormat("Original Question: %s\n", originalQuestion)
	b.AddLine("")
	b.AddFormat("Original Answer: %s\n", originalAnswer)
	b.AddLine("")
	b.AddFormat("User Feedback: %s\n", userFeedback)
	b.AddLine("")
	b.AddLine("Please provide an improved answer that addresses the user's feedback.")
	b.AddLine("Make sure to:")
	b.AddLine("1. Address the specific concerns mentioned")
	b.AddLine("2. Provide more clarity where requested")
	b.AddLine("3. Include additional examples if needed")
	b.Add("4. Maintain mathematical accuracy")

	refined, err := o.gen.Raw(ctx, b.Build())
	if err != nil {
		spanErr = err
		o.logger.Error("refinement generation failed", "error", err)
		return nil, err
	}

	verdict := o.guard.ValidateOutput(refined)

	// Persistence is best effort: a storage failure never withholds the
	// refined answer from the caller.
	if feedbackID > 0 && o.feedback != nil {
		if err := o.feedback.StoreRefinement(ctx, feedbackID, refined, userFeedback); err != nil {
			o.logger.Warn("failed to persist refinement", "feedback_id", feedbackID, "error", err)
		}
	}

	return &RefineResult{
		RefinedAnswer: refined,
		OutputVerdict: verdict,
		Success:       true,
	}, nil
}

// assembleContext picks the evidence tier and renders it into a bounded
// prompt context. KB passages always win over web results.
func (o *Orchestrator) assembleContext(passages []retriever.Passage, webResults []websearch.Result) (string, []string, SourceKind) {
	if len(passages) > 0 {
		var blocks []string
		var sources []string
		seen := map[string]struct{}{}
		used := 0
		for i, p := range passages {
			block := fmt.Sprintf("[Source %d: %s (Relevance: %.2f)]\n%s", i+1, p.Source, p.Score, p.Text)
			cost := o.tokens.CountTokens(block)
			if used+cost > o.tokenBudget && len(blocks) > 0 {
				break
			}
			used += cost
			blocks = append(blocks, block)
			if _, ok := seen[p.Source]; !ok {
				seen[p.Source] = struct{}{}
				sources = append(sources, p.Source)
			}
		}
		return strings.Join(blocks, "\n\n"), sources, SourceKnowledgeBase
	}

	if len(webResults) > 0 {
		var sources []string
		for _, r := range webResults {
			sources = append(sources, r.URL)
			if len(sources) == 2 {
				break
			}
		}
		contextText := websearch.FormatContext(webResults)
		if o.tokens.CountTokens(contextText) > o.tokenBudget && len(webResults) > 1 {
			contextText = websearch.FormatContext(webResults[:1])
		}
		return contextText, sources, SourceWebSearch
	}

	return "", nil, SourceGeneralKnowledge
}
