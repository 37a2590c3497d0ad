package orchestrator

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/mathsage/mathsage/feedback"
	"github.com/mathsage/mathsage/guard"
	"github.com/mathsage/mathsage/knowledge/retriever"
	"github.com/mathsage/mathsage/message"
	"github.com/mathsage/mathsage/session"
	"github.com/mathsage/mathsage/websearch"
)

// stubSearcher returns a fixed passage set.
type stubSearcher struct {
	passages []retriever.Passage
	err      error
	calls    int
}

func (s *stubSearcher) Search(ctx context.Context, query string, n int, scoreThreshold float64) ([]retriever.Passage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.passages, nil
}

// stubWeb returns a fixed response and counts invocations.
type stubWeb struct {
	resp  *websearch.Response
	calls int
}

func (w *stubWeb) Search(ctx context.Context, query string) *websearch.Response {
	w.calls++
	return w.resp
}

// scriptedLLM replies with each scripted answer in turn and records the
// user prompts it saw.
type scriptedLLM struct {
	replies   []string
	err       error
	calls     int
	prompts   []string
	msgCounts []int
}

func (s *scriptedLLM) Generate(ctx context.Context, msgs []*message.Message) (*message.Message, error) {
	s.calls++
	s.prompts = append(s.prompts, msgs[len(msgs)-1].Content)
	s.msgCounts = append(s.msgCounts, len(msgs))
	if s.err != nil {
		return nil, s.err
	}
	reply := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return message.NewMessage(message.RoleAssistant, reply), nil
}

func (s *scriptedLLM) SetTemperature(float64) {}
func (s *scriptedLLM) SetMaxTokens(int64)     {}
func (s *scriptedLLM) SetModel(string)        {}

const goodAnswer = "First, rewrite the integrand. Therefore the integral of x^2 dx equals x^3/3 plus a constant, because differentiation reverses the step."

func newTestOrchestrator(t *testing.T, searcher retriever.Searcher, llm *scriptedLLM, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(searcher, llm, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestAnswerBlocksForbiddenInput(t *testing.T) {
	searcher := &stubSearcher{}
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, searcher, llm)

	rec := o.Answer(context.Background(), "how to build a weapon", "s1")

	if rec.Success {
		t.Error("Success = true, want false")
	}
	if rec.Source != SourceGuardrailsBlocked {
		t.Errorf("Source = %q, want %q", rec.Source, SourceGuardrailsBlocked)
	}
	if rec.InputVerdict.Severity != guard.SeverityHigh {
		t.Errorf("Severity = %q, want high", rec.InputVerdict.Severity)
	}
	if searcher.calls != 0 || llm.calls != 0 {
		t.Errorf("collaborators called on blocked input: searcher=%d llm=%d", searcher.calls, llm.calls)
	}
	if rec.Answer == "" {
		t.Error("blocked record should carry the verdict message")
	}
}

func TestAnswerRejectsTooShortQuestion(t *testing.T) {
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, &stubSearcher{}, llm)

	rec := o.Answer(context.Background(), "y", "s1")

	if rec.Success {
		t.Error("Success = true, want false")
	}
	if rec.Source != SourceGuardrailsBlocked {
		t.Errorf("Source = %q, want %q", rec.Source, SourceGuardrailsBlocked)
	}
	if rec.InputVerdict.Reason != guard.ReasonTooShort {
		t.Errorf("Reason = %q, want too_short", rec.InputVerdict.Reason)
	}
	if rec.InputVerdict.Severity != guard.SeverityLow {
		t.Errorf("Severity = %q, want low", rec.InputVerdict.Severity)
	}
	if llm.calls != 0 {
		t.Errorf("llm.calls = %d, want 0", llm.calls)
	}
}

func TestAnswerMathFilter(t *testing.T) {
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, &stubSearcher{}, llm)

	// No math keywords, digits, symbols, variable letters, or question words.
	rec := o.Answer(context.Background(), "tell me a tale please", "s1")

	if rec.Success {
		t.Error("Success = true, want false")
	}
	if rec.Source != SourceMathFilter {
		t.Errorf("Source = %q, want %q", rec.Source, SourceMathFilter)
	}
	if rec.MathRelevance >= mathRelevanceGate {
		t.Errorf("MathRelevance = %v, want below gate", rec.MathRelevance)
	}
	if llm.calls != 0 {
		t.Errorf("llm.calls = %d, want 0", llm.calls)
	}
}

func TestAnswerFromKnowledgeBase(t *testing.T) {
	searcher := &stubSearcher{passages: []retriever.Passage{
		{Text: "The integral of x^2 is x^3/3.", Source: "calculus-notes.txt", Score: 0.8},
	}}
	web := &stubWeb{resp: &websearch.Response{Success: true}}
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, searcher, llm, WithWebSearch(web))

	rec := o.Answer(context.Background(), "Solve the integral of x^2 dx", "s1")

	if !rec.Success {
		t.Fatalf("Success = false: %+v", rec)
	}
	if rec.Source != SourceKnowledgeBase {
		t.Errorf("Source = %q, want %q", rec.Source, SourceKnowledgeBase)
	}
	if !rec.UsedKnowledgeBase || rec.UsedWeb {
		t.Errorf("UsedKnowledgeBase=%v UsedWeb=%v, want true/false", rec.UsedKnowledgeBase, rec.UsedWeb)
	}
	if rec.KBConfidence != 0.8 {
		t.Errorf("KBConfidence = %v, want 0.8", rec.KBConfidence)
	}
	if web.calls != 0 {
		t.Errorf("web.calls = %d, want 0 for a strong KB hit", web.calls)
	}
	if len(rec.Sources) != 1 || rec.Sources[0] != "calculus-notes.txt" {
		t.Errorf("Sources = %v", rec.Sources)
	}
	if !strings.Contains(llm.prompts[0], "The integral of x^2 is x^3/3.") {
		t.Errorf("prompt missing KB passage:\n%s", llm.prompts[0])
	}
}

func TestWebFallbackTriggerBoundary(t *testing.T) {
	tests := []struct {
		name      string
		passages  []retriever.Passage
		wantCalls int
	}{
		{
			name:      "score just below threshold triggers web",
			passages:  []retriever.Passage{{Text: "weak", Source: "a", Score: 0.39}},
			wantCalls: 1,
		},
		{
			name:      "score at threshold does not trigger web",
			passages:  []retriever.Passage{{Text: "ok", Source: "a", Score: 0.40}},
			wantCalls: 0,
		},
		{
			name:      "empty knowledge base triggers web",
			passages:  nil,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			web := &stubWeb{resp: &websearch.Response{Success: false}}
			llm := &scriptedLLM{replies: []string{goodAnswer}}
			o := newTestOrchestrator(t, &stubSearcher{passages: tt.passages}, llm, WithWebSearch(web))

			o.Answer(context.Background(), "Solve the integral of x^2 dx", "s1")
			if web.calls != tt.wantCalls {
				t.Errorf("web.calls = %d, want %d", web.calls, tt.wantCalls)
			}
		})
	}
}

func TestKnowledgeBaseWinsOverWebResults(t *testing.T) {
	// A weak KB hit triggers the web lookup, but context assembly must
	// still prefer the KB passage.
	searcher := &stubSearcher{passages: []retriever.Passage{
		{Text: "weak but present passage about the integral", Source: "notes.txt", Score: 0.3},
	}}
	web := &stubWeb{resp: &websearch.Response{Success: true, Results: []websearch.Result{
		{Title: "Solve the integral of x^2 dx", URL: "https://mit.edu/a", Content: "solve integral x^2 dx"},
	}}}
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, searcher, llm, WithWebSearch(web))

	rec := o.Answer(context.Background(), "Solve the integral of x^2 dx", "s1")

	if web.calls != 1 {
		t.Fatalf("web.calls = %d, want 1", web.calls)
	}
	if rec.Source != SourceKnowledgeBase {
		t.Errorf("Source = %q, want %q", rec.Source, SourceKnowledgeBase)
	}
	if !rec.UsedWeb {
		t.Error("UsedWeb = false, want true (web was fetched and validated)")
	}
	if len(rec.Sources) != 1 || rec.Sources[0] != "notes.txt" {
		t.Errorf("Sources = %v, want the KB source only", rec.Sources)
	}
}

func TestSessionFollowUp(t *testing.T) {
	llm := &scriptedLLM{replies: []string{goodAnswer, goodAnswer}}
	store := session.NewMemoryStore()
	o := newTestOrchestrator(t, &stubSearcher{}, llm, WithSessions(store))
	ctx := context.Background()

	first := o.Answer(ctx, "Solve the integral of x^2 dx", "s1")
	if !first.Success {
		t.Fatalf("first answer failed: %+v", first)
	}
	if llm.msgCounts[0] != 2 {
		t.Errorf("first call saw %d messages, want 2 (no history yet)", llm.msgCounts[0])
	}

	followUp := "What about the derivative of x^3?"
	second := o.Answer(ctx, followUp, "s1")
	if !second.Success {
		t.Fatalf("follow-up failed: %+v", second)
	}
	if llm.msgCounts[1] != 4 {
		t.Errorf("follow-up saw %d messages, want 4 (system + prior exchange + question)", llm.msgCounts[1])
	}
	if llm.prompts[1] != followUp {
		t.Errorf("follow-up prompt = %q, want the bare question", llm.prompts[1])
	}

	history, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4", len(history))
	}
	if history[0].Role != message.RoleUser || history[1].Role != message.RoleAssistant {
		t.Errorf("history roles = %q, %q, want user then assistant", history[0].Role, history[1].Role)
	}
}

func TestSessionNotUsedWithRetrievedContext(t *testing.T) {
	searcher := &stubSearcher{passages: []retriever.Passage{
		{Text: "The integral of x^2 is x^3/3 plus C.", Source: "notes.txt", Score: 0.9},
	}}
	llm := &scriptedLLM{replies: []string{goodAnswer, goodAnswer}}
	store := session.NewMemoryStore()
	o := newTestOrchestrator(t, searcher, llm, WithSessions(store))
	ctx := context.Background()

	if rec := o.Answer(ctx, "Solve the integral of x^2 dx", "s1"); !rec.Success {
		t.Fatalf("first answer failed: %+v", rec)
	}
	rec := o.Answer(ctx, "Solve the integral of x^2 dx again", "s1")
	if !rec.Success {
		t.Fatalf("second answer failed: %+v", rec)
	}
	if rec.Source != SourceKnowledgeBase {
		t.Errorf("Source = %q, want %q", rec.Source, SourceKnowledgeBase)
	}
	// Retrieved context wins over conversation history.
	if llm.msgCounts[1] != 2 {
		t.Errorf("second call saw %d messages, want 2", llm.msgCounts[1])
	}
	if !strings.Contains(llm.prompts[1], "Based on the following context") {
		t.Errorf("prompt should use the grounded form:\n%s", llm.prompts[1])
	}
}

func TestWebSearchPath(t *testing.T) {
	web := &stubWeb{resp: &websearch.Response{Success: true, Results: []websearch.Result{
		{Title: "Explain the history of zero", URL: "https://wikipedia.org/zero",
			Content: "explain the history of zero in mathematics", Trusted: true},
		{Title: "Zero history", URL: "https://mathworld.wolfram.com/zero",
			Content: "the history of zero"},
		{Title: "third", URL: "https://example.com/3", Content: "history of zero explained"},
	}}}
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, &stubSearcher{}, llm, WithWebSearch(web))

	rec := o.Answer(context.Background(), "Explain the history of zero", "s1")

	if !rec.Success {
		t.Fatalf("Success = false: %+v", rec)
	}
	if rec.Source != SourceWebSearch {
		t.Errorf("Source = %q, want %q", rec.Source, SourceWebSearch)
	}
	wantSources := []string{"https://wikipedia.org/zero", "https://mathworld.wolfram.com/zero"}
	if len(rec.Sources) != 2 || rec.Sources[0] != wantSources[0] || rec.Sources[1] != wantSources[1] {
		t.Errorf("Sources = %v, want first two URLs %v", rec.Sources, wantSources)
	}
	if !strings.Contains(llm.prompts[0], "[TRUSTED SOURCE]") {
		t.Errorf("prompt missing formatted web context:\n%s", llm.prompts[0])
	}
}

func TestIrrelevantWebResultsDiscarded(t *testing.T) {
	web := &stubWeb{resp: &websearch.Response{Success: true, Results: []websearch.Result{
		{Title: "cooking pasta", URL: "https://example.com/pasta", Content: "boil water add salt"},
	}}}
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, &stubSearcher{}, llm, WithWebSearch(web))

	rec := o.Answer(context.Background(), "Explain the history of zero", "s1")

	if rec.Source != SourceGeneralKnowledge {
		t.Errorf("Source = %q, want %q", rec.Source, SourceGeneralKnowledge)
	}
	if rec.UsedWeb {
		t.Error("UsedWeb = true, want false after overlap validation discarded results")
	}
	if len(rec.Sources) != 0 {
		t.Errorf("Sources = %v, want none", rec.Sources)
	}
}

func TestGeneralKnowledgeFallback(t *testing.T) {
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, &stubSearcher{}, llm) // web disabled

	rec := o.Answer(context.Background(), "Solve the integral of x^2 dx", "s1")

	if !rec.Success {
		t.Fatalf("Success = false: %+v", rec)
	}
	if rec.Source != SourceGeneralKnowledge {
		t.Errorf("Source = %q, want %q", rec.Source, SourceGeneralKnowledge)
	}
	if !strings.Contains(llm.prompts[0], "I couldn't find relevant information in my knowledge base") {
		t.Errorf("prompt should use the no-context form:\n%s", llm.prompts[0])
	}
}

func TestRetrievalErrorFallsThrough(t *testing.T) {
	searcher := &stubSearcher{err: stderrors.New("index offline")}
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, searcher, llm)

	rec := o.Answer(context.Background(), "Solve the integral of x^2 dx", "s1")

	if !rec.Success {
		t.Fatalf("retrieval failure must not abort the pipeline: %+v", rec)
	}
	if rec.Source != SourceGeneralKnowledge {
		t.Errorf("Source = %q, want %q", rec.Source, SourceGeneralKnowledge)
	}
}

func TestGenerationFailure(t *testing.T) {
	llm := &scriptedLLM{err: stderrors.New("provider down")}
	o := newTestOrchestrator(t, &stubSearcher{}, llm)

	rec := o.Answer(context.Background(), "Solve the integral of x^2 dx", "s1")

	if rec.Success {
		t.Error("Success = true, want false on generation failure")
	}
	if rec.Answer != generationFailureMessage {
		t.Errorf("Answer = %q, want the failure message", rec.Answer)
	}
	if rec.Source != SourceGeneralKnowledge {
		t.Errorf("Source = %q, want the chosen tier preserved", rec.Source)
	}
}

func TestSingleRegenerationOnSevereOutput(t *testing.T) {
	violating := "This explanation unfortunately mentions a weapon in its example text."
	llm := &scriptedLLM{replies: []string{violating, goodAnswer}}
	o := newTestOrchestrator(t, &stubSearcher{}, llm)

	rec := o.Answer(context.Background(), "Solve the integral of x^2 dx", "s1")

	if llm.calls != 2 {
		t.Fatalf("llm.calls = %d, want exactly 2", llm.calls)
	}
	if !strings.Contains(llm.prompts[1], safetyInstruction) {
		t.Errorf("regeneration prompt missing safety instruction:\n%s", llm.prompts[1])
	}
	if rec.Answer != goodAnswer {
		t.Errorf("Answer = %q, want regenerated answer", rec.Answer)
	}
	if !rec.OutputVerdict.Valid {
		t.Errorf("OutputVerdict = %+v, want valid after regeneration", rec.OutputVerdict)
	}
}

func TestRegenerationBoundEvenWhenStillViolating(t *testing.T) {
	violating := "This explanation unfortunately mentions a weapon in its example text."
	llm := &scriptedLLM{replies: []string{violating, violating}}
	o := newTestOrchestrator(t, &stubSearcher{}, llm)

	rec := o.Answer(context.Background(), "Solve the integral of x^2 dx", "s1")

	if llm.calls != 2 {
		t.Fatalf("llm.calls = %d, want exactly 2, never a third attempt", llm.calls)
	}
	// The failing verdict is surfaced, not hidden.
	if rec.OutputVerdict.Valid {
		t.Error("OutputVerdict.Valid = true, want the failing verdict attached")
	}
	if rec.OutputVerdict.Reason != guard.ReasonInappropriateOutput {
		t.Errorf("Reason = %q", rec.OutputVerdict.Reason)
	}
	if !rec.Success {
		t.Error("Success = false, want true; caller decides whether to display")
	}
}

func TestMediumOutputVerdictDoesNotRegenerate(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"x = 2"}} // too short, severity medium
	o := newTestOrchestrator(t, &stubSearcher{}, llm)

	rec := o.Answer(context.Background(), "Solve the integral of x^2 dx", "s1")

	if llm.calls != 1 {
		t.Fatalf("llm.calls = %d, want 1", llm.calls)
	}
	if rec.OutputVerdict.Reason != guard.ReasonResponseTooShort {
		t.Errorf("Reason = %q, want response_too_short", rec.OutputVerdict.Reason)
	}
}

func TestAnswerIdempotence(t *testing.T) {
	searcher := &stubSearcher{passages: []retriever.Passage{
		{Text: "passage", Source: "notes.txt", Score: 0.7},
	}}
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, searcher, llm)

	first := o.Answer(context.Background(), "Solve the integral of x^2 dx", "s1")
	second := o.Answer(context.Background(), "Solve the integral of x^2 dx", "s1")

	if first.Source != second.Source {
		t.Errorf("Source differs across identical calls: %q vs %q", first.Source, second.Source)
	}
	if len(first.Sources) != len(second.Sources) || first.Sources[0] != second.Sources[0] {
		t.Errorf("Sources differ: %v vs %v", first.Sources, second.Sources)
	}
}

func TestContextAssemblyRespectsTokenBudget(t *testing.T) {
	long := strings.Repeat("integral calculus passage text ", 50)
	searcher := &stubSearcher{passages: []retriever.Passage{
		{Text: long, Source: "a.txt", Score: 0.9},
		{Text: long, Source: "b.txt", Score: 0.8},
		{Text: long, Source: "c.txt", Score: 0.7},
	}}
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, searcher, llm, WithTokenBudget(200))

	rec := o.Answer(context.Background(), "Solve the integral of x^2 dx", "s1")

	if !rec.Success {
		t.Fatal("pipeline failed")
	}
	// The first passage always fits; the budget cuts the rest.
	if !strings.Contains(llm.prompts[0], "a.txt") {
		t.Error("first passage missing from context")
	}
	if strings.Contains(llm.prompts[0], "b.txt") || strings.Contains(llm.prompts[0], "c.txt") {
		t.Error("budget exceeded: later passages included")
	}
}

func TestRefine(t *testing.T) {
	store := feedback.NewMemoryStore()
	id, err := store.RecordFeedback(context.Background(), &feedback.Entry{
		Question: "what is pi", Response: "about 3", Source: string(SourceGeneralKnowledge),
	})
	if err != nil {
		t.Fatal(err)
	}

	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, &stubSearcher{}, llm, WithFeedback(store))

	res, err := o.Refine(context.Background(), "what is pi", "about 3", "please give more digits and context", id)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if !res.Success || res.RefinedAnswer != goodAnswer {
		t.Errorf("result = %+v", res)
	}

	p := llm.prompts[0]
	for _, want := range []string{
		"Original Question: what is pi",
		"Original Answer: about 3",
		"User Feedback: please give more digits and context",
		"1. Address the specific concerns mentioned",
		"4. Maintain mathematical accuracy",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("refinement prompt missing %q:\n%s", want, p)
		}
	}

	exp, _ := store.Export(context.Background())
	if len(exp.Refinements) != 1 {
		t.Fatalf("refinements stored = %d, want 1", len(exp.Refinements))
	}
	if exp.Refinements[0].FeedbackID != id || exp.Refinements[0].Response != goodAnswer {
		t.Errorf("stored refinement = %+v", exp.Refinements[0])
	}
}

func TestRefineWithoutFeedbackID(t *testing.T) {
	store := feedback.NewMemoryStore()
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, &stubSearcher{}, llm, WithFeedback(store))

	res, err := o.Refine(context.Background(), "q", "a", "better please", 0)
	if err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if res.RefinedAnswer != goodAnswer {
		t.Errorf("RefinedAnswer = %q", res.RefinedAnswer)
	}

	exp, _ := store.Export(context.Background())
	if len(exp.Refinements) != 0 {
		t.Errorf("store touched without a feedback id: %+v", exp.Refinements)
	}
}

// failingStore errors on every call.
type failingStore struct{ feedback.Store }

func (failingStore) StoreRefinement(context.Context, int64, string, string) error {
	return stderrors.New("db offline")
}

func TestRefinePersistenceFailureIsSwallowed(t *testing.T) {
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, &stubSearcher{}, llm, WithFeedback(failingStore{}))

	res, err := o.Refine(context.Background(), "q", "a", "better please", 7)
	if err != nil {
		t.Fatalf("persistence failure must not surface: %v", err)
	}
	if res.RefinedAnswer != goodAnswer {
		t.Errorf("RefinedAnswer = %q", res.RefinedAnswer)
	}
}

// countingSearcher adds corpus size reporting to the stub.
type countingSearcher struct {
	stubSearcher
	count int
}

func (c *countingSearcher) Count(ctx context.Context) (int, error) { return c.count, nil }

func TestSystemHealth(t *testing.T) {
	store := feedback.NewMemoryStore()
	rating := 5
	if _, err := store.RecordFeedback(context.Background(), &feedback.Entry{
		Question: "q", Response: "a", Source: string(SourceKnowledgeBase), Rating: &rating,
	}); err != nil {
		t.Fatal(err)
	}

	searcher := &countingSearcher{count: 42}
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	web := &stubWeb{resp: &websearch.Response{Success: false}}
	o := newTestOrchestrator(t, searcher, llm, WithWebSearch(web), WithFeedback(store))

	h := o.SystemHealth(context.Background())

	if h.KnowledgeBase.Status != "active" || h.KnowledgeBase.DocumentCount != 42 {
		t.Errorf("KnowledgeBase = %+v", h.KnowledgeBase)
	}
	if h.Components["web_search"] != "active" || h.Components["feedback_system"] != "active" {
		t.Errorf("Components = %v", h.Components)
	}
	if h.Feedback == nil || h.Feedback.Total != 1 {
		t.Errorf("Feedback = %+v", h.Feedback)
	}
	if h.Insights == nil {
		t.Error("Insights missing")
	}
}

func TestSystemHealthEmptyKnowledgeBase(t *testing.T) {
	searcher := &countingSearcher{count: 0}
	llm := &scriptedLLM{replies: []string{goodAnswer}}
	o := newTestOrchestrator(t, searcher, llm)

	h := o.SystemHealth(context.Background())
	if h.KnowledgeBase.Status != "empty" {
		t.Errorf("Status = %q, want empty", h.KnowledgeBase.Status)
	}
	if h.Components["web_search"] != "disabled" || h.Components["feedback_system"] != "disabled" {
		t.Errorf("Components = %v", h.Components)
	}
}
