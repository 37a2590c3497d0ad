// Package guard applies content policy to user questions and generated
// answers. All checks are pure functions of the text, so the same guard
// can run on both sides of the generation step.
package guard

import (
	"regexp"
	"strings"
)

// Severity grades how strongly a verdict should be acted on.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ReasonCode identifies why a verdict was produced.
type ReasonCode string

const (
	ReasonValid               ReasonCode = "valid"
	ReasonForbiddenContent    ReasonCode = "inappropriate_content"
	ReasonTooShort            ReasonCode = "too_short"
	ReasonNegativeTone        ReasonCode = "negative_tone"
	ReasonLowMathRelevance    ReasonCode = "low_math_relevance"
	ReasonResponseTooShort    ReasonCode = "response_too_short"
	ReasonInappropriateOutput ReasonCode = "inappropriate_output"
)

// Verdict is the result of validating a piece of text.
type Verdict struct {
	Valid    bool       `json:"valid"`
	Reason   ReasonCode `json:"reason"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	// Score carries the raw keyword count for input verdicts and the
	// quality score (0-3) for output verdicts.
	Score float64 `json:"score,omitempty"`
	// Warning marks advisory verdicts that pass validation but should
	// be surfaced to the user.
	Warning bool `json:"warning,omitempty"`
}

// Guard validates text against the mathematics-education content policy.
type Guard struct {
	mathKeywords      map[string]struct{}
	forbiddenKeywords []string
	refusalPhrases    []string
	connectives       []string
	questionWords     []string
}

var (
	digitPattern    = regexp.MustCompile(`[0-9]`)
	symbolPattern   = regexp.MustCompile(`[+\-*/=<>^≤≥≠∞∑∏∫√π]`)
	variablePattern = regexp.MustCompile(`[xyzn]|f\(|g\(`)
)

// New creates a guard with the built-in topic vocabulary and denylist.
func New() *Guard {
	mathKeywords := []string{
		"algebra", "calculus", "geometry", "trigonometry", "statistics",
		"probability", "equation", "derivative", "integral", "matrix",
		"vector", "function", "theorem", "proof", "solve", "calculate",
		"graph", "formula", "number", "polynomial", "exponential",
		"logarithm", "differential", "limit", "series", "sequence",
		"angle", "triangle", "circle", "sine", "cosine", "tangent",
		"mean", "median", "variance", "distribution", "regression",
		"topology", "analysis", "linear", "optimization", "pi", "ratio",
	}
	keywordSet := make(map[string]struct{}, len(mathKeywords))
	for _, kw := range mathKeywords {
		keywordSet[kw] = struct{}{}
	}

	return &Guard{
		mathKeywords: keywordSet,
		forbiddenKeywords: []string{
			"violence", "weapon", "hate", "explicit", "illegal", "drug",
			"nsfw", "adult", "harmful", "suicide", "bomb", "kill",
		},
		refusalPhrases: []string{
			"i don't know", "i cannot", "i'm not sure", "i don't have",
			"cannot determine", "insufficient information",
		},
		connectives: []string{
			"because", "therefore", "thus", "hence", "since", "which means",
			"step", "first", "second", "next", "finally", "explanation",
		},
		questionWords: []string{
			"what", "how", "why", "when", "where", "solve", "find", "calculate", "prove",
		},
	}
}

// ValidateInput checks a user question against the content policy.
// Only SeverityHigh verdicts are hard stops; everything else is advisory.
func (g *Guard) ValidateInput(input string) Verdict {
	lower := strings.ToLower(input)

	if g.containsForbidden(lower) {
		return Verdict{
			Valid:    false,
			Reason:   ReasonForbiddenContent,
			Severity: SeverityHigh,
			Message:  "I can only help with mathematics education. Please ask a math-related question.",
		}
	}

	keywordHits := g.countMathKeywords(lower)

	if len(strings.TrimSpace(input)) < 5 {
		return Verdict{
			Valid:    false,
			Reason:   ReasonTooShort,
			Severity: SeverityLow,
			Message:  "Please provide a more detailed question.",
		}
	}

	if polarity(input) < -0.5 {
		return Verdict{
			Valid:    false,
			Reason:   ReasonNegativeTone,
			Severity: SeverityMedium,
			Message:  "Please rephrase your question in a respectful manner.",
		}
	}

	if keywordHits == 0 && !ContainsMathPattern(input) {
		return Verdict{
			Valid:    true,
			Reason:   ReasonLowMathRelevance,
			Severity: SeverityLow,
			Message:  "This doesn't seem to be a math question. I'm optimized for mathematics education.",
			Warning:  true,
		}
	}

	return Verdict{
		Valid:    true,
		Reason:   ReasonValid,
		Severity: SeverityNone,
		Message:  "Input validated successfully",
		Score:    float64(keywordHits),
	}
}

// ValidateOutput checks a generated answer for degenerate or policy-violating
// content and attaches an informational quality score (0-3).
func (g *Guard) ValidateOutput(response string) Verdict {
	lower := strings.ToLower(response)

	if len(strings.TrimSpace(response)) < 20 {
		return Verdict{
			Valid:    false,
			Reason:   ReasonResponseTooShort,
			Severity: SeverityMedium,
			Message:  "Generated response is too short.",
		}
	}

	if g.containsForbidden(lower) {
		return Verdict{
			Valid:    false,
			Reason:   ReasonInappropriateOutput,
			Severity: SeverityHigh,
			Message:  "Response contains inappropriate content.",
		}
	}

	quality := 0
	if containsAny(lower, g.connectives) {
		quality++
	}
	if len(response) > 100 {
		quality++
	}
	if !containsAny(lower, g.refusalPhrases) {
		quality++
	}

	return Verdict{
		Valid:    true,
		Reason:   ReasonValid,
		Severity: SeverityNone,
		Message:  "Output validated successfully",
		Score:    float64(quality),
	}
}

// MathRelevance scores how mathematics-related the text is, returning the
// boolean classification and a confidence in [0, 1]. Keyword density
// contributes up to 0.6, numeric/symbolic patterns 0.3, and an
// interrogative or imperative math verb 0.1.
func (g *Guard) MathRelevance(text string) (bool, float64) {
	lower := strings.ToLower(text)

	confidence := 0.0
	if hits := g.countMathKeywords(lower); hits > 0 {
		confidence += min(float64(hits)*0.2, 0.6)
	}
	if ContainsMathPattern(text) {
		confidence += 0.3
	}
	if containsAny(lower, g.questionWords) {
		confidence += 0.1
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return confidence > 0.3, confidence
}

// ContainsMathPattern reports whether the text carries digits, math
// operators or comparators, common variable letters, or function call
// notation. The variable match is deliberately a bare substring check;
// tightening it to word boundaries starves the relevance score on
// questions like "explain the history of zero".
func ContainsMathPattern(text string) bool {
	return digitPattern.MatchString(text) ||
		symbolPattern.MatchString(text) ||
		variablePattern.MatchString(text)
}

func (g *Guard) containsForbidden(lower string) bool {
	return containsAny(lower, g.forbiddenKeywords)
}

func (g *Guard) countMathKeywords(lower string) int {
	hits := 0
	for kw := range g.mathKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return hits
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
