package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEnhanceQuery(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"quadratic formula", "mathematics quadratic formula explanation"},
		{"how to integrate by parts", "how to integrate by parts"},
		{"math induction", "math induction"},
	}
	for _, tt := range tests {
		if got := enhanceQuery(tt.input); got != tt.want {
			t.Errorf("enhanceQuery(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestRankResults(t *testing.T) {
	results := []Result{
		{Title: "random blog", URL: "https://someblog.example.com/post"},
		{Title: "quadratic tutorial", URL: "https://khanacademy.org/quadratics", Snippet: "step by step guide"},
		{Title: "forum thread", URL: "https://mathforum.example.com/thread", Snippet: "equation talk"},
	}

	ranked := rankResults(results)
	if ranked[0].URL != "https://khanacademy.org/quadratics" {
		t.Errorf("top result = %s, want trusted tutorial", ranked[0].URL)
	}
	if ranked[len(ranked)-1].URL != "https://mathforum.example.com/thread" {
		t.Errorf("bottom result = %s, want penalized forum", ranked[len(ranked)-1].URL)
	}
}

func TestIsTrustedDomain(t *testing.T) {
	if !isTrustedDomain("https://en.wikipedia.org/wiki/Derivative") {
		t.Error("wikipedia should be trusted")
	}
	if isTrustedDomain("https://random.example.com/math") {
		t.Error("unknown domain should not be trusted")
	}
}

func TestValidateAnswerExists(t *testing.T) {
	results := []Result{{
		Title:   "Solving quadratic equations",
		Snippet: "use the quadratic formula",
		Content: "the roots of a quadratic equation are given by the formula",
	}}

	if !ValidateAnswerExists("quadratic equation formula", results) {
		t.Error("expected overlap validation to pass")
	}
	if ValidateAnswerExists("riemann zeta hypothesis zeros", results) {
		t.Error("expected overlap validation to fail for unrelated query")
	}
	if ValidateAnswerExists("anything", nil) {
		t.Error("expected false for empty results")
	}
}

func TestFormatContext(t *testing.T) {
	if FormatContext(nil) != "" {
		t.Error("expected empty context for no results")
	}

	ctx := FormatContext([]Result{
		{Title: "A", URL: "https://mit.edu/a", Content: "alpha", Trusted: true},
		{Title: "B", URL: "https://example.com/b", Snippet: "beta"},
	})

	if !strings.Contains(ctx, "Source 1 [TRUSTED SOURCE]:") {
		t.Errorf("missing trusted badge:\n%s", ctx)
	}
	if !strings.Contains(ctx, "Source 2:\n") {
		t.Errorf("missing untrusted source header:\n%s", ctx)
	}
	// Falls back to the snippet when extraction produced no content.
	if !strings.Contains(ctx, "Content: beta") {
		t.Errorf("missing snippet fallback:\n%s", ctx)
	}
}

func TestResolveRedirect(t *testing.T) {
	got := resolveRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Fwikipedia.org%2Fwiki%2FMatrix")
	if got != "https://wikipedia.org/wiki/Matrix" {
		t.Errorf("resolveRedirect = %q", got)
	}
	if got := resolveRedirect("https://direct.example.com/x"); got != "https://direct.example.com/x" {
		t.Errorf("direct URL changed: %q", got)
	}
}

func TestSearchEndToEnd(t *testing.T) {
	mux := http.NewServeMux()

	var pageURL string
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<nav>skip this</nav>
			<p>The derivative measures the rate of change of a function.</p>
			<script>ignore()</script>
		</body></html>`)
	})
	mux.HandleFunc("/html/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<div class="result">
				<a class="result__a" href="%s">Derivative tutorial</a>
				<a class="result__snippet">rate of change explanation</a>
			</div>
		</body></html>`, pageURL)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()
	pageURL = srv.URL + "/page"

	agent := New(
		WithSearchURL(srv.URL+"/html/"),
		WithHTTPClient(srv.Client()),
	)

	resp := agent.Search(context.Background(), "what is a derivative")
	if !resp.Success {
		t.Fatalf("Search failed: %s", resp.Message)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(resp.Results))
	}
	r := resp.Results[0]
	if r.Title != "Derivative tutorial" {
		t.Errorf("Title = %q", r.Title)
	}
	if !strings.Contains(r.Content, "rate of change") {
		t.Errorf("Content = %q, want extracted paragraph", r.Content)
	}
	if strings.Contains(r.Content, "skip this") || strings.Contains(r.Content, "ignore()") {
		t.Errorf("Content contains chrome or script text: %q", r.Content)
	}
}

func TestSearchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	agent := New(WithSearchURL(srv.URL+"/html/"), WithHTTPClient(srv.Client()))
	resp := agent.Search(context.Background(), "2+2")
	if resp.Success {
		t.Fatal("expected Success=false on transport failure")
	}
	if resp.Message == "" {
		t.Error("expected failure message")
	}
}

func TestSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>no results here</body></html>")
	}))
	defer srv.Close()

	agent := New(WithSearchURL(srv.URL+"/html/"), WithHTTPClient(srv.Client()))
	resp := agent.Search(context.Background(), "unfindable")
	if resp.Success {
		t.Fatal("expected Success=false when nothing matched")
	}
	if resp.Message != "No search results found" {
		t.Errorf("Message = %q", resp.Message)
	}
}
