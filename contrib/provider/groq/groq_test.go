package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mathsage/mathsage/message"
)

func TestGenerate(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: "x^3/3 + C"}}},
		})
	}))
	defer srv.Close()

	cfg := DefaultConfig("test-key")
	cfg.BaseURL = srv.URL
	p := New(cfg)

	resp, err := p.Generate(context.Background(), []*message.Message{
		message.NewMessage(message.RoleSystem, "you are a professor"),
		message.NewMessage(message.RoleUser, "integrate x^2"),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "x^3/3 + C" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Role != message.RoleAssistant {
		t.Errorf("Role = %q", resp.Role)
	}

	if gotReq.Model != "llama-3.3-70b-versatile" {
		t.Errorf("Model = %q", gotReq.Model)
	}
	if gotReq.Temperature != 0.3 || gotReq.TopP != 0.9 || gotReq.MaxTokens != 2048 {
		t.Errorf("sampling params = %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("Messages = %+v", gotReq.Messages)
	}
}

func TestGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chatResponse{Error: &apiError{Message: "rate limited", Type: "rate_limit"}})
	}))
	defer srv.Close()

	cfg := DefaultConfig("test-key")
	cfg.BaseURL = srv.URL
	p := New(cfg)

	if _, err := p.Generate(context.Background(), []*message.Message{
		message.NewMessage(message.RoleUser, "q"),
	}); err == nil {
		t.Fatal("expected API error")
	}
}

func TestGenerateRequiresKey(t *testing.T) {
	p := New(&Config{})
	if _, err := p.Generate(context.Background(), nil); err == nil {
		t.Fatal("expected missing-key error")
	}
}

func TestSetters(t *testing.T) {
	p := New(DefaultConfig("k"))
	p.SetTemperature(0.9)
	p.SetMaxTokens(512)
	p.SetModel("other-model")
	if p.config.Temperature != 0.9 || p.config.MaxTokens != 512 || p.config.Model != "other-model" {
		t.Errorf("config = %+v", p.config)
	}
}
