package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func geminiReply(t *testing.T, text string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiExtractor {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGeminiExtractor(GeminiOptions{APIKey: "test-key", Model: "test-model", BaseURL: server.URL})
}

func TestGeminiExtractor_Disabled(t *testing.T) {
	svc := NewGeminiExtractor(GeminiOptions{})
	if svc.IsEnabled() {
		t.Error("IsEnabled() = true without an API key")
	}
	if _, err := svc.ExtractAttributes(context.Background(), []byte("img"), "image/png"); !errors.Is(err, ErrGeminiDisabled) {
		t.Errorf("error = %v, want ErrGeminiDisabled", err)
	}
}

func TestGeminiExtractor_ExtractAttributes(t *testing.T) {
	var calls atomic.Int32
	image := []byte("fake-png-bytes")
	reply := geminiReply(t, `{"name": "Pikachu", "set_name": "Base Set", "number": "58/102", "card_type": "pokemon_front"}`)

	svc := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/models/test-model:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		inline := req.Contents[0].Parts[0].InlineData
		if inline == nil || inline.MimeType != "image/png" || inline.Data != base64.StdEncoding.EncodeToString(image) {
			t.Errorf("inline data = %+v", inline)
		}
		if req.GenerationConfig.ResponseMimeType != "application/json" {
			t.Errorf("responseMimeType = %q", req.GenerationConfig.ResponseMimeType)
		}
		w.Write(reply)
	})

	if !svc.IsEnabled() {
		t.Fatal("IsEnabled() = false with an API key")
	}

	attrs, err := svc.ExtractAttributes(context.Background(), image, "image/png")
	if err != nil {
		t.Fatalf("ExtractAttributes() error = %v", err)
	}
	if attrs.Name != "Pikachu" || attrs.SetName != "Base Set" || attrs.Number != "58/102" {
		t.Errorf("attrs = %+v", attrs)
	}

	// Same image again comes from the cache.
	if _, err := svc.ExtractAttributes(context.Background(), image, "image/png"); err != nil {
		t.Fatalf("cached ExtractAttributes() error = %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server called %d times, want 1", calls.Load())
	}
}

func TestGeminiExtractor_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"api status", http.StatusInternalServerError, `{"error": "boom"}`, nil},
		{"error object", http.StatusOK, `{"error": {"code": 400, "message": "bad image"}}`, nil},
		{"no candidates", http.StatusOK, `{"candidates": []}`, nil},
		{"malformed response", http.StatusOK, `{"candidates": [`, nil},
		{"no attributes in text", http.StatusOK, string(geminiReply(t, "I don't know")), ErrNoExtraction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := svc.ExtractAttributes(context.Background(), []byte("img"), "")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("empty image", func(t *testing.T) {
		svc := NewGeminiExtractor(GeminiOptions{APIKey: "test-key"})
		if _, err := svc.ExtractAttributes(context.Background(), nil, "image/png"); err == nil {
			t.Error("expected error for empty image")
		}
	})
}
