package insight

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientGenerate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
				t.Errorf("Authorization = %q", got)
			}
			var req Request
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req.Type != "summary" {
				t.Errorf("type = %q, want summary", req.Type)
			}
			w.Write([]byte(`{"response": "a good lesson"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "key-1", 5*time.Second)
		text, err := c.Generate(context.Background(), Request{Type: "summary", Context: "ctx"})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if text != "a good lesson" {
			t.Errorf("text = %q", text)
		}
	})

	t.Run("list_response_joined", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"response": ["revisit fractions", "slow down on step two"]}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "", 5*time.Second)
		text, err := c.Generate(context.Background(), Request{Type: "review_points"})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if text != "revisit fractions\nslow down on step two" {
			t.Errorf("text = %q", text)
		}
	})

	t.Run("error_payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"error": "model unavailable"}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "", 5*time.Second)
		_, err := c.Generate(context.Background(), Request{Type: "summary"})
		if err == nil || !strings.Contains(err.Error(), "model unavailable") {
			t.Errorf("err = %v, want error mentioning model unavailable", err)
		}
	})

	t.Run("empty_response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"response": "  "}`))
		}))
		defer srv.Close()

		c := NewClient(srv.URL, "", 5*time.Second)
		if _, err := c.Generate(context.Background(), Request{Type: "summary"}); err == nil {
			t.Error("expected error for empty response")
		}
	})
}
