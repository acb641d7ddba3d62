package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequestHeadersAndBody(t *testing.T) {
	var gotHeaders http.Header
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"connected": true}`))
	}))
	defer srv.Close()

	c := New(2*time.Second, "secret-bearer")
	resp, err := c.Request(context.Background(), http.MethodPost, srv.URL, "TOKEN123", map[string]any{"token": "TOKEN123"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	if !resp.OK() {
		t.Fatalf("expected 2xx, got %d", resp.Status)
	}
	if got := gotHeaders.Get("X-Bridge-Token"); got != "TOKEN123" {
		t.Fatalf("token header = %q", got)
	}
	if got := gotHeaders.Get("Authorization"); got != "Bearer secret-bearer" {
		t.Fatalf("authorization header = %q", got)
	}
	if got := gotHeaders.Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q", got)
	}
	if gotBody["token"] != "TOKEN123" {
		t.Fatalf("payload = %v", gotBody)
	}
	if v, ok := resp.Body["connected"].(bool); !ok || !v {
		t.Fatalf("parsed body = %v", resp.Body)
	}
}

func TestRequestOmitsAbsentCredentials(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(2*time.Second, "")
	resp, err := c.Request(context.Background(), http.MethodGet, srv.URL, "", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.Body != nil {
		t.Fatalf("expected nil body for 204, got %v", resp.Body)
	}
	if _, ok := gotHeaders["X-Bridge-Token"]; ok {
		t.Fatal("token header attached without a token")
	}
	if _, ok := gotHeaders["Authorization"]; ok {
		t.Fatal("bearer header attached without a credential")
	}
}

func TestRequestNonObjectBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[1,2,3]`))
	}))
	defer srv.Close()

	c := New(2*time.Second, "")
	resp, err := c.Request(context.Background(), http.MethodGet, srv.URL, "", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.Body != nil {
		t.Fatalf("array body should not parse to an object: %v", resp.Body)
	}
	if string(resp.Raw) != "[1,2,3]" {
		t.Fatalf("raw body = %q", resp.Raw)
	}
}

func TestRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(50*time.Millisecond, "")
	_, err := c.Request(context.Background(), http.MethodGet, srv.URL, "", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}
