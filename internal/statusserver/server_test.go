package statusserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opensquawk/simbridge/internal/bridge/runtime"
)

type fixedProvider struct {
	status runtime.Status
}

func (f *fixedProvider) Status() runtime.Status { return f.status }

func TestHealthz(t *testing.T) {
	srv := New("127.0.0.1:0", &fixedProvider{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz = %d", resp.StatusCode)
	}
}

func TestReadyzTracksActivity(t *testing.T) {
	provider := &fixedProvider{}
	srv := New("127.0.0.1:0", provider)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("idle readyz = %d, want 503", resp.StatusCode)
	}

	provider.status.Active = true
	resp, err = http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("active readyz = %d, want 200", resp.StatusCode)
	}
}

func TestStatusDocument(t *testing.T) {
	provider := &fixedProvider{status: runtime.Status{
		Provider: "synthetic",
		Token:    "TOK",
		Linked:   true,
		Account:  "pilot7",
		Cadence:  "active",
	}}
	srv := New("127.0.0.1:0", provider)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got runtime.Status
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Account != "pilot7" || got.Cadence != "active" || !got.Linked {
		t.Fatalf("status document = %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := New("127.0.0.1:0", &fixedProvider{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}
}
