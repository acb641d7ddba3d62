package options

import (
	"testing"
	"time"
)

func TestBackendURLDerivation(t *testing.T) {
	o := NewBackendOptions()
	o.BaseURL = "https://opensquawk.de/"

	tests := []struct {
		got, want string
	}{
		{o.ResolvedMeURL(), "https://opensquawk.de/api/bridge/me"},
		{o.ResolvedStatusURL(), "https://opensquawk.de/api/bridge/status"},
		{o.ResolvedTelemetryURL(), "https://opensquawk.de/api/bridge/data"},
		{o.ResolvedDiagURL(), "https://opensquawk.de/api/bridge/diagnostics"},
		{o.LoginBase(), "https://opensquawk.de/bridge/connect"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("derived URL = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestBackendURLOverrides(t *testing.T) {
	o := NewBackendOptions()
	o.TelemetryURL = "https://staging.opensquawk.de/ingest"

	if got := o.ResolvedTelemetryURL(); got != "https://staging.opensquawk.de/ingest" {
		t.Fatalf("override lost: %q", got)
	}
	if got := o.ResolvedMeURL(); got != "https://opensquawk.de/api/bridge/me" {
		t.Fatalf("unrelated endpoint changed: %q", got)
	}
}

func TestBackendValidate(t *testing.T) {
	o := NewBackendOptions()
	if errs := o.Validate(); len(errs) != 0 {
		t.Fatalf("defaults must validate: %v", errs)
	}

	o.MeURL = "not a url"
	o.Timeout = -time.Second
	if errs := o.Validate(); len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}

func TestBridgeValidateRejectsNonPositiveIntervals(t *testing.T) {
	o := NewBridgeOptions()
	if errs := o.Validate(); len(errs) != 0 {
		t.Fatalf("defaults must validate: %v", errs)
	}

	o.Staleness = 0
	o.PollInterval = -time.Second
	if errs := o.Validate(); len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}
