package options

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*BackendOptions)(nil)

// BackendOptions configures the OpenSquawk backend connection. The four
// endpoint URLs each default to a fixed path under the base URL and can
// be overridden individually.
type BackendOptions struct {
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	MeURL        string `json:"me-url" mapstructure:"me-url"`
	StatusURL    string `json:"status-url" mapstructure:"status-url"`
	TelemetryURL string `json:"telemetry-url" mapstructure:"telemetry-url"`
	DiagURL      string `json:"diag-url" mapstructure:"diag-url"`

	// Bearer is an optional credential attached as an Authorization
	// header, independent of the bridge token header.
	Bearer string `json:"bearer" mapstructure:"bearer"`

	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	EnableDiagnostics bool          `json:"enable-diagnostics" mapstructure:"enable-diagnostics"`
	DiagInterval      time.Duration `json:"diag-interval" mapstructure:"diag-interval"`
}

// NewBackendOptions creates a BackendOptions object with default parameters.
func NewBackendOptions() *BackendOptions {
	return &BackendOptions{
		BaseURL:      "https://opensquawk.de",
		Timeout:      10 * time.Second,
		DiagInterval: 60 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *BackendOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	for name, value := range map[string]string{
		"backend.base-url":      o.BaseURL,
		"backend.me-url":        o.MeURL,
		"backend.status-url":    o.StatusURL,
		"backend.telemetry-url": o.TelemetryURL,
		"backend.diag-url":      o.DiagURL,
	} {
		if value == "" {
			continue
		}
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Errorf("%s: %q is not an absolute URL", name, value))
		}
	}

	if o.Timeout <= 0 {
		errors = append(errors, fmt.Errorf("backend.timeout must be positive, got %v", o.Timeout))
	}
	if o.EnableDiagnostics && o.DiagURL == "" && o.BaseURL == "" {
		errors = append(errors, fmt.Errorf("backend.enable-diagnostics requires a diagnostics endpoint"))
	}

	return errors
}

// AddFlags adds flags for BackendOptions to the specified FlagSet.
func (o *BackendOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.BaseURL, "backend.base-url", o.BaseURL, "Base URL of the OpenSquawk backend.")
	fs.StringVar(&o.MeURL, "backend.me-url", o.MeURL, "Pairing-check endpoint (defaults to <base>/api/bridge/me).")
	fs.StringVar(&o.StatusURL, "backend.status-url", o.StatusURL, "Status heartbeat endpoint (defaults to <base>/api/bridge/status).")
	fs.StringVar(&o.TelemetryURL, "backend.telemetry-url", o.TelemetryURL, "Telemetry endpoint (defaults to <base>/api/bridge/data).")
	fs.StringVar(&o.DiagURL, "backend.diag-url", o.DiagURL, "Diagnostics endpoint (defaults to <base>/api/bridge/diagnostics).")
	fs.StringVar(&o.Bearer, "backend.bearer", o.Bearer, "Optional bearer credential for the backend.")
	fs.DurationVar(&o.Timeout, "backend.timeout", o.Timeout, "Hard per-request timeout.")
	fs.BoolVar(&o.EnableDiagnostics, "backend.enable-diagnostics", o.EnableDiagnostics, "Push runtime diagnostics to the backend.")
	fs.DurationVar(&o.DiagInterval, "backend.diag-interval", o.DiagInterval, "Diagnostics push interval.")
}

func (o *BackendOptions) base() string {
	return strings.TrimRight(o.BaseURL, "/")
}

// ResolvedMeURL returns the pairing-check endpoint.
func (o *BackendOptions) ResolvedMeURL() string {
	if o.MeURL != "" {
		return o.MeURL
	}
	return o.base() + "/api/bridge/me"
}

// ResolvedStatusURL returns the heartbeat endpoint.
func (o *BackendOptions) ResolvedStatusURL() string {
	if o.StatusURL != "" {
		return o.StatusURL
	}
	return o.base() + "/api/bridge/status"
}

// ResolvedTelemetryURL returns the telemetry endpoint.
func (o *BackendOptions) ResolvedTelemetryURL() string {
	if o.TelemetryURL != "" {
		return o.TelemetryURL
	}
	return o.base() + "/api/bridge/data"
}

// ResolvedDiagURL returns the diagnostics endpoint.
func (o *BackendOptions) ResolvedDiagURL() string {
	if o.DiagURL != "" {
		return o.DiagURL
	}
	return o.base() + "/api/bridge/diagnostics"
}

// LoginBase returns the page a user visits to claim a token; the runtime
// appends ?token=.
func (o *BackendOptions) LoginBase() string {
	return o.base() + "/bridge/connect"
}
