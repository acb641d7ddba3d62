// Package options aggregates the squawk-bridge configuration blocks.
package options

import (
	"errors"

	"github.com/spf13/pflag"

	"github.com/opensquawk/simbridge/internal/bridge/runtime"
	"github.com/opensquawk/simbridge/internal/simsource/mqttsource"
	"github.com/opensquawk/simbridge/internal/simsource/synthetic"
	"github.com/opensquawk/simbridge/pkg/log"
	"github.com/opensquawk/simbridge/pkg/options"
)

// BridgeOptions is the full option set of the squawk-bridge command.
type BridgeOptions struct {
	Backend *options.BackendOptions `json:"backend" mapstructure:"backend"`
	Bridge  *options.BridgeOptions  `json:"bridge" mapstructure:"bridge"`
	Sim     *options.SimOptions     `json:"sim" mapstructure:"sim"`
	Mqtt    *options.MqttOptions    `json:"mqtt" mapstructure:"mqtt"`
	Serve   *options.ServeOptions   `json:"serve" mapstructure:"serve"`
	Log     *log.Options            `json:"log" mapstructure:"log"`
}

// NewBridgeOptions builds the option set with defaults.
func NewBridgeOptions() *BridgeOptions {
	return &BridgeOptions{
		Backend: options.NewBackendOptions(),
		Bridge:  options.NewBridgeOptions(),
		Sim:     options.NewSimOptions(),
		Mqtt:    options.NewMqttOptions(),
		Serve:   options.NewServeOptions(),
		Log:     log.NewOptions(),
	}
}

// AddFlags binds every block to the flag set.
func (o *BridgeOptions) AddFlags(fs *pflag.FlagSet) {
	o.Backend.AddFlags(fs)
	o.Bridge.AddFlags(fs)
	o.Sim.AddFlags(fs)
	o.Mqtt.AddFlags(fs)
	o.Serve.AddFlags(fs)
	o.Log.AddFlags(fs)
}

// Complete fills in values derived from other options.
func (o *BridgeOptions) Complete() error {
	return nil
}

// Validate collects every block's validation errors.
func (o *BridgeOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.Backend.Validate()...)
	errs = append(errs, o.Bridge.Validate()...)
	errs = append(errs, o.Sim.Validate()...)
	errs = append(errs, o.Mqtt.Validate()...)
	errs = append(errs, o.Serve.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return errors.Join(errs...)
}

// RuntimeConfig maps the options onto the bridge runtime configuration.
func (o *BridgeOptions) RuntimeConfig() runtime.Config {
	return runtime.Config{
		MeURL:             o.Backend.ResolvedMeURL(),
		StatusURL:         o.Backend.ResolvedStatusURL(),
		TelemetryURL:      o.Backend.ResolvedTelemetryURL(),
		LoginBase:         o.Backend.LoginBase(),
		PollInterval:      o.Bridge.PollInterval,
		SampleInterval:    o.Bridge.SampleInterval,
		ActiveInterval:    o.Bridge.ActiveInterval,
		IdleInterval:      o.Bridge.IdleInterval,
		Staleness:         o.Bridge.Staleness,
		DiagURL:           o.Backend.ResolvedDiagURL(),
		DiagInterval:      o.Backend.DiagInterval,
		EnableDiagnostics: o.Backend.EnableDiagnostics,
	}
}

// SourceConfig returns the provider-specific configuration for the
// selected telemetry source.
func (o *BridgeOptions) SourceConfig() any {
	switch o.Sim.Provider {
	case mqttsource.ProviderName:
		return o.Mqtt.ToSourceConfig()
	case synthetic.ProviderName:
		return nil
	default:
		return nil
	}
}
