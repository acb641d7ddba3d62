package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*BridgeOptions)(nil)

// BridgeOptions configures the bridge runtime cadences and local state.
type BridgeOptions struct {
	// StateFile holds the pairing token between runs.
	StateFile string `json:"state-file" mapstructure:"state-file"`

	ActiveInterval time.Duration `json:"active-interval" mapstructure:"active-interval"`
	IdleInterval   time.Duration `json:"idle-interval" mapstructure:"idle-interval"`
	PollInterval   time.Duration `json:"poll-interval" mapstructure:"poll-interval"`
	SampleInterval time.Duration `json:"sample-interval" mapstructure:"sample-interval"`
	Staleness      time.Duration `json:"staleness" mapstructure:"staleness"`
}

// NewBridgeOptions creates a BridgeOptions object with default parameters.
func NewBridgeOptions() *BridgeOptions {
	return &BridgeOptions{
		StateFile:      "bridge-config.json",
		ActiveInterval: 30 * time.Second,
		IdleInterval:   120 * time.Second,
		PollInterval:   10 * time.Second,
		SampleInterval: time.Second,
		Staleness:      10 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *BridgeOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	for name, value := range map[string]time.Duration{
		"bridge.active-interval": o.ActiveInterval,
		"bridge.idle-interval":   o.IdleInterval,
		"bridge.poll-interval":   o.PollInterval,
		"bridge.sample-interval": o.SampleInterval,
		"bridge.staleness":       o.Staleness,
	} {
		if value <= 0 {
			errors = append(errors, fmt.Errorf("%s must be positive, got %v", name, value))
		}
	}

	return errors
}

// AddFlags adds flags for BridgeOptions to the specified FlagSet.
func (o *BridgeOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.StateFile, "bridge.state-file", o.StateFile, "Path of the token state file.")
	fs.DurationVar(&o.ActiveInterval, "bridge.active-interval", o.ActiveInterval, "Telemetry push interval while a flight is active.")
	fs.DurationVar(&o.IdleInterval, "bridge.idle-interval", o.IdleInterval, "Status heartbeat interval while idle.")
	fs.DurationVar(&o.PollInterval, "bridge.poll-interval", o.PollInterval, "Pairing poll interval.")
	fs.DurationVar(&o.SampleInterval, "bridge.sample-interval", o.SampleInterval, "Simulator sampling interval.")
	fs.DurationVar(&o.Staleness, "bridge.staleness", o.Staleness, "Maximum snapshot age still worth pushing.")
}
