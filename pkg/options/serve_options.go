package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*ServeOptions)(nil)

// ServeOptions configures the local status HTTP server.
type ServeOptions struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Address with server address.
	Addr string `json:"addr" mapstructure:"addr"`
}

// NewServeOptions creates a ServeOptions object with default parameters.
func NewServeOptions() *ServeOptions {
	return &ServeOptions{
		Enabled: true,
		Addr:    "127.0.0.1:8320",
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *ServeOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.Enabled {
		if err := ValidateAddress(o.Addr); err != nil {
			errors = append(errors, err)
		}
	}

	return errors
}

// AddFlags adds flags for ServeOptions to the specified FlagSet.
func (o *ServeOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, "serve.enabled", o.Enabled, "Serve the local status API.")
	fs.StringVar(&o.Addr, "serve.addr", o.Addr, "Bind address of the local status API.")
}
