package options

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/opensquawk/simbridge/internal/simsource"
)

var _ IOptions = (*SimOptions)(nil)

// SimOptions selects the telemetry source provider.
type SimOptions struct {
	Provider string `json:"provider" mapstructure:"provider"`
}

// NewSimOptions creates a SimOptions object with default parameters.
func NewSimOptions() *SimOptions {
	return &SimOptions{
		Provider: "synthetic",
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *SimOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	registered := simsource.Providers()
	found := false
	for _, name := range registered {
		if name == o.Provider {
			found = true
			break
		}
	}
	if !found {
		errors = append(errors, fmt.Errorf("sim.provider: unknown provider %q (have %s)",
			o.Provider, strings.Join(registered, ", ")))
	}

	return errors
}

// AddFlags adds flags for SimOptions to the specified FlagSet.
func (o *SimOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Provider, "sim.provider", o.Provider, "Telemetry source provider.")
}
