// Package options defines the per-concern configuration blocks shared by
// the squawk-bridge commands. Each block carries its own defaults, flag
// binding, and validation.
package options

import (
	"fmt"
	"net"

	"github.com/spf13/pflag"
)

// IOptions is implemented by every option block.
type IOptions interface {
	// Validate checks the user-supplied values; an empty slice means ok.
	Validate() []error

	// AddFlags binds the block's fields to the flag set.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// ValidateAddress checks a host:port bind address.
func ValidateAddress(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%q is not a valid bind address: %w", addr, err)
	}
	return nil
}
