package simsource

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Factory builds a Source from provider-specific configuration. The config
// value is the provider's own options struct; providers validate it.
type Factory func(config any) (Source, error)

// loadError marks a provider construction failure, as opposed to an unknown
// provider name or invalid configuration.
type loadError struct {
	provider string
	err      error
}

func (e *loadError) Error() string {
	return fmt.Sprintf("simsource: provider %q failed to load: %v", e.provider, e.err)
}

func (e *loadError) Unwrap() error { return e.err }

// ErrUnknownProvider is returned by New for names with no registered factory.
var ErrUnknownProvider = errors.New("simsource: unknown provider")

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a provider factory under a unique name. Called from provider
// package init functions.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("simsource: provider %q registered twice", name))
	}
	registry[name] = factory
}

// Providers lists the registered provider names in sorted order.
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the named provider. Construction failures are classified so
// IsSourceLoadFailure can distinguish them from configuration mistakes.
func New(name string, config any) (Source, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownProvider, name, Providers())
	}

	src, err := factory(config)
	if err != nil {
		return nil, &loadError{provider: name, err: err}
	}
	return src, nil
}

// IsSourceLoadFailure reports whether err came from a provider that exists
// but failed to construct. Unknown provider names are configuration errors,
// not load failures.
func IsSourceLoadFailure(err error) bool {
	var le *loadError
	return errors.As(err, &le)
}
