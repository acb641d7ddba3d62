package runtime

import (
	"sync"
	"sync/atomic"

	"github.com/opensquawk/simbridge/internal/bridge/telemetry"
	"github.com/opensquawk/simbridge/internal/pkg/metrics"
)

// State is the one place the bridge's shared mutable state lives: the
// token, the link state, the raw simulator flags, and the latest
// snapshot. The snapshot is a single pointer swap so the push path never
// sees a half-written record.
type State struct {
	mu           sync.Mutex
	token        string
	linked       bool
	label        string
	simConnected bool
	flightLoaded bool

	snapshot atomic.Pointer[telemetry.Snapshot]
}

var _ telemetry.StateView = (*State)(nil)

func (s *State) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *State) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *State) Linked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linked
}

// Label returns the linked account's display name, empty while unlinked.
func (s *State) Label() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.label
}

// SetLinked records the pairing answer and keeps the gauge in step.
func (s *State) SetLinked(linked bool, label string) {
	s.mu.Lock()
	s.linked = linked
	s.label = label
	s.mu.Unlock()

	if linked {
		metrics.LinkState.Set(1)
	} else {
		metrics.LinkState.Set(0)
	}
}

// Active reports derived readiness: linked, simulator connected, and a
// flight session loaded.
func (s *State) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linked && s.simConnected && s.flightLoaded
}

// SimFlags returns the connectivity flags for the status heartbeat. The
// raw flags are kept internally but reported as false while unlinked so
// an unpaired bridge never claims simulator access to the backend.
func (s *State) SimFlags() (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.linked {
		return false, false
	}
	return s.simConnected, s.flightLoaded
}

// SetSimConnected updates the raw connection flag. Dropping the
// connection also ends any flight session.
func (s *State) SetSimConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simConnected = connected
	if !connected {
		s.flightLoaded = false
	}
}

// SetFlightLoaded updates the raw session flag.
func (s *State) SetFlightLoaded(loaded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flightLoaded = loaded
	if loaded {
		s.simConnected = true
	}
}

// ClearSimFlags drops both raw flags, used when sampling fails.
func (s *State) ClearSimFlags() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.simConnected = false
	s.flightLoaded = false
}

func (s *State) Latest() *telemetry.Snapshot {
	return s.snapshot.Load()
}

// StoreSnapshot publishes a new snapshot; the previous one is simply
// superseded, never mutated.
func (s *State) StoreSnapshot(snap *telemetry.Snapshot) {
	s.snapshot.Store(snap)
}
